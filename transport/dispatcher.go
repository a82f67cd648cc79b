package transport

import (
	"sync/atomic"

	"github.com/loopholelabs/logging/types"
	proto "github.com/ystepanoff/nrfesb/protocol"
)

type DispatchMetrics struct {
	TxSuccess  uint64
	TxFailed   uint64
	RxReceived uint64
	Unknown    uint64
}

// EventDispatcher is the single entry point registered with the transceiver.
type EventDispatcher struct {
	tx  *TxEngine
	rx  *RxEngine
	log types.Logger

	metricTxSuccess  atomic.Uint64
	metricTxFailed   atomic.Uint64
	metricRxReceived atomic.Uint64
	metricUnknown    atomic.Uint64
}

func NewEventDispatcher(tx *TxEngine, rx *RxEngine, log types.Logger) *EventDispatcher {
	return &EventDispatcher{tx: tx, rx: rx, log: log}
}

// OnEvent routes evt to the engine that owns it. Unknown events are ignored.
// It runs in the transceiver's interrupt context and must not block.
func (d *EventDispatcher) OnEvent(evt proto.Event) {
	if d.log != nil {
		d.log.Debug().Str("event", evt.ID.String()).Uint32("attempts", evt.TxAttempts).Msg("radio event")
	}

	switch evt.ID {
	case proto.EventTxSuccess:
		d.metricTxSuccess.Add(1)
		d.tx.OnResult(TxOutcomeSuccess, evt.TxAttempts)
	case proto.EventTxFailed:
		d.metricTxFailed.Add(1)
		d.tx.OnResult(TxOutcomeFailure, evt.TxAttempts)
	case proto.EventRxReceived:
		d.metricRxReceived.Add(1)
		d.rx.Drain()
	default:
		d.metricUnknown.Add(1)
	}
}

// Handler returns OnEvent as the transceiver callback.
func (d *EventDispatcher) Handler() EventHandler { return d.OnEvent }

func (d *EventDispatcher) GetMetrics() *DispatchMetrics {
	return &DispatchMetrics{
		TxSuccess:  d.metricTxSuccess.Load(),
		TxFailed:   d.metricTxFailed.Load(),
		RxReceived: d.metricRxReceived.Load(),
		Unknown:    d.metricUnknown.Load(),
	}
}
