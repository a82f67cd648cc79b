package prometheus

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	proto "github.com/ystepanoff/nrfesb/protocol"
	"github.com/ystepanoff/nrfesb/transport"
)

type MetricsConfig struct {
	Namespace   string
	SubTx       string
	SubRx       string
	SubDispatch string
	SubLink     string
	TickLink    time.Duration
}

func DefaultConfig() *MetricsConfig {
	return &MetricsConfig{
		Namespace:   "esb",
		SubTx:       "tx",
		SubRx:       "rx",
		SubDispatch: "dispatch",
		SubLink:     "link",
		TickLink:    100 * time.Millisecond,
	}
}

type Metrics struct {
	reg    prometheus.Registerer
	lock   sync.Mutex
	config *MetricsConfig

	// tx
	txState     *prometheus.GaugeVec
	txSubmitted *prometheus.GaugeVec
	txRejected  *prometheus.GaugeVec
	txAcked     *prometheus.GaugeVec
	txFailures  *prometheus.GaugeVec
	txRetries   *prometheus.GaugeVec
	txGaveUp    *prometheus.GaugeVec
	txSpurious  *prometheus.GaugeVec
	txAttempts  *prometheus.GaugeVec

	// rx
	rxFrames       *prometheus.GaugeVec
	rxDelivered    *prometheus.GaugeVec
	rxDiscarded    *prometheus.GaugeVec
	rxDrains       *prometheus.GaugeVec
	rxErrors       *prometheus.GaugeVec
	rxPipeLastSeen *prometheus.GaugeVec

	// dispatch
	dispatchEvents  *prometheus.GaugeVec
	dispatchUnknown *prometheus.GaugeVec

	// link
	linkSequence *prometheus.GaugeVec

	cancelfns map[string]context.CancelFunc
}

func New(reg prometheus.Registerer, config *MetricsConfig) *Metrics {
	gauge := func(sub string, name string, help string, labels ...string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: config.Namespace, Subsystem: sub, Name: name, Help: help}, append([]string{"link"}, labels...))
	}

	met := &Metrics{
		config: config,
		reg:    reg,
		// tx
		txState:     gauge(config.SubTx, "state", "Transmit state machine state"),
		txSubmitted: gauge(config.SubTx, "submitted", "Payloads accepted"),
		txRejected:  gauge(config.SubTx, "rejected", "Payloads rejected"),
		txAcked:     gauge(config.SubTx, "acked", "Payloads acknowledged"),
		txFailures:  gauge(config.SubTx, "failures", "Failed hardware transmissions"),
		txRetries:   gauge(config.SubTx, "retries", "Flush then retry cycles"),
		txGaveUp:    gauge(config.SubTx, "gave_up", "Payloads dropped after the retry bound"),
		txSpurious:  gauge(config.SubTx, "spurious", "Outcomes without an outstanding payload"),
		txAttempts:  gauge(config.SubTx, "attempts", "On-air attempts of the last transmission"),
		// rx
		rxFrames:       gauge(config.SubRx, "frames", "Frames read from the transceiver"),
		rxDelivered:    gauge(config.SubRx, "delivered", "Payloads delivered"),
		rxDiscarded:    gauge(config.SubRx, "discarded", "Zero length payloads dropped"),
		rxDrains:       gauge(config.SubRx, "drains", "Receive drains"),
		rxErrors:       gauge(config.SubRx, "errors", "Read errors"),
		rxPipeLastSeen: gauge(config.SubRx, "pipe_last_seen_ms", "Unix time in ms of the last frame on a pipe", "pipe"),
		// dispatch
		dispatchEvents:  gauge(config.SubDispatch, "events", "Radio events by type", "event"),
		dispatchUnknown: gauge(config.SubDispatch, "unknown", "Unrecognised radio events"),
		// link
		linkSequence: gauge(config.SubLink, "sequence", "Demonstration byte of the next payload"),

		cancelfns: make(map[string]context.CancelFunc),
	}

	reg.MustRegister(
		met.txState, met.txSubmitted, met.txRejected, met.txAcked, met.txFailures,
		met.txRetries, met.txGaveUp, met.txSpurious, met.txAttempts)

	reg.MustRegister(
		met.rxFrames, met.rxDelivered, met.rxDiscarded, met.rxDrains, met.rxErrors, met.rxPipeLastSeen)

	reg.MustRegister(met.dispatchEvents, met.dispatchUnknown, met.linkSequence)

	return met
}

func (m *Metrics) remove(subsystem string, name string) {
	m.lock.Lock()
	cancelfn, ok := m.cancelfns[fmt.Sprintf("%s_%s", subsystem, name)]
	if ok {
		cancelfn()
		delete(m.cancelfns, fmt.Sprintf("%s_%s", subsystem, name))
	}
	m.lock.Unlock()
}

func (m *Metrics) add(subsystem string, name string, interval time.Duration, tickfn func()) {
	ctx, cancelfn := context.WithCancel(context.TODO())
	m.lock.Lock()
	if old, ok := m.cancelfns[fmt.Sprintf("%s_%s", subsystem, name)]; ok {
		old()
	}
	m.cancelfns[fmt.Sprintf("%s_%s", subsystem, name)] = cancelfn
	m.lock.Unlock()

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tickfn()
			}
		}
	}()
}

// Shutdown everything
func (m *Metrics) Shutdown() {
	m.lock.Lock()
	for _, cancelfn := range m.cancelfns {
		cancelfn()
	}
	m.cancelfns = make(map[string]context.CancelFunc)
	m.lock.Unlock()
}

func (m *Metrics) AddLink(name string, link *transport.LinkController) {
	m.add(m.config.SubLink, name, m.config.TickLink, func() {
		m.update(name, link)
	})
}

func (m *Metrics) RemoveLink(name string) {
	m.remove(m.config.SubLink, name)
}

func (m *Metrics) update(name string, link *transport.LinkController) {
	met := link.GetMetrics()

	m.txState.WithLabelValues(name).Set(float64(met.Tx.State))
	m.txSubmitted.WithLabelValues(name).Set(float64(met.Tx.Submitted))
	m.txRejected.WithLabelValues(name).Set(float64(met.Tx.Rejected))
	m.txAcked.WithLabelValues(name).Set(float64(met.Tx.Acked))
	m.txFailures.WithLabelValues(name).Set(float64(met.Tx.Failures))
	m.txRetries.WithLabelValues(name).Set(float64(met.Tx.Retries))
	m.txGaveUp.WithLabelValues(name).Set(float64(met.Tx.GaveUp))
	m.txSpurious.WithLabelValues(name).Set(float64(met.Tx.Spurious))
	m.txAttempts.WithLabelValues(name).Set(float64(met.Tx.LastAttempts))

	m.rxFrames.WithLabelValues(name).Set(float64(met.Rx.Frames))
	m.rxDelivered.WithLabelValues(name).Set(float64(met.Rx.Delivered))
	m.rxDiscarded.WithLabelValues(name).Set(float64(met.Rx.Discarded))
	m.rxDrains.WithLabelValues(name).Set(float64(met.Rx.Drains))
	m.rxErrors.WithLabelValues(name).Set(float64(met.Rx.Errors))
	for pipe := uint8(0); pipe < proto.PipeCount; pipe++ {
		seen := link.Rx().PipeLastSeen(pipe)
		if seen.IsZero() {
			continue
		}
		m.rxPipeLastSeen.WithLabelValues(name, strconv.Itoa(int(pipe))).Set(float64(seen.UnixMilli()))
	}

	m.dispatchEvents.WithLabelValues(name, proto.EventTxSuccess.String()).Set(float64(met.Dispatch.TxSuccess))
	m.dispatchEvents.WithLabelValues(name, proto.EventTxFailed.String()).Set(float64(met.Dispatch.TxFailed))
	m.dispatchEvents.WithLabelValues(name, proto.EventRxReceived.String()).Set(float64(met.Dispatch.RxReceived))
	m.dispatchUnknown.WithLabelValues(name).Set(float64(met.Dispatch.Unknown))

	m.linkSequence.WithLabelValues(name).Set(float64(met.Sequence))
}
