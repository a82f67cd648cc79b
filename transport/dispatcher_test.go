package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	proto "github.com/ystepanoff/nrfesb/protocol"
)

func TestEventDispatcherRouting(t *testing.T) {
	radio := NewMockTransceiver()
	cfg := proto.DefaultLinkConfig()
	tx := NewTxEngine(radio, cfg, 0, nil)
	rx := NewRxEngine(radio, nil)
	d := NewEventDispatcher(tx, rx, nil)
	require.NoError(t, radio.Init(cfg, d.Handler()))

	var received []byte
	rx.RegisterCallback(func(p *proto.Payload) { received = append(received, p.Data[0]) })

	var reports []TxReport
	tx.RegisterReportCallback(func(r TxReport) { reports = append(reports, r) })

	require.NoError(t, tx.Submit(mustPayload(0, 0x10)))
	radio.CompleteTx(false, 4)
	radio.CompleteTx(true, 1)
	require.Len(t, reports, 1)
	assert.Equal(t, TxAcked, reports[0].State)

	radio.InjectRx(1, 0x20)
	radio.Raise(proto.Event{ID: proto.EventRxReceived})
	assert.Equal(t, []byte{0x20}, received)

	m := d.GetMetrics()
	assert.Equal(t, uint64(1), m.TxSuccess)
	assert.Equal(t, uint64(1), m.TxFailed)
	assert.Equal(t, uint64(1), m.RxReceived)
	assert.Equal(t, uint64(0), m.Unknown)
}

func TestEventDispatcherUnknownEvent(t *testing.T) {
	radio := NewMockTransceiver()
	cfg := proto.DefaultLinkConfig()
	tx := NewTxEngine(radio, cfg, 0, nil)
	rx := NewRxEngine(radio, nil)
	d := NewEventDispatcher(tx, rx, nil)

	radio.InjectRx(0, 0x01)
	d.OnEvent(proto.Event{ID: proto.EventID(99)})

	assert.Equal(t, uint64(1), d.GetMetrics().Unknown)
	assert.Empty(t, radio.Calls())
	assert.Equal(t, TxIdle, tx.State())
	assert.Equal(t, uint64(0), rx.GetMetrics().Drains)
}

func TestEventDispatcherRxWithoutFrames(t *testing.T) {
	radio := NewMockTransceiver()
	cfg := proto.DefaultLinkConfig()
	d := NewEventDispatcher(NewTxEngine(radio, cfg, 0, nil), NewRxEngine(radio, nil), nil)

	d.OnEvent(proto.Event{ID: proto.EventRxReceived})
	d.OnEvent(proto.Event{ID: proto.EventRxReceived})

	assert.Equal(t, uint64(2), d.GetMetrics().RxReceived)
}
