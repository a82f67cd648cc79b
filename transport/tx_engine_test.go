package transport

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	proto "github.com/ystepanoff/nrfesb/protocol"
)

func newTestTxEngine(t *testing.T, maxRetries uint32) (*TxEngine, *MockTransceiver, *[]TxReport) {
	t.Helper()
	radio := NewMockTransceiver()
	cfg := proto.DefaultLinkConfig()
	tx := NewTxEngine(radio, cfg, maxRetries, nil)
	require.NoError(t, radio.Init(cfg, func(evt proto.Event) {
		switch evt.ID {
		case proto.EventTxSuccess:
			tx.OnResult(TxOutcomeSuccess, evt.TxAttempts)
		case proto.EventTxFailed:
			tx.OnResult(TxOutcomeFailure, evt.TxAttempts)
		}
	}))
	radio.ClearCalls()

	reports := &[]TxReport{}
	tx.RegisterReportCallback(func(r TxReport) {
		*reports = append(*reports, r)
	})
	return tx, radio, reports
}

func TestTxEngineSubmit(t *testing.T) {
	tx, radio, reports := newTestTxEngine(t, 0)

	p := mustPayload(0, 0x01, 0x00, 0x00, 0x00, 0x11)
	require.NoError(t, tx.Submit(p))

	assert.Equal(t, TxSent, tx.State())
	assert.True(t, tx.Outstanding())
	assert.Equal(t, []string{"write"}, radio.Calls())

	// The engine owns a copy; the caller may reuse its payload.
	p.Data[0] = 0xFF
	assert.Equal(t, byte(0x01), radio.TxLog()[0].Data[0])

	radio.CompleteTx(true, 1)
	assert.Equal(t, TxIdle, tx.State())
	assert.False(t, tx.Outstanding())
	require.Len(t, *reports, 1)
	assert.Equal(t, TxAcked, (*reports)[0].State)
	assert.Equal(t, uint32(0), (*reports)[0].Retries)
	assert.Equal(t, uint32(1), (*reports)[0].Attempts)
}

func TestTxEngineSlotHeldUntilReported(t *testing.T) {
	tx, radio, _ := newTestTxEngine(t, 0)

	var submitErr error
	var outstanding bool
	tx.RegisterReportCallback(func(r TxReport) {
		outstanding = tx.Outstanding()
		submitErr = tx.Submit(mustPayload(0, 0x02))
	})

	require.NoError(t, tx.Submit(mustPayload(0, 0x01)))
	radio.CompleteTx(true, 1)

	assert.True(t, outstanding)
	assert.ErrorIs(t, submitErr, proto.ErrQueueFull)
	assert.False(t, tx.Outstanding())
	assert.Len(t, radio.TxLog(), 1)

	require.NoError(t, tx.Submit(mustPayload(0, 0x02)))
}

func TestTxEngineSingleOutstanding(t *testing.T) {
	tx, radio, _ := newTestTxEngine(t, 0)

	require.NoError(t, tx.Submit(mustPayload(0, 0x01)))
	err := tx.Submit(mustPayload(0, 0x02))
	assert.ErrorIs(t, err, proto.ErrQueueFull)

	// The rejected payload never reached the transceiver.
	assert.Equal(t, []string{"write"}, radio.Calls())
	assert.Len(t, radio.TxLog(), 1)
	assert.Equal(t, uint64(1), tx.GetMetrics().Rejected)

	radio.CompleteTx(true, 1)
	require.NoError(t, tx.Submit(mustPayload(0, 0x03)))
}

func TestTxEngineInvalidPayload(t *testing.T) {
	tx, radio, _ := newTestTxEngine(t, 0)

	err := tx.Submit(&proto.Payload{Pipe: proto.PipeCount, Length: 1})
	assert.ErrorIs(t, err, proto.ErrInvalidPayload)

	err = tx.Submit(&proto.Payload{Pipe: 0, Length: proto.MaxPayloadLength + 1})
	assert.ErrorIs(t, err, proto.ErrInvalidPayload)

	assert.Empty(t, radio.Calls())
	assert.False(t, tx.Outstanding())
	assert.Equal(t, TxIdle, tx.State())
}

func TestTxEngineWriteRejected(t *testing.T) {
	tx, radio, reports := newTestTxEngine(t, 0)
	radio.txCapacity = 0

	err := tx.Submit(mustPayload(0, 0x01))
	assert.ErrorIs(t, err, proto.ErrQueueFull)
	assert.Equal(t, TxIdle, tx.State())
	assert.False(t, tx.Outstanding())
	assert.Empty(t, *reports)

	radio.txCapacity = 1
	require.NoError(t, tx.Submit(mustPayload(0, 0x02)))
}

func TestTxEngineFailureFlushesThenRetries(t *testing.T) {
	tx, radio, reports := newTestTxEngine(t, 0)

	require.NoError(t, tx.Submit(mustPayload(0, 0x01, 0x05)))
	radio.CompleteTx(false, 4)

	// Exactly one flush followed by one rewrite of the same payload.
	assert.Equal(t, []string{"write", "flush", "write"}, radio.Calls())
	log := radio.TxLog()
	require.Len(t, log, 2)
	assert.Equal(t, log[0].Bytes(), log[1].Bytes())
	assert.Equal(t, 1, radio.Queued())

	assert.Equal(t, TxSent, tx.State())
	assert.True(t, tx.Outstanding())
	assert.Empty(t, *reports)

	radio.CompleteTx(true, 2)
	require.Len(t, *reports, 1)
	assert.Equal(t, TxAcked, (*reports)[0].State)
	assert.Equal(t, uint32(1), (*reports)[0].Retries)
	assert.Equal(t, byte(0x05), (*reports)[0].Payload.Data[1])

	m := tx.GetMetrics()
	assert.Equal(t, uint64(1), m.Failures)
	assert.Equal(t, uint64(1), m.Retries)
	assert.Equal(t, uint64(1), m.Acked)
	assert.Equal(t, uint32(2), m.LastAttempts)
}

func TestTxEngineRetriesForeverByDefault(t *testing.T) {
	tx, radio, reports := newTestTxEngine(t, 0)

	require.NoError(t, tx.Submit(mustPayload(0, 0x01)))
	for i := 0; i < 50; i++ {
		radio.CompleteTx(false, 4)
	}
	assert.Empty(t, *reports)
	assert.Equal(t, TxSent, tx.State())
	assert.Len(t, radio.TxLog(), 51)
}

func TestTxEngineBoundedRetries(t *testing.T) {
	tx, radio, reports := newTestTxEngine(t, 2)

	require.NoError(t, tx.Submit(mustPayload(0, 0x01)))
	radio.CompleteTx(false, 4)
	radio.CompleteTx(false, 4)
	assert.Empty(t, *reports)

	radio.CompleteTx(false, 4)
	require.Len(t, *reports, 1)
	assert.Equal(t, TxFailed, (*reports)[0].State)
	assert.Equal(t, uint32(2), (*reports)[0].Retries)
	assert.Equal(t, TxIdle, tx.State())
	assert.False(t, tx.Outstanding())
	assert.Equal(t, 0, radio.Queued())
	assert.Equal(t, uint64(1), tx.GetMetrics().GaveUp)
}

func TestTxEngineRetryWriteFailure(t *testing.T) {
	tx, radio, reports := newTestTxEngine(t, 0)

	require.NoError(t, tx.Submit(mustPayload(0, 0x01)))
	radio.writeErr = errors.New("radio busy")
	radio.CompleteTx(false, 4)

	require.Len(t, *reports, 1)
	assert.Equal(t, TxFailed, (*reports)[0].State)
	assert.False(t, tx.Outstanding())
}

func TestTxEngineSpuriousOutcome(t *testing.T) {
	tx, radio, reports := newTestTxEngine(t, 0)

	radio.CompleteTx(true, 1)
	radio.CompleteTx(false, 1)

	assert.Empty(t, *reports)
	assert.Empty(t, radio.Calls())
	assert.Equal(t, uint64(2), tx.GetMetrics().Spurious)
}

func TestTxEngineManualStart(t *testing.T) {
	radio := NewMockTransceiver()
	cfg := proto.DefaultLinkConfig()
	cfg.TxMode = proto.TxModeManual
	tx := NewTxEngine(radio, cfg, 0, nil)
	require.NoError(t, radio.Init(cfg, func(evt proto.Event) {
		tx.OnResult(TxOutcomeFailure, evt.TxAttempts)
	}))
	radio.ClearCalls()

	require.NoError(t, tx.Submit(mustPayload(0, 0x01)))
	assert.Equal(t, []string{"write", "start"}, radio.Calls())

	radio.Raise(proto.Event{ID: proto.EventTxFailed, TxAttempts: 4})
	assert.Equal(t, []string{"write", "start", "flush", "write", "start"}, radio.Calls())
}

func TestTxEngineStartFailure(t *testing.T) {
	radio := NewMockTransceiver()
	cfg := proto.DefaultLinkConfig()
	cfg.TxMode = proto.TxModeManual
	tx := NewTxEngine(radio, cfg, 0, nil)
	radio.startErr = errors.New("not ready")

	err := tx.Submit(mustPayload(0, 0x01))
	assert.ErrorContains(t, err, "not ready")
	assert.False(t, tx.Outstanding())
	assert.Equal(t, []string{"write", "start", "flush"}, radio.Calls())
}

func TestNextTxAction(t *testing.T) {
	tests := []struct {
		name       string
		state      TxState
		outcome    TxOutcome
		retries    uint32
		maxRetries uint32
		want       txAction
	}{
		{"success while sent", TxSent, TxOutcomeSuccess, 0, 0, txComplete},
		{"failure while sent", TxSent, TxOutcomeFailure, 0, 0, txRetry},
		{"failure unbounded", TxSent, TxOutcomeFailure, 1000, 0, txRetry},
		{"failure under bound", TxSent, TxOutcomeFailure, 1, 2, txRetry},
		{"failure at bound", TxSent, TxOutcomeFailure, 2, 2, txGiveUp},
		{"success while idle", TxIdle, TxOutcomeSuccess, 0, 0, txIgnore},
		{"failure while idle", TxIdle, TxOutcomeFailure, 0, 0, txIgnore},
		{"success while queued", TxQueued, TxOutcomeSuccess, 0, 0, txIgnore},
		{"failure while retrying", TxRetrying, TxOutcomeFailure, 0, 0, txIgnore},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, nextTxAction(tt.state, tt.outcome, tt.retries, tt.maxRetries))
		})
	}
}

func TestTxStateString(t *testing.T) {
	assert.Equal(t, "acked", TxAcked.String())
	assert.Equal(t, "retrying", TxRetrying.String())
	assert.Equal(t, "state(42)", TxState(42).String())
}
