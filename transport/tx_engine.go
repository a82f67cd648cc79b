package transport

import (
	"fmt"
	"sync/atomic"

	"github.com/loopholelabs/logging/types"
	proto "github.com/ystepanoff/nrfesb/protocol"
)

type TxState int32

const (
	TxIdle TxState = iota
	TxQueued
	TxSent
	TxRetrying
	TxAcked
	TxFailed
)

func (s TxState) String() string {
	switch s {
	case TxIdle:
		return "idle"
	case TxQueued:
		return "queued"
	case TxSent:
		return "sent"
	case TxRetrying:
		return "retrying"
	case TxAcked:
		return "acked"
	case TxFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

type TxOutcome uint8

const (
	TxOutcomeSuccess TxOutcome = iota
	TxOutcomeFailure
)

// TxReport is published once per accepted payload, when it reaches a terminal state.
type TxReport struct {
	Payload  *proto.Payload
	State    TxState // TxAcked or TxFailed
	Attempts uint32  // on-air attempts of the last hardware cycle
	Retries  uint32  // flush-then-retry cycles performed
}

type txAction uint8

const (
	txIgnore txAction = iota
	txComplete
	txRetry
	txGiveUp
)

// nextTxAction is the transition table for a hardware outcome.
// maxRetries of 0 retries forever.
func nextTxAction(state TxState, outcome TxOutcome, retries uint32, maxRetries uint32) txAction {
	if state != TxSent {
		return txIgnore
	}
	switch outcome {
	case TxOutcomeSuccess:
		return txComplete
	case TxOutcomeFailure:
		if maxRetries > 0 && retries >= maxRetries {
			return txGiveUp
		}
		return txRetry
	}
	return txIgnore
}

type TxMetrics struct {
	State        TxState
	Submitted    uint64
	Rejected     uint64
	Acked        uint64
	Failures     uint64
	Retries      uint64
	GaveUp       uint64
	Spurious     uint64
	LastAttempts uint32
}

// TxEngine owns the single outstanding payload.
// Submit runs in the main loop, OnResult in the transceiver's interrupt context. The
// payload slot is a take/replace cell: Submit claims it, a terminal outcome releases it.
type TxEngine struct {
	radio      Transceiver
	cfg        proto.LinkConfig
	maxRetries uint32
	log        types.Logger
	onReport   func(TxReport)

	state   atomic.Int32
	slot    atomic.Pointer[proto.Payload]
	retries atomic.Uint32

	metricSubmitted    atomic.Uint64
	metricRejected     atomic.Uint64
	metricAcked        atomic.Uint64
	metricFailures     atomic.Uint64
	metricRetries      atomic.Uint64
	metricGaveUp       atomic.Uint64
	metricSpurious     atomic.Uint64
	metricLastAttempts atomic.Uint32
}

func NewTxEngine(radio Transceiver, cfg proto.LinkConfig, maxRetries uint32, log types.Logger) *TxEngine {
	return &TxEngine{
		radio:      radio,
		cfg:        cfg,
		maxRetries: maxRetries,
		log:        log,
	}
}

// RegisterReportCallback sets the terminal outcome hook. Call it before the link starts.
func (t *TxEngine) RegisterReportCallback(cb func(TxReport)) {
	t.onReport = cb
}

func (t *TxEngine) State() TxState { return TxState(t.state.Load()) }

// Outstanding reports whether a payload is owned by the transceiver.
func (t *TxEngine) Outstanding() bool { return t.slot.Load() != nil }

// Submit hands a copy of p to the transceiver. Only one payload may be outstanding.
func (t *TxEngine) Submit(p *proto.Payload) error {
	if err := p.Validate(&t.cfg); err != nil {
		t.metricRejected.Add(1)
		return err
	}

	owned := p.Clone()
	if !t.slot.CompareAndSwap(nil, owned) {
		t.metricRejected.Add(1)
		return proto.ErrQueueFull
	}
	t.retries.Store(0)
	t.state.Store(int32(TxQueued))

	if err := t.send(owned); err != nil {
		t.state.Store(int32(TxIdle))
		t.slot.Store(nil)
		t.metricRejected.Add(1)
		return fmt.Errorf("write payload: %w", err)
	}

	t.metricSubmitted.Add(1)
	if t.log != nil {
		t.log.Debug().Uint8("pipe", owned.Pipe).Int("length", int(owned.Length)).Msg("tx submitted")
	}
	return nil
}

// send moves p to the transceiver. The state is set first because the outcome may be
// raised before WritePayload returns.
func (t *TxEngine) send(p *proto.Payload) error {
	t.state.Store(int32(TxSent))
	if err := t.radio.WritePayload(p); err != nil {
		return err
	}
	if t.cfg.TxMode == proto.TxModeManual {
		if err := t.radio.StartTx(); err != nil {
			_ = t.radio.FlushTx()
			return err
		}
	}
	return nil
}

// OnResult applies a hardware outcome. It never blocks.
func (t *TxEngine) OnResult(outcome TxOutcome, attempts uint32) {
	t.metricLastAttempts.Store(attempts)

	action := nextTxAction(t.State(), outcome, t.retries.Load(), t.maxRetries)
	p := t.slot.Load()

	switch action {
	case txIgnore:
		t.metricSpurious.Add(1)
		if t.log != nil {
			t.log.Debug().Str("state", t.State().String()).Msg("tx outcome without outstanding payload")
		}
	case txComplete:
		t.metricAcked.Add(1)
		t.finish(p, TxAcked, attempts)
	case txRetry:
		t.metricFailures.Add(1)
		t.retry(p, attempts)
	case txGiveUp:
		t.metricFailures.Add(1)
		t.metricGaveUp.Add(1)
		if t.log != nil {
			t.log.Warn().Uint8("pipe", p.Pipe).Uint32("retries", t.retries.Load()).Msg("tx retries exhausted")
		}
		_ = t.radio.FlushTx()
		t.finish(p, TxFailed, attempts)
	}
}

// retry flushes whatever the transceiver still holds and re-issues the same payload.
func (t *TxEngine) retry(p *proto.Payload, attempts uint32) {
	t.state.Store(int32(TxRetrying))
	n := t.retries.Add(1)
	t.metricRetries.Add(1)

	if t.log != nil {
		t.log.Warn().Uint8("pipe", p.Pipe).Uint32("attempts", attempts).Uint32("retry", n).Msg("tx failed, retrying")
	}

	err := t.radio.FlushTx()
	if err == nil {
		err = t.send(p)
	}
	if err != nil {
		if t.log != nil {
			t.log.Error().Err(err).Uint8("pipe", p.Pipe).Msg("tx retry could not be issued")
		}
		_ = t.radio.FlushTx()
		t.finish(p, TxFailed, attempts)
	}
}

func (t *TxEngine) finish(p *proto.Payload, st TxState, attempts uint32) {
	t.state.Store(int32(st))
	report := TxReport{Payload: p, State: st, Attempts: attempts, Retries: t.retries.Load()}

	if t.log != nil {
		t.log.Debug().Str("result", st.String()).Uint32("attempts", attempts).Uint32("retries", report.Retries).Msg("tx complete")
	}
	// The slot stays taken until the report is delivered.
	if t.onReport != nil {
		t.onReport(report)
	}

	t.state.Store(int32(TxIdle))
	t.slot.Store(nil)
}

func (t *TxEngine) GetMetrics() *TxMetrics {
	return &TxMetrics{
		State:        t.State(),
		Submitted:    t.metricSubmitted.Load(),
		Rejected:     t.metricRejected.Load(),
		Acked:        t.metricAcked.Load(),
		Failures:     t.metricFailures.Load(),
		Retries:      t.metricRetries.Load(),
		GaveUp:       t.metricGaveUp.Load(),
		Spurious:     t.metricSpurious.Load(),
		LastAttempts: t.metricLastAttempts.Load(),
	}
}
