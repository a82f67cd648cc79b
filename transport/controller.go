package transport

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/loopholelabs/logging/types"
	proto "github.com/ystepanoff/nrfesb/protocol"
)

var (
	ErrAlreadyStarted = errors.New("link already started")
	ErrNotStarted     = errors.New("link not started")
)

// InitError is fatal: no link can run without the step that failed.
type InitError struct {
	Step string
	Err  error
}

func (e *InitError) Error() string { return fmt.Sprintf("link init %s: %v", e.Step, e.Err) }

func (e *InitError) Unwrap() error { return e.Err }

type ControllerConfig struct {
	Link         proto.LinkConfig
	Addresses    proto.AddressTable
	SendInterval time.Duration
	Pipe         uint8
	// Payload is the template sent every tick; the byte at SequenceIndex is replaced
	// with the current sequence value.
	Payload       []byte
	SequenceIndex int
	// MaxRetries bounds the flush-then-retry cycles per payload. 0 retries forever.
	MaxRetries uint32
	OnReceive  func(*proto.Payload)
}

var (
	defaultBase0    = []byte{0xE7, 0xE7, 0xE7, 0xE7}
	defaultBase1    = []byte{0xC2, 0xC2, 0xC2, 0xC2}
	defaultPrefixes = []byte{0xE7, 0xC2, 0xC3, 0xC4, 0xC5, 0xC6, 0xC7, 0xC8}
	defaultPayload  = []byte{0x01, 0x00, 0x00, 0x00, 0x11, 0x00, 0x00, 0x00}
)

func DefaultControllerConfig() *ControllerConfig {
	conf := &ControllerConfig{
		Link:          proto.DefaultLinkConfig(),
		SendInterval:  proto.DefaultSendInterval,
		Pipe:          0,
		Payload:       append([]byte(nil), defaultPayload...),
		SequenceIndex: proto.DefaultSequenceIndex,
	}
	// The defaults are known to be valid.
	_ = conf.Addresses.Configure(defaultBase0, defaultBase1, defaultPrefixes)
	return conf
}

func (c *ControllerConfig) Validate() error {
	if err := c.Link.Validate(); err != nil {
		return err
	}
	if !c.Addresses.Configured() {
		return proto.ErrAddressNotConfigured
	}
	if c.Pipe >= proto.PipeCount {
		return proto.ErrInvalidPipe
	}
	if c.SequenceIndex < 0 {
		return fmt.Errorf("%w: negative sequence index %d", proto.ErrInvalidConfig, c.SequenceIndex)
	}
	if c.Link.Mode == proto.ModePTX {
		if c.SendInterval <= 0 {
			return fmt.Errorf("%w: send interval must be positive", proto.ErrInvalidConfig)
		}
		if c.SequenceIndex >= len(c.Payload) {
			return fmt.Errorf("%w: sequence index %d outside payload of %d bytes", proto.ErrInvalidConfig, c.SequenceIndex, len(c.Payload))
		}
		p, err := proto.NewPayload(c.Pipe, c.Payload...)
		if err != nil {
			return err
		}
		if err := p.Validate(&c.Link); err != nil {
			return err
		}
	}
	return nil
}

type LinkMetrics struct {
	ID       string
	Sequence byte
	Tx       *TxMetrics
	Rx       *RxMetrics
	Dispatch *DispatchMetrics
}

// LinkController owns the configuration, brings the link up and runs the send loop.
type LinkController struct {
	id         string
	conf       *ControllerConfig
	radio      Transceiver
	clock      Clock
	indicator  StatusIndicator
	log        types.Logger
	tx         *TxEngine
	rx         *RxEngine
	dispatcher *EventDispatcher

	started  atomic.Bool
	sequence atomic.Uint32
}

// NewLinkController wires the engines to radio. clock, indicator and log may be nil.
func NewLinkController(conf *ControllerConfig, radio Transceiver, clock Clock, indicator StatusIndicator, log types.Logger) *LinkController {
	c := &LinkController{
		id:        uuid.NewString(),
		conf:      conf,
		radio:     radio,
		clock:     clock,
		indicator: indicator,
		log:       log,
	}
	c.tx = NewTxEngine(radio, conf.Link, conf.MaxRetries, log)
	c.rx = NewRxEngine(radio, log)
	c.dispatcher = NewEventDispatcher(c.tx, c.rx, log)

	c.tx.RegisterReportCallback(c.onTxReport)
	c.rx.RegisterCallback(c.onReceive)
	return c
}

func (c *LinkController) ID() string { return c.id }

func (c *LinkController) Tx() *TxEngine { return c.tx }

func (c *LinkController) Rx() *RxEngine { return c.rx }

func (c *LinkController) Dispatcher() *EventDispatcher { return c.dispatcher }

// Sequence is the demonstration byte carried by the next payload.
func (c *LinkController) Sequence() byte { return byte(c.sequence.Load()) }

// Start brings the link up: clock, transceiver, addresses. Any failure is an *InitError.
func (c *LinkController) Start(ctx context.Context) error {
	if c.started.Load() {
		return ErrAlreadyStarted
	}

	if err := c.conf.Validate(); err != nil {
		return c.initFailed("config", err)
	}

	if c.clock != nil {
		if err := c.clock.StartAndWait(ctx); err != nil {
			return c.initFailed("clock", err)
		}
	}

	if err := c.radio.Init(c.conf.Link, c.dispatcher.Handler()); err != nil {
		return c.initFailed("transceiver", err)
	}

	if err := c.conf.Addresses.Apply(c.radio); err != nil {
		return c.initFailed("address", err)
	}

	c.started.Store(true)
	if c.log != nil {
		c.log.Info().
			Str("link", c.id).
			Str("mode", c.conf.Link.Mode.String()).
			Str("protocol", c.conf.Link.Protocol.String()).
			Str("bitrate", c.conf.Link.Bitrate.String()).
			Msg("Enhanced ShockBurst link started")
	}
	return nil
}

func (c *LinkController) initFailed(step string, err error) error {
	if c.log != nil {
		c.log.Error().Str("link", c.id).Str("step", step).Err(err).Msg("link init failed")
	}
	return &InitError{Step: step, Err: err}
}

// Tick runs one iteration of the send loop. A rejected submission is logged and
// returned; it is not retried until the next tick.
func (c *LinkController) Tick() error {
	if !c.started.Load() {
		return ErrNotStarted
	}
	if c.conf.Link.Mode == proto.ModePRX {
		return nil
	}

	seq := c.Sequence()
	p, err := proto.NewPayload(c.conf.Pipe, c.conf.Payload...)
	if err != nil {
		return err
	}
	p.Data[c.conf.SequenceIndex] = seq
	p.NoAck = false

	if c.log != nil {
		c.log.Debug().Str("link", c.id).Uint8("sequence", seq).Msg("transmitting packet")
	}

	if err := c.tx.Submit(p); err != nil {
		if c.log != nil {
			c.log.Warn().Str("link", c.id).Uint8("sequence", seq).Err(err).Msg("sending packet failed")
		}
		return err
	}

	if c.indicator != nil {
		c.indicator.Show(proto.PatternFor(seq))
	}
	return nil
}

// Run ticks every SendInterval until ctx is done.
func (c *LinkController) Run(ctx context.Context) error {
	if !c.started.Load() {
		return ErrNotStarted
	}

	ticker := time.NewTicker(c.conf.SendInterval)
	defer ticker.Stop()

	for {
		_ = c.Tick()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// onTxReport runs in the interrupt context.
func (c *LinkController) onTxReport(r TxReport) {
	if r.State != TxAcked {
		if c.log != nil {
			c.log.Warn().Str("link", c.id).Uint32("retries", r.Retries).Msg("packet dropped")
		}
		return
	}
	if r.Payload == nil || c.conf.SequenceIndex >= int(r.Payload.Length) {
		return
	}
	c.sequence.Store(uint32(r.Payload.Data[c.conf.SequenceIndex] + 1))
}

// onReceive runs in the interrupt context. In the receiver role the status outputs
// follow the sequence byte of the received payload.
func (c *LinkController) onReceive(p *proto.Payload) {
	if c.conf.Link.Mode == proto.ModePRX && c.indicator != nil && c.conf.SequenceIndex < int(p.Length) {
		c.indicator.Show(proto.PatternFor(p.Data[c.conf.SequenceIndex]))
	}
	if c.conf.OnReceive != nil {
		c.conf.OnReceive(p)
	}
}

func (c *LinkController) GetMetrics() *LinkMetrics {
	return &LinkMetrics{
		ID:       c.id,
		Sequence: c.Sequence(),
		Tx:       c.tx.GetMetrics(),
		Rx:       c.rx.GetMetrics(),
		Dispatch: c.dispatcher.GetMetrics(),
	}
}
