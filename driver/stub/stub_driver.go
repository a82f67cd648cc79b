//go:build !tinygo && !baremetal

package stub

import (
	"bytes"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/loopholelabs/logging/types"
	proto "github.com/ystepanoff/nrfesb/protocol"
	"github.com/ystepanoff/nrfesb/transport"
)

const (
	DefaultTxCapacity = 3
	rxCapacity        = 3
	txLogCapacity     = 64
)

type Option func(*Driver)

// WithTxCapacity sets the depth of the transmit FIFO.
func WithTxCapacity(n int) Option {
	return func(d *Driver) { d.txCap = n }
}

// WithLoss makes the driver transmit on its own, losing each attempt with probability
// ratio. Without it transmissions only complete through Complete.
func WithLoss(ratio float64, seed uint64) Option {
	return func(d *Driver) {
		d.air = &airModel{loss: ratio, rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
	}
}

func WithLogger(log types.Logger) Option {
	return func(d *Driver) { d.log = log }
}

type airModel struct {
	loss float64
	rnd  *rand.Rand
}

// delivered reports whether one on-air attempt, including its acknowledgement, got through.
func (a *airModel) delivered() bool {
	return a.rnd.Float64() >= a.loss
}

type rxRecord struct {
	pid   uint8
	crc   uint16
	valid bool
}

// Driver implements a simulated transceiver for host-side testing and demos.
// Events are raised one at a time, never while the driver lock is held, so the
// handler may call straight back into the driver.
type Driver struct {
	mu      sync.Mutex
	eventMu sync.Mutex
	log     types.Logger

	cfg         proto.LinkConfig
	handler     transport.EventHandler
	initialised bool

	base0    [proto.BaseAddressSize]byte
	base1    [proto.BaseAddressSize]byte
	prefixes [proto.PipeCount]byte

	txCap  int
	txFifo ring[*proto.Payload]
	rxFifo ring[*proto.Payload]
	txLog  ring[[]byte]

	pids    [proto.PipeCount]uint8
	lastRx  [proto.PipeCount]rxRecord
	flushes int
	rxDrops int

	air  *airModel
	kick chan struct{}
	stop chan struct{}
	wg   sync.WaitGroup
}

func New(opts ...Option) *Driver {
	d := &Driver{
		txCap: DefaultTxCapacity,
		kick:  make(chan struct{}, 1),
		stop:  make(chan struct{}),
	}
	for _, o := range opts {
		o(d)
	}
	d.txFifo = newRing[*proto.Payload](d.txCap)
	d.rxFifo = newRing[*proto.Payload](rxCapacity)
	d.txLog = newRing[[]byte](txLogCapacity)
	return d
}

func (d *Driver) Init(cfg proto.LinkConfig, handler transport.EventHandler) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	d.mu.Lock()
	first := !d.initialised
	d.cfg = cfg
	d.handler = handler
	d.initialised = true
	d.mu.Unlock()

	if first && d.air != nil {
		d.wg.Add(1)
		go d.run()
	}
	return nil
}

// Close stops the simulated air. It is safe to call more than once.
func (d *Driver) Close() error {
	d.mu.Lock()
	select {
	case <-d.stop:
	default:
		close(d.stop)
	}
	d.mu.Unlock()
	d.wg.Wait()
	return nil
}

func (d *Driver) SetAddress(slot proto.AddressSlot, addr []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.initialised {
		return proto.ErrNotInitialised
	}

	switch slot {
	case proto.SlotBase0, proto.SlotBase1:
		if len(addr) != proto.BaseAddressSize {
			return proto.ErrInvalidAddressLength
		}
		if slot == proto.SlotBase0 {
			copy(d.base0[:], addr)
		} else {
			copy(d.base1[:], addr)
		}
	case proto.SlotPrefixes:
		if len(addr) != proto.PipeCount {
			return proto.ErrInvalidAddressLength
		}
		copy(d.prefixes[:], addr)
	default:
		return proto.ErrInvalidConfig
	}
	return nil
}

func (d *Driver) WritePayload(p *proto.Payload) error {
	d.mu.Lock()
	if !d.initialised {
		d.mu.Unlock()
		return proto.ErrNotInitialised
	}
	if err := p.Validate(&d.cfg); err != nil {
		d.mu.Unlock()
		return err
	}
	if d.txFifo.full() {
		d.mu.Unlock()
		return proto.ErrQueueFull
	}

	owned := p.Clone()
	d.pids[owned.Pipe] = proto.NextPID(d.pids[owned.Pipe])
	owned.PID = d.pids[owned.Pipe]
	d.txFifo.push(owned)
	d.txLog.push(proto.EncodeFrame(proto.FrameFor(d.pipeLocked(owned.Pipe), owned.PID, owned)))
	auto := d.cfg.TxMode == proto.TxModeAuto
	d.mu.Unlock()

	if auto {
		d.wake()
	}
	return nil
}

func (d *Driver) ReadPayload(p *proto.Payload) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	got, ok := d.rxFifo.pop()
	if !ok {
		return proto.ErrEmpty
	}
	*p = *got
	return nil
}

func (d *Driver) FlushTx() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.txFifo.clear()
	d.flushes++
	return nil
}

func (d *Driver) StartTx() error {
	d.mu.Lock()
	if !d.initialised {
		d.mu.Unlock()
		return proto.ErrNotInitialised
	}
	d.mu.Unlock()
	d.wake()
	return nil
}

func (d *Driver) wake() {
	if d.air == nil {
		return
	}
	select {
	case d.kick <- struct{}{}:
	default:
	}
}

// run plays the radio: every queued payload gets up to RetransmitCount+1 attempts.
// A payload that exhausts its attempts stays in the FIFO until it is flushed.
func (d *Driver) run() {
	defer d.wg.Done()
	for {
		select {
		case <-d.stop:
			return
		case <-d.kick:
		}

		for {
			d.mu.Lock()
			head, ok := d.txFifo.peek()
			cfg := d.cfg
			d.mu.Unlock()
			if !ok {
				break
			}

			attempts, success := d.transmit(head, cfg)
			if success {
				d.mu.Lock()
				if cur, ok := d.txFifo.peek(); ok && cur == head {
					d.txFifo.pop()
				}
				d.mu.Unlock()
			}

			id := proto.EventTxFailed
			if success {
				id = proto.EventTxSuccess
			}
			d.raise(proto.Event{ID: id, TxAttempts: attempts})

			if !success {
				break
			}
		}
	}
}

func (d *Driver) transmit(p *proto.Payload, cfg proto.LinkConfig) (uint32, bool) {
	total := uint32(cfg.RetransmitCount) + 1
	if p.NoAck && cfg.SelectiveAutoAck {
		d.air.delivered()
		return 1, true
	}
	for a := uint32(1); a <= total; a++ {
		select {
		case <-d.stop:
			return a, false
		default:
		}
		if d.air.delivered() {
			return a, true
		}
		if a < total {
			time.Sleep(cfg.RetransmitDelay)
		}
	}
	return total, false
}

func (d *Driver) raise(evt proto.Event) {
	d.mu.Lock()
	h := d.handler
	d.mu.Unlock()
	if h == nil {
		return
	}
	d.eventMu.Lock()
	defer d.eventMu.Unlock()
	h(evt)
}

// Test helper methods

// Complete finishes the transmission at the head of the FIFO as the hardware would.
func (d *Driver) Complete(success bool) bool {
	d.mu.Lock()
	_, ok := d.txFifo.peek()
	if ok && success {
		d.txFifo.pop()
	}
	attempts := uint32(1)
	if !success {
		attempts = uint32(d.cfg.RetransmitCount) + 1
	}
	d.mu.Unlock()
	if !ok {
		return false
	}

	id := proto.EventTxFailed
	if success {
		id = proto.EventTxSuccess
	}
	d.raise(proto.Event{ID: id, TxAttempts: attempts})
	return true
}

// InjectRx buffers a payload as if it had arrived on pipe and raises the receive event.
func (d *Driver) InjectRx(pipe uint8, data []byte) error {
	p, err := proto.NewPayload(pipe, data...)
	if err != nil {
		return err
	}
	if pipe >= proto.PipeCount {
		return proto.ErrInvalidPipe
	}

	d.mu.Lock()
	d.pushRxLocked(p)
	d.mu.Unlock()

	d.raise(proto.Event{ID: proto.EventRxReceived})
	return nil
}

// InjectFrame decodes an on-air frame. Frames for other addresses and repeats of the
// last frame seen on a pipe are dropped, the latter only after being acknowledged.
func (d *Driver) InjectFrame(data []byte) error {
	f, err := proto.DecodeFrame(data)
	if err != nil {
		return err
	}

	d.mu.Lock()
	pipe, ok := d.pipeForLocked(f.Address[:])
	if !ok {
		d.mu.Unlock()
		return nil
	}
	last := &d.lastRx[pipe.Index]
	if last.valid && last.pid == f.PID && last.crc == f.CRC {
		d.mu.Unlock()
		return nil
	}
	*last = rxRecord{pid: f.PID, crc: f.CRC, valid: true}

	p := &proto.Payload{}
	f.Into(pipe.Index, p)
	d.pushRxLocked(p)
	d.mu.Unlock()

	d.raise(proto.Event{ID: proto.EventRxReceived})
	return nil
}

func (d *Driver) pushRxLocked(p *proto.Payload) {
	if d.rxFifo.full() {
		d.rxDrops++
		if d.log != nil {
			d.log.Warn().Uint8("pipe", p.Pipe).Msg("stub rx fifo full, frame dropped")
		}
		return
	}
	d.rxFifo.push(p)
}

func (d *Driver) pipeLocked(index uint8) proto.Pipe {
	p := proto.Pipe{Index: index, Prefix: d.prefixes[index], Base: d.base1}
	if index == 0 {
		p.Base = d.base0
	}
	return p
}

func (d *Driver) pipeForLocked(addr []byte) (proto.Pipe, bool) {
	for i := uint8(0); i < proto.PipeCount; i++ {
		p := d.pipeLocked(i)
		if bytes.Equal(p.Address(), addr) {
			return p, true
		}
	}
	return proto.Pipe{}, false
}

// GetTxLog returns every frame written, oldest first, as it would appear on air.
func (d *Driver) GetTxLog() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	frames := d.txLog.snapshot()
	out := make([][]byte, len(frames))
	for i, f := range frames {
		out[i] = append([]byte(nil), f...)
	}
	return out
}

func (d *Driver) Queued() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.txFifo.len()
}

func (d *Driver) Flushes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.flushes
}

func (d *Driver) Addresses() (base0, base1, prefixes []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.base0[:]...), append([]byte(nil), d.base1[:]...), append([]byte(nil), d.prefixes[:]...)
}

func (d *Driver) Config() proto.LinkConfig {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg
}
