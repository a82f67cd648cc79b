//go:build tinygo || baremetal

package nrf

import (
	"sync"
	"time"

	proto "github.com/ystepanoff/nrfesb/protocol"
	"github.com/ystepanoff/nrfesb/transport"

	"device/nrf"
)

const fifoDepth = 3

// ackTimeout is how long a transmitter listens for the acknowledgement of one attempt.
const ackTimeout = 200 * time.Microsecond

// Driver is a Transceiver backed by the RADIO peripheral registers. The radio is driven
// from a single goroutine, which is also the only place events are raised from.
type Driver struct {
	mu      sync.Mutex
	cfg     proto.LinkConfig
	handler transport.EventHandler

	prefixes [proto.PipeCount]byte
	pids     [proto.PipeCount]uint8
	lastRx   [proto.PipeCount]uint16 // pid<<8 | first payload byte, 0xFFFF = none

	tx      []*proto.Payload
	rx      []*proto.Payload
	running bool

	buffer [proto.MaxPayloadLength + 2]byte
	ack    [proto.MaxPayloadLength + 2]byte

	kick chan struct{}
	stop chan struct{}
}

func New() *Driver {
	d := &Driver{
		kick: make(chan struct{}, 1),
		stop: make(chan struct{}),
	}
	for i := range d.lastRx {
		d.lastRx[i] = 0xFFFF
	}
	return d
}

func (d *Driver) Init(cfg proto.LinkConfig, handler transport.EventHandler) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := configureRadio(cfg); err != nil {
		return err
	}

	d.mu.Lock()
	d.cfg = cfg
	d.handler = handler
	start := !d.running
	d.running = true
	d.mu.Unlock()

	if start {
		if cfg.Mode == proto.ModePRX {
			go d.listen()
		} else {
			go d.transmitLoop()
		}
	}
	return nil
}

func (d *Driver) SetAddress(slot proto.AddressSlot, addr []byte) error {
	switch slot {
	case proto.SlotBase0, proto.SlotBase1:
		if len(addr) != proto.BaseAddressSize {
			return proto.ErrInvalidAddressLength
		}
		setBase(slot, addr)
	case proto.SlotPrefixes:
		if len(addr) != proto.PipeCount {
			return proto.ErrInvalidAddressLength
		}
		d.mu.Lock()
		copy(d.prefixes[:], addr)
		d.mu.Unlock()
		setPrefixes(addr)
	default:
		return proto.ErrInvalidConfig
	}
	return nil
}

func (d *Driver) WritePayload(p *proto.Payload) error {
	d.mu.Lock()
	if err := p.Validate(&d.cfg); err != nil {
		d.mu.Unlock()
		return err
	}
	if len(d.tx) >= fifoDepth {
		d.mu.Unlock()
		return proto.ErrQueueFull
	}
	owned := p.Clone()
	d.pids[owned.Pipe] = proto.NextPID(d.pids[owned.Pipe])
	owned.PID = d.pids[owned.Pipe]
	d.tx = append(d.tx, owned)
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
	if len(d.rx) == 0 {
		return proto.ErrEmpty
	}
	*p = *d.rx[0]
	d.rx = d.rx[1:]
	return nil
}

func (d *Driver) FlushTx() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tx = d.tx[:0]
	return nil
}

func (d *Driver) StartTx() error {
	d.wake()
	return nil
}

func (d *Driver) wake() {
	select {
	case d.kick <- struct{}{}:
	default:
	}
}

func (d *Driver) raise(evt proto.Event) {
	d.mu.Lock()
	h := d.handler
	d.mu.Unlock()
	if h != nil {
		h(evt)
	}
}

// transmitLoop sends queued payloads, each with up to RetransmitCount+1 attempts.
// A payload that is never acknowledged stays queued until FlushTx.
func (d *Driver) transmitLoop() {
	for {
		select {
		case <-d.stop:
			return
		case <-d.kick:
		}

		for {
			d.mu.Lock()
			if len(d.tx) == 0 {
				d.mu.Unlock()
				break
			}
			p := d.tx[0]
			cfg := d.cfg
			d.mu.Unlock()

			attempts, ok := d.send(p, cfg)
			if ok {
				d.mu.Lock()
				if len(d.tx) > 0 && d.tx[0] == p {
					d.tx = d.tx[1:]
				}
				d.mu.Unlock()
				d.raise(proto.Event{ID: proto.EventTxSuccess, TxAttempts: attempts})
				continue
			}
			d.raise(proto.Event{ID: proto.EventTxFailed, TxAttempts: attempts})
			break
		}
	}
}

func (d *Driver) send(p *proto.Payload, cfg proto.LinkConfig) (uint32, bool) {
	n := d.pack(d.buffer[:], p, cfg)
	nrf.RADIO.TXADDRESS.Set(uint32(p.Pipe))

	noAck := p.NoAck && cfg.SelectiveAutoAck
	total := uint32(cfg.RetransmitCount) + 1
	for a := uint32(1); a <= total; a++ {
		txOnce(d.buffer[:n])
		if noAck {
			return a, true
		}
		if rxOnce(d.ack[:], ackTimeout, d.stop) {
			return a, true
		}
		if a < total {
			time.Sleep(cfg.RetransmitDelay)
		}
	}
	return total, false
}

// listen receives frames on every pipe, acknowledging them unless the sender asked
// for no acknowledgement. A repeat of the last frame on a pipe is acknowledged again
// but not buffered twice.
func (d *Driver) listen() {
	for {
		if !rxOnce(d.buffer[:], 0, d.stop) {
			select {
			case <-d.stop:
				return
			default:
				continue
			}
		}

		d.mu.Lock()
		cfg := d.cfg
		d.mu.Unlock()

		pipe := uint8(nrf.RADIO.RXMATCH.Get())
		p := d.unpack(d.buffer[:], pipe, cfg)
		p.RSSI = -int8(nrf.RADIO.RSSISAMPLE.Get())

		if !p.NoAck || !cfg.SelectiveAutoAck {
			empty := proto.Payload{Pipe: pipe, PID: p.PID}
			n := d.pack(d.ack[:], &empty, cfg)
			nrf.RADIO.TXADDRESS.Set(uint32(pipe))
			txOnce(d.ack[:n])
		}

		key := uint16(p.PID)<<8 | uint16(p.Data[0])
		d.mu.Lock()
		dup := d.lastRx[pipe] == key
		d.lastRx[pipe] = key
		full := len(d.rx) >= fifoDepth
		if !dup && !full {
			d.rx = append(d.rx, p)
		}
		d.mu.Unlock()

		if !dup && !full {
			d.raise(proto.Event{ID: proto.EventRxReceived})
		}
	}
}

func (d *Driver) pack(buf []byte, p *proto.Payload, cfg proto.LinkConfig) int {
	s1 := (p.PID << 1) & 0x06
	if p.NoAck {
		s1 |= 0x01
	}
	if cfg.Protocol == proto.ProtocolESBDPL {
		buf[0] = p.Length
		buf[1] = s1
		return 2 + copy(buf[2:], p.Bytes())
	}
	buf[0] = s1
	return 1 + copy(buf[1:], p.Bytes())
}

func (d *Driver) unpack(buf []byte, pipe uint8, cfg proto.LinkConfig) *proto.Payload {
	p := &proto.Payload{Pipe: pipe}
	var s1 byte
	var data []byte
	if cfg.Protocol == proto.ProtocolESBDPL {
		n := int(buf[0])
		if n > proto.MaxPayloadLength {
			n = proto.MaxPayloadLength
		}
		s1, data = buf[1], buf[2:2+n]
	} else {
		s1, data = buf[0], buf[1:1+int(cfg.PayloadLength)]
	}
	p.PID = (s1 >> 1) & 0x03
	p.NoAck = s1&0x01 != 0
	p.Length = uint8(copy(p.Data[:], data))
	return p
}
