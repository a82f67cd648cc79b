package transport

import (
	"context"
	"fmt"
	"sync"

	proto "github.com/ystepanoff/nrfesb/protocol"
)

// MockTransceiver implements the Transceiver interface for testing. Events are raised
// synchronously from the test goroutine, which stands in for the interrupt context.
type MockTransceiver struct {
	mutex      sync.Mutex
	cfg        proto.LinkConfig
	handler    EventHandler
	txCapacity int
	txFifo     []*proto.Payload
	txLog      []*proto.Payload
	rxData     []*proto.Payload
	calls      []string
	addresses  map[proto.AddressSlot][]byte

	initErr  error
	addrErr  map[proto.AddressSlot]error
	writeErr error
	startErr error
	readErr  error
}

func NewMockTransceiver() *MockTransceiver {
	return &MockTransceiver{
		txCapacity: 3,
		addresses:  make(map[proto.AddressSlot][]byte),
		addrErr:    make(map[proto.AddressSlot]error),
	}
}

func (m *MockTransceiver) Init(cfg proto.LinkConfig, handler EventHandler) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.calls = append(m.calls, "init")
	if m.initErr != nil {
		return m.initErr
	}
	m.cfg = cfg
	m.handler = handler
	return nil
}

func (m *MockTransceiver) SetAddress(slot proto.AddressSlot, addr []byte) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.calls = append(m.calls, "set_address:"+slot.String())
	if err := m.addrErr[slot]; err != nil {
		return err
	}
	m.addresses[slot] = append([]byte(nil), addr...)
	return nil
}

func (m *MockTransceiver) WritePayload(p *proto.Payload) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.calls = append(m.calls, "write")
	if m.writeErr != nil {
		return m.writeErr
	}
	if len(m.txFifo) >= m.txCapacity {
		return proto.ErrQueueFull
	}
	m.txFifo = append(m.txFifo, p.Clone())
	m.txLog = append(m.txLog, p.Clone())
	return nil
}

func (m *MockTransceiver) ReadPayload(p *proto.Payload) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.calls = append(m.calls, "read")
	if m.readErr != nil {
		err := m.readErr
		m.readErr = nil
		return err
	}
	if len(m.rxData) == 0 {
		return proto.ErrEmpty
	}
	*p = *m.rxData[0]
	m.rxData = m.rxData[1:]
	return nil
}

func (m *MockTransceiver) FlushTx() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.calls = append(m.calls, "flush")
	m.txFifo = m.txFifo[:0]
	return nil
}

func (m *MockTransceiver) StartTx() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.calls = append(m.calls, "start")
	return m.startErr
}

// Test helper methods

// CompleteTx finishes the transmission at the head of the FIFO. A failed payload stays
// queued, as it does in hardware.
func (m *MockTransceiver) CompleteTx(success bool, attempts uint32) {
	m.mutex.Lock()
	if success && len(m.txFifo) > 0 {
		m.txFifo = m.txFifo[1:]
	}
	h := m.handler
	m.mutex.Unlock()

	evt := proto.Event{ID: proto.EventTxFailed, TxAttempts: attempts}
	if success {
		evt.ID = proto.EventTxSuccess
	}
	if h != nil {
		h(evt)
	}
}

func (m *MockTransceiver) Raise(evt proto.Event) {
	m.mutex.Lock()
	h := m.handler
	m.mutex.Unlock()
	if h != nil {
		h(evt)
	}
}

func (m *MockTransceiver) InjectRx(pipe uint8, data ...byte) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	p := &proto.Payload{Pipe: pipe, Length: uint8(len(data))}
	copy(p.Data[:], data)
	m.rxData = append(m.rxData, p)
}

func (m *MockTransceiver) Calls() []string {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *MockTransceiver) ClearCalls() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.calls = m.calls[:0]
}

func (m *MockTransceiver) TxLog() []*proto.Payload {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return append([]*proto.Payload(nil), m.txLog...)
}

func (m *MockTransceiver) Queued() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.txFifo)
}

// MockClock records that the link waited for it.
type MockClock struct {
	started bool
	err     error
}

func (c *MockClock) StartAndWait(ctx context.Context) error {
	if c.err != nil {
		return c.err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	c.started = true
	return nil
}

// MockIndicator keeps every pattern shown.
type MockIndicator struct {
	mutex    sync.Mutex
	patterns []proto.IndicatorPattern
}

func (i *MockIndicator) Show(p proto.IndicatorPattern) {
	i.mutex.Lock()
	defer i.mutex.Unlock()
	i.patterns = append(i.patterns, p)
}

func (i *MockIndicator) Last() (proto.IndicatorPattern, bool) {
	i.mutex.Lock()
	defer i.mutex.Unlock()
	if len(i.patterns) == 0 {
		return proto.IndicatorPattern{}, false
	}
	return i.patterns[len(i.patterns)-1], true
}

func (i *MockIndicator) Count() int {
	i.mutex.Lock()
	defer i.mutex.Unlock()
	return len(i.patterns)
}

func mustPayload(pipe uint8, data ...byte) *proto.Payload {
	p, err := proto.NewPayload(pipe, data...)
	if err != nil {
		panic(fmt.Sprintf("bad test payload: %v", err))
	}
	return p
}
