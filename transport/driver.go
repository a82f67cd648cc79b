package transport

import (
	"context"

	proto "github.com/ystepanoff/nrfesb/protocol"
)

// EventHandler is called by the transceiver from its interrupt context.
// Calls must be serialised and the handler must not block.
type EventHandler func(evt proto.Event)

// Transceiver is the interface that wraps the ESB radio operations.
type Transceiver interface {
	Init(cfg proto.LinkConfig, handler EventHandler) error
	SetAddress(slot proto.AddressSlot, addr []byte) error
	// WritePayload queues p for transmission. The transceiver copies p.
	// It returns proto.ErrQueueFull when its transmit FIFO has no room.
	WritePayload(p *proto.Payload) error
	// ReadPayload fills p with the next buffered frame or returns proto.ErrEmpty.
	ReadPayload(p *proto.Payload) error
	FlushTx() error
	StartTx() error
}

// Clock is the timing reference the radio depends on.
type Clock interface {
	// StartAndWait starts the clock and blocks until it is stable or ctx is done.
	StartAndWait(ctx context.Context) error
}

// StatusIndicator drives the three status outputs.
type StatusIndicator interface {
	Show(p proto.IndicatorPattern)
}
