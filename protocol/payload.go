package protocol

import "fmt"

// Payload is the unit exchanged with the transceiver.
// Data is a fixed buffer so a receive payload can be reused without allocating.
type Payload struct {
	Pipe   uint8
	Length uint8
	NoAck  bool
	PID    uint8 // receive side only
	RSSI   int8  // receive side only
	Data   [MaxPayloadLength]byte
}

// NewPayload builds a payload for pipe carrying data. Data longer than the buffer is rejected.
func NewPayload(pipe uint8, data ...byte) (*Payload, error) {
	if len(data) > MaxPayloadLength {
		return nil, fmt.Errorf("%w: length %d exceeds %d", ErrInvalidPayload, len(data), MaxPayloadLength)
	}
	p := &Payload{Pipe: pipe, Length: uint8(len(data))}
	copy(p.Data[:], data)
	return p, nil
}

// Bytes returns the used part of the buffer. The slice aliases the payload.
func (p *Payload) Bytes() []byte { return p.Data[:p.Length] }

func (p *Payload) Clone() *Payload {
	c := *p
	return &c
}

// Reset clears a payload so it can be refilled by a read.
func (p *Payload) Reset() {
	*p = Payload{}
}

// Validate checks the payload against the limits of cfg.
func (p *Payload) Validate(cfg *LinkConfig) error {
	if p.Pipe >= PipeCount {
		return fmt.Errorf("%w: pipe %d", ErrInvalidPayload, p.Pipe)
	}
	limit := cfg.MaxPayload()
	if int(p.Length) > limit {
		return fmt.Errorf("%w: length %d exceeds %d", ErrInvalidPayload, p.Length, limit)
	}
	if cfg.Protocol == ProtocolESB && int(p.Length) != limit {
		return fmt.Errorf("%w: fixed length mode needs %d bytes, got %d", ErrInvalidPayload, limit, p.Length)
	}
	return nil
}

func (p *Payload) String() string {
	return fmt.Sprintf("Payload(pipe=%d len=%d noack=%t data=% x)", p.Pipe, p.Length, p.NoAck, p.Bytes())
}
