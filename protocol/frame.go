package protocol

import "encoding/binary"

// Frame represents a frame of data transferred over the radio link.
// Layout: Address(5) | Length(1) | PCF(1) | Payload(0-252) | CRC16(2)
// PCF bits: 2..1 packet id, 0 no-ack. The CRC covers everything before it.
type Frame struct {
	Address [AddressSize]byte
	Length  byte
	PID     uint8
	NoAck   bool
	Payload []byte
	CRC     uint16 // decoded Frames only; ignored by encoder
}

// FrameFor wraps a payload for transmission on pipe p.
func FrameFor(p Pipe, pid uint8, pl *Payload) *Frame {
	f := &Frame{
		PID:     pid & pidMask,
		NoAck:   pl.NoAck,
		Payload: pl.Bytes(),
	}
	copy(f.Address[:], p.Address())
	return f
}

// NextPID returns the packet id that follows pid.
func NextPID(pid uint8) uint8 { return (pid + 1) & pidMask }

func EncodeFrame(f *Frame) []byte {
	if f == nil {
		return make([]byte, 0)
	}

	payloadLen := len(f.Payload)
	if payloadLen > MaxPayloadLength {
		payloadLen = MaxPayloadLength
	}

	totalLen := FrameHeaderSize + payloadLen + CRCSize
	data := make([]byte, totalLen)
	copy(data[0:AddressSize], f.Address[:])
	data[AddressSize] = byte(payloadLen)
	data[AddressSize+LengthFieldSize] = pcf(f.PID, f.NoAck)
	copy(data[FrameHeaderSize:], f.Payload[:payloadLen])

	crcPos := FrameHeaderSize + payloadLen
	binary.BigEndian.PutUint16(data[crcPos:], crc16(data[:crcPos]))

	f.Length = byte(payloadLen)

	return data
}

func DecodeFrame(data []byte) (*Frame, error) {
	if len(data) < FrameHeaderSize+CRCSize {
		return nil, ErrInvalidFrame
	}

	payloadLen := int(data[AddressSize])
	if payloadLen > MaxPayloadLength {
		return nil, ErrInvalidFrame
	}

	crcPos := FrameHeaderSize + payloadLen
	if crcPos+CRCSize > len(data) {
		return nil, ErrInvalidFrame
	}

	recvCRC := binary.BigEndian.Uint16(data[crcPos : crcPos+CRCSize])
	if recvCRC != crc16(data[:crcPos]) {
		return nil, ErrInvalidFrame
	}

	ctrl := data[AddressSize+LengthFieldSize]
	f := &Frame{
		Length:  byte(payloadLen),
		PID:     (ctrl >> 1) & pidMask,
		NoAck:   ctrl&0x01 != 0,
		Payload: make([]byte, payloadLen),
		CRC:     recvCRC,
	}
	copy(f.Address[:], data[:AddressSize])
	copy(f.Payload, data[FrameHeaderSize:crcPos])

	return f, nil
}

// Into copies the frame contents into a payload for pipe.
func (f *Frame) Into(pipe uint8, p *Payload) {
	p.Reset()
	p.Pipe = pipe
	p.PID = f.PID
	p.NoAck = f.NoAck
	p.Length = uint8(copy(p.Data[:], f.Payload))
}

func pcf(pid uint8, noAck bool) byte {
	b := (pid & pidMask) << 1
	if noAck {
		b |= 0x01
	}
	return b
}

// crc16 is CRC-16/CCITT-FALSE (poly 0x1021, init 0xFFFF) as used by ESB.
func crc16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
