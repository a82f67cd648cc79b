package protocol

import "time"

// Generic radio & protocol constants (platform independent). All higher layers should depend on this file.
const (
	// Pipes share two base addresses and are told apart by a one byte prefix.
	PipeCount       = 8
	BaseAddressSize = 4
	PrefixSize      = 1
	AddressSize     = PrefixSize + BaseAddressSize

	// Payload sizing
	MaxPayloadLength      = 252 // dynamic payload length (DPL)
	MaxFixedPayloadLength = 32  // legacy fixed length ESB

	// Frame sizing
	// Layout:
	//   Address (5) | Length (1) | PCF (1) | Payload (0-252) | CRC16 (2)
	// PCF carries the 2 bit packet id and the no-ack flag.
	LengthFieldSize = 1
	LengthFieldBits = 8 // on-air length field, wide enough for MaxPayloadLength
	PCFFieldSize    = 1
	CRCSize         = 2

	FrameHeaderSize = AddressSize + LengthFieldSize + PCFFieldSize // 7 bytes
	MaxFrameSize    = FrameHeaderSize + MaxPayloadLength + CRCSize

	// RF defaults (can be overridden per link)
	DefaultChannel         = 2
	MaxChannel             = 125
	DefaultRetransmitDelay = 600 * time.Microsecond
	MinRetransmitDelay     = 250 * time.Microsecond
	MaxRetransmitDelay     = 4000 * time.Microsecond
	DefaultRetransmitCount = 3
	MaxRetransmitCount     = 15

	// Demo loop defaults
	DefaultSendInterval  = 5000 * time.Millisecond
	DefaultSequenceIndex = 1

	// PID is two bits wide
	pidMask = 0x03
)

// Protocol selects between fixed and dynamic payload length framing.
type Protocol uint8

const (
	ProtocolESB Protocol = iota
	ProtocolESBDPL
)

func (p Protocol) String() string {
	switch p {
	case ProtocolESB:
		return "esb"
	case ProtocolESBDPL:
		return "esb_dpl"
	}
	return "unknown"
}

type Bitrate uint8

const (
	Bitrate1Mbps Bitrate = iota
	Bitrate2Mbps
	Bitrate250Kbps
	Bitrate1MbpsBLE
	Bitrate2MbpsBLE
)

func (b Bitrate) String() string {
	switch b {
	case Bitrate1Mbps:
		return "1mbps"
	case Bitrate2Mbps:
		return "2mbps"
	case Bitrate250Kbps:
		return "250kbps"
	case Bitrate1MbpsBLE:
		return "1mbps_ble"
	case Bitrate2MbpsBLE:
		return "2mbps_ble"
	}
	return "unknown"
}

// Mode is the role of the link: PTX transmits and waits for acks, PRX listens and acks.
type Mode uint8

const (
	ModePTX Mode = iota
	ModePRX
)

func (m Mode) String() string {
	switch m {
	case ModePTX:
		return "ptx"
	case ModePRX:
		return "prx"
	}
	return "unknown"
}

type CRC uint8

const (
	CRC16 CRC = iota
	CRC8
	CRCOff
)

func (c CRC) String() string {
	switch c {
	case CRC16:
		return "16bit"
	case CRC8:
		return "8bit"
	case CRCOff:
		return "off"
	}
	return "unknown"
}

// TxMode controls whether a written payload goes on air immediately or waits for StartTx.
type TxMode uint8

const (
	TxModeAuto TxMode = iota
	TxModeManual
)

func (t TxMode) String() string {
	switch t {
	case TxModeAuto:
		return "auto"
	case TxModeManual:
		return "manual"
	}
	return "unknown"
}
