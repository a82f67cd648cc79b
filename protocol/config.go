package protocol

import "time"

// LinkConfig describes how the transceiver is initialised. It is immutable once the
// link is started.
type LinkConfig struct {
	Protocol         Protocol
	Bitrate          Bitrate
	Mode             Mode
	RetransmitDelay  time.Duration
	RetransmitCount  uint8
	Channel          uint8
	CRC              CRC
	TxMode           TxMode
	SelectiveAutoAck bool
	PayloadLength    uint8 // fixed length ESB only
}

// DefaultLinkConfig matches a 2 Mbps dynamic payload length transmitter.
func DefaultLinkConfig() LinkConfig {
	return LinkConfig{
		Protocol:         ProtocolESBDPL,
		Bitrate:          Bitrate2Mbps,
		Mode:             ModePTX,
		RetransmitDelay:  DefaultRetransmitDelay,
		RetransmitCount:  DefaultRetransmitCount,
		Channel:          DefaultChannel,
		CRC:              CRC16,
		TxMode:           TxModeAuto,
		SelectiveAutoAck: false,
		PayloadLength:    MaxFixedPayloadLength,
	}
}

// MaxPayload is the largest payload the link accepts.
func (c *LinkConfig) MaxPayload() int {
	if c.Protocol == ProtocolESB {
		return int(c.PayloadLength)
	}
	return MaxPayloadLength
}

// Validate rejects unsupported settings and combinations instead of degrading silently.
func (c *LinkConfig) Validate() error {
	switch c.Protocol {
	case ProtocolESB:
		if c.PayloadLength == 0 || c.PayloadLength > MaxFixedPayloadLength {
			return configError("fixed payload length %d out of range 1-%d", c.PayloadLength, MaxFixedPayloadLength)
		}
	case ProtocolESBDPL:
	default:
		return configError("unknown protocol %d", c.Protocol)
	}

	switch c.Bitrate {
	case Bitrate1Mbps, Bitrate2Mbps, Bitrate250Kbps:
	case Bitrate1MbpsBLE, Bitrate2MbpsBLE:
		if c.Protocol != ProtocolESBDPL {
			return configError("bitrate %s requires protocol %s", c.Bitrate, ProtocolESBDPL)
		}
	default:
		return configError("unknown bitrate %d", c.Bitrate)
	}

	if c.Mode != ModePTX && c.Mode != ModePRX {
		return configError("unknown mode %d", c.Mode)
	}
	if c.TxMode != TxModeAuto && c.TxMode != TxModeManual {
		return configError("unknown tx mode %d", c.TxMode)
	}

	switch c.CRC {
	case CRC16, CRC8:
	case CRCOff:
		if c.Mode == ModePTX {
			return configError("crc off cannot validate acknowledgements")
		}
	default:
		return configError("unknown crc %d", c.CRC)
	}

	if c.RetransmitDelay < MinRetransmitDelay || c.RetransmitDelay > MaxRetransmitDelay {
		return configError("retransmit delay %s out of range %s-%s", c.RetransmitDelay, MinRetransmitDelay, MaxRetransmitDelay)
	}
	if c.RetransmitCount > MaxRetransmitCount {
		return configError("retransmit count %d exceeds %d", c.RetransmitCount, MaxRetransmitCount)
	}
	if c.Channel > MaxChannel {
		return ErrInvalidChannel
	}
	return nil
}
