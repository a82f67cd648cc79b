//go:build tinygo || baremetal

package nrf

import (
	"context"
	"math/bits"
	"time"
	"unsafe"

	proto "github.com/ystepanoff/nrfesb/protocol"

	"device/nrf"
)

// HFClock starts the high frequency crystal the radio runs from.
type HFClock struct{}

func (HFClock) StartAndWait(ctx context.Context) error {
	nrf.CLOCK.EVENTS_HFCLKSTARTED.Set(0)
	nrf.CLOCK.TASKS_HFCLKSTART.Set(1)
	for nrf.CLOCK.EVENTS_HFCLKSTARTED.Get() == 0 {
		if ctx.Err() != nil {
			return proto.ErrTimeout
		}
	}
	return nil
}

func radioMode(b proto.Bitrate) uint32 {
	switch b {
	case proto.Bitrate1Mbps:
		return nrf.RADIO_MODE_MODE_Nrf_1Mbit
	case proto.Bitrate250Kbps:
		return nrf.RADIO_MODE_MODE_Nrf_250Kbit
	case proto.Bitrate1MbpsBLE:
		return nrf.RADIO_MODE_MODE_Ble_1Mbit
	case proto.Bitrate2MbpsBLE:
		return nrf.RADIO_MODE_MODE_Ble_2Mbit
	}
	return nrf.RADIO_MODE_MODE_Nrf_2Mbit
}

// configureRadio programs mode, packet layout and CRC for cfg.
// Dynamic length frames carry a 6 bit length field and a 3 bit S1 field holding the
// packet id and the no-ack flag. Fixed length frames drop the length field.
func configureRadio(cfg proto.LinkConfig) error {
	if cfg.Channel > proto.MaxChannel {
		return proto.ErrInvalidChannel
	}

	nrf.RADIO.POWER.Set(1)
	nrf.RADIO.MODE.Set(radioMode(cfg.Bitrate))
	nrf.RADIO.TXPOWER.Set(nrf.RADIO_TXPOWER_TXPOWER_0dBm)
	nrf.RADIO.FREQUENCY.Set(uint32(cfg.Channel))

	if cfg.Protocol == proto.ProtocolESBDPL {
		nrf.RADIO.PCNF0.Set(
			(proto.LengthFieldBits << nrf.RADIO_PCNF0_LFLEN_Pos) |
				(0 << nrf.RADIO_PCNF0_S0LEN_Pos) |
				(3 << nrf.RADIO_PCNF0_S1LEN_Pos))
		nrf.RADIO.PCNF1.Set(
			(proto.MaxPayloadLength << nrf.RADIO_PCNF1_MAXLEN_Pos) |
				(0 << nrf.RADIO_PCNF1_STATLEN_Pos) |
				((proto.BaseAddressSize) << nrf.RADIO_PCNF1_BALEN_Pos) |
				(nrf.RADIO_PCNF1_ENDIAN_Big << nrf.RADIO_PCNF1_ENDIAN_Pos))
	} else {
		nrf.RADIO.PCNF0.Set(
			(0 << nrf.RADIO_PCNF0_LFLEN_Pos) |
				(0 << nrf.RADIO_PCNF0_S0LEN_Pos) |
				(1 << nrf.RADIO_PCNF0_S1LEN_Pos))
		nrf.RADIO.PCNF1.Set(
			(uint32(cfg.PayloadLength) << nrf.RADIO_PCNF1_MAXLEN_Pos) |
				(uint32(cfg.PayloadLength) << nrf.RADIO_PCNF1_STATLEN_Pos) |
				((proto.BaseAddressSize) << nrf.RADIO_PCNF1_BALEN_Pos) |
				(nrf.RADIO_PCNF1_ENDIAN_Big << nrf.RADIO_PCNF1_ENDIAN_Pos))
	}

	switch cfg.CRC {
	case proto.CRC16:
		nrf.RADIO.CRCCNF.Set(2)
		nrf.RADIO.CRCINIT.Set(0xFFFF)
		nrf.RADIO.CRCPOLY.Set(0x11021)
	case proto.CRC8:
		nrf.RADIO.CRCCNF.Set(1)
		nrf.RADIO.CRCINIT.Set(0xFF)
		nrf.RADIO.CRCPOLY.Set(0x107)
	default:
		nrf.RADIO.CRCCNF.Set(0)
	}
	return nil
}

// addrConv reverses the bit order of every byte; the radio shifts addresses out LSB first.
func addrConv(b []byte) uint32 {
	var v uint32
	for _, x := range b {
		v = v<<8 | uint32(bits.Reverse8(x))
	}
	return v
}

func setBase(slot proto.AddressSlot, addr []byte) {
	if slot == proto.SlotBase0 {
		nrf.RADIO.BASE0.Set(addrConv(addr))
	} else {
		nrf.RADIO.BASE1.Set(addrConv(addr))
	}
}

func setPrefixes(prefixes []byte) {
	var p0, p1 uint32
	for i := 0; i < 4; i++ {
		p0 |= uint32(bits.Reverse8(prefixes[i])) << (8 * i)
		p1 |= uint32(bits.Reverse8(prefixes[i+4])) << (8 * i)
	}
	nrf.RADIO.PREFIX0.Set(p0)
	nrf.RADIO.PREFIX1.Set(p1)
	nrf.RADIO.RXADDRESSES.Set(0xFF)
}

func disable() {
	nrf.RADIO.EVENTS_DISABLED.Set(0)
	nrf.RADIO.TASKS_DISABLE.Set(1)
	for nrf.RADIO.STATE.Get() != nrf.RADIO_STATE_STATE_Disabled {
	}
}

// txOnce sends the packet in buf. It blocks until the END event.
func txOnce(buf []byte) {
	nrf.RADIO.PACKETPTR.Set(uint32(uintptr(unsafe.Pointer(&buf[0]))))
	nrf.RADIO.EVENTS_READY.Set(0)
	nrf.RADIO.EVENTS_END.Set(0)
	nrf.RADIO.TASKS_TXEN.Set(1)
	for nrf.RADIO.EVENTS_READY.Get() == 0 {
	}
	nrf.RADIO.TASKS_START.Set(1)
	for nrf.RADIO.EVENTS_END.Get() == 0 {
	}
	disable()
}

// rxOnce listens into buf until a frame with a good CRC arrives or timeout passes.
// A zero timeout listens until stop is closed.
func rxOnce(buf []byte, timeout time.Duration, stop <-chan struct{}) bool {
	nrf.RADIO.PACKETPTR.Set(uint32(uintptr(unsafe.Pointer(&buf[0]))))
	nrf.RADIO.EVENTS_READY.Set(0)
	nrf.RADIO.EVENTS_END.Set(0)
	nrf.RADIO.TASKS_RXEN.Set(1)
	for nrf.RADIO.EVENTS_READY.Get() == 0 {
	}
	nrf.RADIO.TASKS_START.Set(1)

	start := time.Now()
	for nrf.RADIO.EVENTS_END.Get() == 0 {
		if timeout > 0 && time.Since(start) > timeout {
			disable()
			return false
		}
		select {
		case <-stop:
			disable()
			return false
		default:
		}
	}
	ok := nrf.RADIO.CRCSTATUS.Get() == 1
	disable()
	return ok
}
