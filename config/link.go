package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/hashicorp/hcl/v2/hclwrite"
	proto "github.com/ystepanoff/nrfesb/protocol"
	"github.com/ystepanoff/nrfesb/transport"
)

type LinkSchema struct {
	Link    *RadioSchema   `hcl:"link,block"`
	Address *AddressSchema `hcl:"address,block"`
	Demo    *DemoSchema    `hcl:"demo,block"`
}

type RadioSchema struct {
	Protocol         string `hcl:"protocol,optional"`
	Bitrate          string `hcl:"bitrate,optional"`
	Mode             string `hcl:"mode,optional"`
	RetransmitDelay  string `hcl:"retransmit_delay,optional"`
	RetransmitCount  *int   `hcl:"retransmit_count,optional"`
	Channel          *int   `hcl:"channel,optional"`
	CRC              string `hcl:"crc,optional"`
	TxMode           string `hcl:"tx_mode,optional"`
	SelectiveAutoAck bool   `hcl:"selective_auto_ack,optional"`
	PayloadLength    int    `hcl:"payload_length,optional"`
}

type AddressSchema struct {
	Base0    string   `hcl:"base0,attr"`
	Base1    string   `hcl:"base1,attr"`
	Prefixes []string `hcl:"prefixes,attr"`
}

type DemoSchema struct {
	Interval      string `hcl:"interval,optional"`
	Pipe          int    `hcl:"pipe,optional"`
	MaxRetries    int    `hcl:"max_retries,optional"`
	Payload       string `hcl:"payload,optional"`
	SequenceIndex *int   `hcl:"sequence_index,optional"`
}

// DefaultSchema describes the 2 Mbps dynamic length transmitter the tools start with.
func DefaultSchema() *LinkSchema {
	count := int(proto.DefaultRetransmitCount)
	channel := int(proto.DefaultChannel)
	index := proto.DefaultSequenceIndex
	return &LinkSchema{
		Link: &RadioSchema{
			Protocol:         proto.ProtocolESBDPL.String(),
			Bitrate:          proto.Bitrate2Mbps.String(),
			Mode:             proto.ModePTX.String(),
			RetransmitDelay:  "600us",
			RetransmitCount:  &count,
			Channel:          &channel,
			CRC:              proto.CRC16.String(),
			TxMode:           proto.TxModeAuto.String(),
			SelectiveAutoAck: false,
		},
		Address: &AddressSchema{
			Base0:    "E7E7E7E7",
			Base1:    "C2C2C2C2",
			Prefixes: []string{"E7", "C2", "C3", "C4", "C5", "C6", "C7", "C8"},
		},
		Demo: &DemoSchema{
			Interval:      proto.DefaultSendInterval.String(),
			Pipe:          0,
			MaxRetries:    0,
			Payload:       "0100000011000000",
			SequenceIndex: &index,
		},
	}
}

func ReadSchema(path string) (*LinkSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}

	s := new(LinkSchema)
	return s, s.Decode(data)
}

func (s *LinkSchema) Decode(data []byte) error {
	file, diag := hclsyntax.ParseConfig(data, "", hcl.Pos{Line: 1, Column: 1})
	if diag.HasErrors() {
		return diag.Errs()[0]
	}

	diag = gohcl.DecodeBody(file.Body, nil, s)
	if diag.HasErrors() {
		return diag.Errs()[0]
	}

	return nil
}

func (s *LinkSchema) Encode() ([]byte, error) {
	f := hclwrite.NewEmptyFile()
	gohcl.EncodeIntoBody(s, f.Body())
	return f.Bytes(), nil
}

// ControllerConfig converts the schema, filling anything left out with the defaults.
func (s *LinkSchema) ControllerConfig() (*transport.ControllerConfig, error) {
	conf := transport.DefaultControllerConfig()

	if s.Link != nil {
		if err := s.Link.apply(&conf.Link); err != nil {
			return nil, err
		}
	}
	if s.Address != nil {
		if err := s.Address.apply(&conf.Addresses); err != nil {
			return nil, err
		}
	}
	if s.Demo != nil {
		if err := s.Demo.apply(conf); err != nil {
			return nil, err
		}
	}

	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

func (rs *RadioSchema) apply(c *proto.LinkConfig) error {
	var err error
	if rs.Protocol != "" {
		if c.Protocol, err = parseEnum("protocol", rs.Protocol, proto.ProtocolESB, proto.ProtocolESBDPL); err != nil {
			return err
		}
	}
	if rs.Bitrate != "" {
		if c.Bitrate, err = parseEnum("bitrate", rs.Bitrate, proto.Bitrate1Mbps, proto.Bitrate2Mbps, proto.Bitrate250Kbps, proto.Bitrate1MbpsBLE, proto.Bitrate2MbpsBLE); err != nil {
			return err
		}
	}
	if rs.Mode != "" {
		if c.Mode, err = parseEnum("mode", rs.Mode, proto.ModePTX, proto.ModePRX); err != nil {
			return err
		}
	}
	if rs.CRC != "" {
		if c.CRC, err = parseEnum("crc", rs.CRC, proto.CRC16, proto.CRC8, proto.CRCOff); err != nil {
			return err
		}
	}
	if rs.TxMode != "" {
		if c.TxMode, err = parseEnum("tx_mode", rs.TxMode, proto.TxModeAuto, proto.TxModeManual); err != nil {
			return err
		}
	}
	if rs.RetransmitDelay != "" {
		d, err := time.ParseDuration(rs.RetransmitDelay)
		if err != nil {
			return fmt.Errorf("%w: retransmit_delay: %v", proto.ErrInvalidConfig, err)
		}
		c.RetransmitDelay = d
	}
	if rs.RetransmitCount != nil {
		if *rs.RetransmitCount < 0 || *rs.RetransmitCount > proto.MaxRetransmitCount {
			return fmt.Errorf("%w: retransmit_count %d", proto.ErrInvalidConfig, *rs.RetransmitCount)
		}
		c.RetransmitCount = uint8(*rs.RetransmitCount)
	}
	if rs.Channel != nil {
		if *rs.Channel < 0 || *rs.Channel > proto.MaxChannel {
			return proto.ErrInvalidChannel
		}
		c.Channel = uint8(*rs.Channel)
	}
	if rs.PayloadLength != 0 {
		if rs.PayloadLength < 0 || rs.PayloadLength > proto.MaxFixedPayloadLength {
			return fmt.Errorf("%w: payload_length %d", proto.ErrInvalidConfig, rs.PayloadLength)
		}
		c.PayloadLength = uint8(rs.PayloadLength)
	}
	c.SelectiveAutoAck = rs.SelectiveAutoAck
	return nil
}

func (as *AddressSchema) apply(t *proto.AddressTable) error {
	base0, err := decodeHex("base0", as.Base0)
	if err != nil {
		return err
	}
	base1, err := decodeHex("base1", as.Base1)
	if err != nil {
		return err
	}
	prefixes := make([]byte, 0, len(as.Prefixes))
	for _, p := range as.Prefixes {
		b, err := decodeHex("prefixes", p)
		if err != nil {
			return err
		}
		if len(b) != proto.PrefixSize {
			return &proto.AddrError{Slot: proto.SlotPrefixes, Err: proto.ErrInvalidAddressLength}
		}
		prefixes = append(prefixes, b[0])
	}
	return t.Configure(base0, base1, prefixes)
}

func (ds *DemoSchema) apply(conf *transport.ControllerConfig) error {
	if ds.Interval != "" {
		d, err := time.ParseDuration(ds.Interval)
		if err != nil {
			return fmt.Errorf("%w: interval: %v", proto.ErrInvalidConfig, err)
		}
		conf.SendInterval = d
	}
	if ds.Pipe < 0 || ds.Pipe >= proto.PipeCount {
		return proto.ErrInvalidPipe
	}
	conf.Pipe = uint8(ds.Pipe)
	if ds.MaxRetries < 0 {
		return fmt.Errorf("%w: max_retries %d", proto.ErrInvalidConfig, ds.MaxRetries)
	}
	conf.MaxRetries = uint32(ds.MaxRetries)
	if ds.Payload != "" {
		b, err := decodeHex("payload", ds.Payload)
		if err != nil {
			return err
		}
		conf.Payload = b
	}
	if ds.SequenceIndex != nil {
		conf.SequenceIndex = *ds.SequenceIndex
	}
	return nil
}

func parseEnum[T fmt.Stringer](field, val string, all ...T) (T, error) {
	v := strings.ToLower(strings.TrimSpace(val))
	for _, e := range all {
		if e.String() == v {
			return e, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("%w: unknown %s %q", proto.ErrInvalidConfig, field, val)
}

func decodeHex(field, val string) ([]byte, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(val), "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", proto.ErrInvalidConfig, field, err)
	}
	return b, nil
}
