// Package nrfesb provides a façade to access the Enhanced ShockBurst link layer.
package nrfesb

import (
	"github.com/loopholelabs/logging/types"
	"github.com/ystepanoff/nrfesb/protocol"
	"github.com/ystepanoff/nrfesb/transport"
)

// The platform specific pieces are split into build-tag specific files:
// - constructors_nrf.go - for embedded platforms (//go:build tinygo || baremetal)
// - constructors_host.go - for development/testing (//go:build !tinygo && !baremetal)

type (
	Payload          = protocol.Payload
	LinkConfig       = protocol.LinkConfig
	AddressTable     = protocol.AddressTable
	Event            = protocol.Event
	ControllerConfig = transport.ControllerConfig
	LinkController   = transport.LinkController
	TxReport         = transport.TxReport
	InitError        = transport.InitError
)

// Error constants exposed in the public API
var (
	ErrInvalidPayload       = protocol.ErrInvalidPayload
	ErrQueueFull            = protocol.ErrQueueFull
	ErrEmpty                = protocol.ErrEmpty
	ErrInvalidAddressLength = protocol.ErrInvalidAddressLength
	ErrInvalidConfig        = protocol.ErrInvalidConfig
	ErrInvalidChannel       = protocol.ErrInvalidChannel
	ErrTimeout              = protocol.ErrTimeout
)

// Constants exposed in the public API
const (
	ModePTX = protocol.ModePTX
	ModePRX = protocol.ModePRX

	EventTxSuccess  = protocol.EventTxSuccess
	EventTxFailed   = protocol.EventTxFailed
	EventRxReceived = protocol.EventRxReceived
)

func DefaultControllerConfig() *ControllerConfig {
	return transport.DefaultControllerConfig()
}

// NewLink wires a link controller to the platform transceiver, clock and status outputs.
// log may be nil.
func NewLink(conf *ControllerConfig, log types.Logger) *LinkController {
	return transport.NewLinkController(conf, NewTransceiver(), NewClock(), NewIndicator(log), log)
}
