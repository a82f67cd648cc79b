//go:build tinygo || baremetal

// This file is built only for embedded targets (using real radio hardware).
package nrfesb

import (
	"machine"

	"github.com/loopholelabs/logging/types"
	"github.com/ystepanoff/nrfesb/driver/nrf"
	"github.com/ystepanoff/nrfesb/transport"
)

func NewTransceiver() transport.Transceiver {
	return nrf.New()
}

func NewClock() transport.Clock {
	return nrf.HFClock{}
}

func NewIndicator(_ types.Logger) transport.StatusIndicator {
	return nrf.NewLEDs(machine.LED1, machine.LED2, machine.LED3)
}
