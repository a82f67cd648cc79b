//go:build !tinygo && !baremetal

// This file is built only for non-embedded targets (host-based testing).
package nrfesb

import (
	"github.com/loopholelabs/logging/types"
	"github.com/ystepanoff/nrfesb/driver/stub"
	"github.com/ystepanoff/nrfesb/transport"
)

func NewTransceiver() transport.Transceiver {
	return stub.New()
}

func NewClock() transport.Clock {
	return &stub.Clock{}
}

func NewIndicator(log types.Logger) transport.StatusIndicator {
	return stub.NewIndicator(log)
}
