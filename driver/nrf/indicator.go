//go:build tinygo || baremetal

package nrf

import (
	"machine"

	proto "github.com/ystepanoff/nrfesb/protocol"
)

// LEDs drives three active-low status outputs.
type LEDs struct {
	pins [proto.IndicatorCount]machine.Pin
}

func NewLEDs(pins ...machine.Pin) *LEDs {
	l := &LEDs{}
	for i := range l.pins {
		if i < len(pins) {
			l.pins[i] = pins[i]
		} else {
			l.pins[i] = machine.NoPin
		}
		if l.pins[i] != machine.NoPin {
			l.pins[i].Configure(machine.PinConfig{Mode: machine.PinOutput})
			l.pins[i].High()
		}
	}
	return l
}

func (l *LEDs) Show(p proto.IndicatorPattern) {
	for i, level := range p.Levels() {
		if l.pins[i] != machine.NoPin {
			l.pins[i].Set(level)
		}
	}
}
