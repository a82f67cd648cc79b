//go:build !tinygo && !baremetal

package stub

import (
	"context"
	"sync"
	"time"

	"github.com/loopholelabs/logging/types"
	proto "github.com/ystepanoff/nrfesb/protocol"
	"github.com/ystepanoff/nrfesb/transport"
)

var (
	_ transport.Transceiver     = (*Driver)(nil)
	_ transport.Clock           = (*Clock)(nil)
	_ transport.StatusIndicator = (*Indicator)(nil)
)

// Clock stands in for the high frequency oscillator. It becomes stable after StartupDelay.
type Clock struct {
	StartupDelay time.Duration
}

func (c *Clock) StartAndWait(ctx context.Context) error {
	if c.StartupDelay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(c.StartupDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return proto.ErrTimeout
	case <-timer.C:
		return nil
	}
}

// Indicator logs the status outputs instead of driving pins.
type Indicator struct {
	mu    sync.Mutex
	log   types.Logger
	last  proto.IndicatorPattern
	shown int
}

func NewIndicator(log types.Logger) *Indicator {
	return &Indicator{log: log}
}

func (i *Indicator) Show(p proto.IndicatorPattern) {
	i.mu.Lock()
	i.last = p
	i.shown++
	i.mu.Unlock()

	if i.log != nil {
		i.log.Debug().Str("outputs", render(p)).Msg("status outputs")
	}
}

func (i *Indicator) Last() (proto.IndicatorPattern, int) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.last, i.shown
}

func render(p proto.IndicatorPattern) string {
	b := make([]byte, len(p))
	for i, lit := range p {
		b[i] = '.'
		if lit {
			b[i] = '*'
		}
	}
	return string(b)
}
