package transport

import (
	"errors"
	"iter"
	"sync/atomic"
	"time"

	"github.com/loopholelabs/logging/types"
	proto "github.com/ystepanoff/nrfesb/protocol"
)

type RxMetrics struct {
	Frames    uint64
	Delivered uint64
	Discarded uint64
	Drains    uint64
	Errors    uint64
}

// RxEngine drains received frames in the interrupt context and hands each non-empty
// payload to the callback. The payload passed to the callback is only valid until the
// callback returns; the buffer is reused for the next frame.
type RxEngine struct {
	radio    Transceiver
	log      types.Logger
	callback func(*proto.Payload)
	buf      proto.Payload

	lastSeen [proto.PipeCount]atomic.Int64 // unix milli, 0 = never

	metricFrames    atomic.Uint64
	metricDelivered atomic.Uint64
	metricDiscarded atomic.Uint64
	metricDrains    atomic.Uint64
	metricErrors    atomic.Uint64
}

func NewRxEngine(radio Transceiver, log types.Logger) *RxEngine {
	return &RxEngine{
		radio: radio,
		log:   log,
	}
}

// RegisterCallback sets the receive callback. Call it before the link starts.
func (r *RxEngine) RegisterCallback(cb func(*proto.Payload)) {
	r.callback = cb
}

// Frames lazily reads buffered frames until the transceiver reports it is empty.
// Every yielded value is the engine's own buffer.
func (r *RxEngine) Frames() iter.Seq[*proto.Payload] {
	return func(yield func(*proto.Payload) bool) {
		for {
			r.buf.Reset()
			err := r.radio.ReadPayload(&r.buf)
			if errors.Is(err, proto.ErrEmpty) {
				return
			}
			if err != nil {
				r.metricErrors.Add(1)
				if r.log != nil {
					r.log.Warn().Err(err).Msg("rx read failed")
				}
				return
			}
			r.metricFrames.Add(1)
			if !yield(&r.buf) {
				return
			}
		}
	}
}

// Drain delivers every buffered non-empty payload and returns how many were delivered.
// Zero length payloads are heartbeats and are dropped.
func (r *RxEngine) Drain() int {
	r.metricDrains.Add(1)
	delivered := 0

	for p := range r.Frames() {
		if p.Pipe < proto.PipeCount {
			r.lastSeen[p.Pipe].Store(time.Now().UnixMilli())
		}
		if p.Length == 0 {
			r.metricDiscarded.Add(1)
			continue
		}
		if r.log != nil {
			r.log.Debug().Uint8("pipe", p.Pipe).Int("length", int(p.Length)).Msg("rx received payload")
		}
		r.metricDelivered.Add(1)
		delivered++
		if r.callback != nil {
			r.callback(p)
		}
	}
	return delivered
}

// PipeLastSeen returns when a frame last arrived on pipe, or the zero time.
func (r *RxEngine) PipeLastSeen(pipe uint8) time.Time {
	if pipe >= proto.PipeCount {
		return time.Time{}
	}
	ms := r.lastSeen[pipe].Load()
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// IsPipeAlive reports whether anything, heartbeats included, arrived on pipe within timeout.
func (r *RxEngine) IsPipeAlive(pipe uint8, timeout time.Duration) bool {
	seen := r.PipeLastSeen(pipe)
	return !seen.IsZero() && time.Since(seen) < timeout
}

func (r *RxEngine) GetMetrics() *RxMetrics {
	return &RxMetrics{
		Frames:    r.metricFrames.Load(),
		Delivered: r.metricDelivered.Load(),
		Discarded: r.metricDiscarded.Load(),
		Drains:    r.metricDrains.Load(),
		Errors:    r.metricErrors.Load(),
	}
}
