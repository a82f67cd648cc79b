package transport

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	proto "github.com/ystepanoff/nrfesb/protocol"
)

func TestRxEngineDrain(t *testing.T) {
	radio := NewMockTransceiver()
	rx := NewRxEngine(radio, nil)

	var got [][]byte
	var pipes []uint8
	rx.RegisterCallback(func(p *proto.Payload) {
		got = append(got, append([]byte(nil), p.Bytes()...))
		pipes = append(pipes, p.Pipe)
	})

	radio.InjectRx(0, 0x01, 0x02)
	radio.InjectRx(3)
	radio.InjectRx(1, 0x03)

	n := rx.Drain()
	assert.Equal(t, 2, n)
	assert.Equal(t, [][]byte{{0x01, 0x02}, {0x03}}, got)
	assert.Equal(t, []uint8{0, 1}, pipes)

	m := rx.GetMetrics()
	assert.Equal(t, uint64(3), m.Frames)
	assert.Equal(t, uint64(2), m.Delivered)
	assert.Equal(t, uint64(1), m.Discarded)
	assert.Equal(t, uint64(1), m.Drains)
}

func TestRxEngineDrainEmpty(t *testing.T) {
	radio := NewMockTransceiver()
	rx := NewRxEngine(radio, nil)

	calls := 0
	rx.RegisterCallback(func(*proto.Payload) { calls++ })

	radio.InjectRx(0, 0x01)
	assert.Equal(t, 1, rx.Drain())

	// A second drain with nothing buffered has no side effects.
	assert.Equal(t, 0, rx.Drain())
	assert.Equal(t, 1, calls)
	assert.Equal(t, uint64(1), rx.GetMetrics().Delivered)
}

func TestRxEngineReadError(t *testing.T) {
	radio := NewMockTransceiver()
	rx := NewRxEngine(radio, nil)

	radio.InjectRx(0, 0x01)
	radio.readErr = errors.New("bus fault")

	assert.Equal(t, 0, rx.Drain())
	assert.Equal(t, uint64(1), rx.GetMetrics().Errors)

	// The frame is still buffered for the next event.
	assert.Equal(t, 1, rx.Drain())
}

func TestRxEngineFramesStopsEarly(t *testing.T) {
	radio := NewMockTransceiver()
	rx := NewRxEngine(radio, nil)

	radio.InjectRx(0, 0x01)
	radio.InjectRx(0, 0x02)
	radio.InjectRx(0, 0x03)

	for p := range rx.Frames() {
		assert.Equal(t, byte(0x01), p.Data[0])
		break
	}

	var rest []byte
	for p := range rx.Frames() {
		rest = append(rest, p.Data[0])
	}
	assert.Equal(t, []byte{0x02, 0x03}, rest)
}

func TestRxEnginePipeLiveness(t *testing.T) {
	radio := NewMockTransceiver()
	rx := NewRxEngine(radio, nil)

	assert.True(t, rx.PipeLastSeen(2).IsZero())
	assert.False(t, rx.IsPipeAlive(2, time.Second))
	assert.True(t, rx.PipeLastSeen(proto.PipeCount).IsZero())

	// Heartbeats count towards liveness even though they are not delivered.
	radio.InjectRx(2)
	require.Equal(t, 0, rx.Drain())

	assert.False(t, rx.PipeLastSeen(2).IsZero())
	assert.True(t, rx.IsPipeAlive(2, time.Minute))
	assert.False(t, rx.IsPipeAlive(1, time.Minute))
}
