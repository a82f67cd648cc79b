package prometheus

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ystepanoff/nrfesb/driver/stub"
	proto "github.com/ystepanoff/nrfesb/protocol"
	"github.com/ystepanoff/nrfesb/transport"
)

func newTestLink(t *testing.T) (*transport.LinkController, *stub.Driver) {
	t.Helper()
	d := stub.New()
	link := transport.NewLinkController(transport.DefaultControllerConfig(), d, nil, nil, nil)
	require.NoError(t, link.Start(context.Background()))
	return link, d
}

func TestMetricsUpdate(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg, DefaultConfig())
	defer m.Shutdown()

	link, d := newTestLink(t)
	require.NoError(t, link.Tick())
	require.True(t, d.Complete(false))
	require.True(t, d.Complete(true))
	require.NoError(t, d.InjectRx(4, []byte{0x01}))

	m.update("demo", link)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.txSubmitted.WithLabelValues("demo")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.txAcked.WithLabelValues("demo")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.txRetries.WithLabelValues("demo")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.rxDelivered.WithLabelValues("demo")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.linkSequence.WithLabelValues("demo")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.dispatchEvents.WithLabelValues("demo", proto.EventTxFailed.String())))
	assert.Greater(t, testutil.ToFloat64(m.rxPipeLastSeen.WithLabelValues("demo", "4")), float64(0))

	assert.Equal(t, 1, testutil.CollectAndCount(m.linkSequence, "esb_link_sequence"))
}

func TestMetricsAddRemoveLink(t *testing.T) {
	reg := prometheus.NewRegistry()
	conf := DefaultConfig()
	conf.TickLink = time.Millisecond
	m := New(reg, conf)
	defer m.Shutdown()

	link, d := newTestLink(t)
	m.AddLink("demo", link)

	require.NoError(t, link.Tick())
	require.True(t, d.Complete(true))

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(m.txAcked.WithLabelValues("demo")) == 1
	}, time.Second, time.Millisecond)

	m.RemoveLink("demo")
	m.lock.Lock()
	assert.Empty(t, m.cancelfns)
	m.lock.Unlock()
}
