//go:build !tinygo && !baremetal

package nrfesb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLink(t *testing.T) {
	link := NewLink(DefaultControllerConfig(), nil)
	require.NoError(t, link.Start(context.Background()))

	require.NoError(t, link.Tick())
	assert.ErrorIs(t, link.Tick(), ErrQueueFull)
}

func TestNewLinkInvalidConfig(t *testing.T) {
	conf := DefaultControllerConfig()
	conf.Link.Channel = 126

	err := NewLink(conf, nil).Start(context.Background())
	var initErr *InitError
	require.ErrorAs(t, err, &initErr)
	assert.Equal(t, "config", initErr.Step)
	assert.ErrorIs(t, err, ErrInvalidChannel)
}
