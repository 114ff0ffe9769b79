package natsx

import (
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURL(t *testing.T) {
	t.Setenv("NATS_URL", "")
	assert.Equal(t, nats.DefaultURL, URL())
	assert.False(t, Configured())

	t.Setenv("NATS_URL", "nats://broker:4222")
	assert.Equal(t, "nats://broker:4222", URL())
	assert.True(t, Configured())
}

func TestNewClientFailsWithoutServer(t *testing.T) {
	t.Setenv("NATS_URL", "nats://127.0.0.1:1")

	_, err := NewClient(nats.Timeout(100 * time.Millisecond))
	require.Error(t, err)
}
