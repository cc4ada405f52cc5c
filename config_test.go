package udpqueue

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
queue_buffer_capacity: 1000
packet_interval: 20ms
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.QueueBufferCapacity)
	assert.Equal(t, 20*time.Millisecond, cfg.PacketInterval)
	assert.Equal(t, defaultMinSleep, cfg.MinSleep)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "udpqueue", cfg.Metrics.Namespace)
}

func TestLoadRejectsNonPositiveCapacity(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
queue_buffer_capacity: 0
packet_interval: 20ms
`), 0o600))

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
