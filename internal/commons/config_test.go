package commons

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9090
store:
  driver: file
  dataDir: /var/lib/bazaar
order:
  dedupeWindow: 1m
  reservationMaxAttempts: 3
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "file", cfg.Store.Driver)
	assert.Equal(t, "/var/lib/bazaar", cfg.Store.DataDir)
	assert.Equal(t, time.Minute, cfg.Order.DedupeWindow)
	assert.Equal(t, 3, cfg.Order.ReservationMaxAttempts)
	assert.Equal(t, 2*time.Minute, cfg.Order.SiblingWindow)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}
