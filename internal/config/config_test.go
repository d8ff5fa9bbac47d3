package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, StoreDriverMySQL, cfg.Store.Driver)
	assert.Equal(t, 30*time.Second, cfg.Order.DedupeWindow)
	assert.Equal(t, 2*time.Minute, cfg.Order.SiblingWindow)
	assert.Equal(t, 2, cfg.Order.ReservationMaxAttempts)
	assert.Equal(t, 24*time.Hour, cfg.Order.CancelledRetention)
	assert.False(t, cfg.Kafka.Enabled())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "file")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("ORDER_DEDUPE_WINDOW", "45s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreDriverFile, cfg.Store.Driver)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Kafka.Enabled())
	assert.Equal(t, 45*time.Second, cfg.Order.DedupeWindow)
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("ORDER_SIBLING_WINDOW", "two minutes")

	_, err := Load()
	assert.Error(t, err)
}
