package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitial_Disabled(t *testing.T) {
	var nilCfg *Config
	assert.Nil(t, nilCfg.Initial("u1", time.Now()))
	assert.Nil(t, (&Config{StartBalance: 100}).Initial("u1", time.Now()))
}

func TestInitial_StartBalanceOnly(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	b := (&Config{Enabled: true, StartBalance: 500}).Initial("u1", now)
	require.NotNil(t, b)
	assert.Equal(t, "u1", b.UserID)
	assert.Equal(t, int64(500), b.TokenCredits)
	assert.False(t, b.AutoRefillEnabled)
	assert.Equal(t, now, b.LastRefill)
}

func TestInitial_AutoRefillNeedsCompleteSettings(t *testing.T) {
	cfg := &Config{Enabled: true, StartBalance: 1, AutoRefillEnabled: true, RefillIntervalValue: 30, RefillIntervalUnit: "days"}
	assert.False(t, cfg.Initial("u1", time.Now()).AutoRefillEnabled)

	cfg.RefillAmount = 1000
	b := cfg.Initial("u1", time.Now())
	assert.True(t, b.AutoRefillEnabled)
	assert.Equal(t, 30, b.RefillIntervalValue)
	assert.Equal(t, "days", b.RefillIntervalUnit)
	assert.Equal(t, int64(1000), b.RefillAmount)
}
