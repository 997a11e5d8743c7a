package entity

import "time"

// Config controls whether new accounts start with a token balance and how it refills.
type Config struct {
	Enabled             bool   `json:"enabled"`
	StartBalance        int64  `json:"startBalance"`
	AutoRefillEnabled   bool   `json:"autoRefillEnabled"`
	RefillIntervalValue int    `json:"refillIntervalValue"`
	RefillIntervalUnit  string `json:"refillIntervalUnit"`
	RefillAmount        int64  `json:"refillAmount"`
}

// Balance is the per-account token credit row.
type Balance struct {
	UserID              string    `db:"user_id" json:"userId"`
	TokenCredits        int64     `db:"token_credits" json:"tokenCredits"`
	AutoRefillEnabled   bool      `db:"auto_refill_enabled" json:"autoRefillEnabled"`
	RefillIntervalValue int       `db:"refill_interval_value" json:"refillIntervalValue"`
	RefillIntervalUnit  string    `db:"refill_interval_unit" json:"refillIntervalUnit"`
	RefillAmount        int64     `db:"refill_amount" json:"refillAmount"`
	LastRefill          time.Time `db:"last_refill" json:"lastRefill"`
}

// Initial returns the starting balance for userID, or nil when balances are disabled.
func (c *Config) Initial(userID string, now time.Time) *Balance {
	if c == nil || !c.Enabled {
		return nil
	}
	b := &Balance{
		UserID:       userID,
		TokenCredits: c.StartBalance,
		LastRefill:   now,
	}
	if c.AutoRefillEnabled && c.RefillIntervalValue > 0 && c.RefillIntervalUnit != "" && c.RefillAmount > 0 {
		b.AutoRefillEnabled = true
		b.RefillIntervalValue = c.RefillIntervalValue
		b.RefillIntervalUnit = c.RefillIntervalUnit
		b.RefillAmount = c.RefillAmount
	}
	return b
}
