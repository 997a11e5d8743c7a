package entity

import "time"

// RefreshSession represents a persisted refresh session. Token holds the
// SHA-256 digest of the opaque token handed to the client.
type RefreshSession struct {
	ID        int64     `db:"id"`
	Token     string    `db:"token"`
	UserID    string    `db:"user_id"`
	ClientID  string    `db:"client_id"`
	ExpiresAt time.Time `db:"expires_at"`
}

// TokenPair is returned by login and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}
