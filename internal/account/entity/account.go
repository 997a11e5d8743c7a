package entity

import "time"

// Role is the system role of an account.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// ProviderLocal tags accounts that authenticate with a password held here.
const ProviderLocal = "local"

// Account represents a row in the `users` table.
type Account struct {
	ID                string     `db:"id"`
	Email             string     `db:"email"`
	Username          string     `db:"username"`
	Name              string     `db:"name"`
	Avatar            *string    `db:"avatar"`
	Role              Role       `db:"role"`
	Provider          string     `db:"provider"`
	PasswordHash      *string    `db:"password_hash"`
	EmailVerified     bool       `db:"email_verified"`
	PasswordUpdatedAt *time.Time `db:"password_updated_at"`
	CreatedAt         time.Time  `db:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at"`
}

// Summary is the list projection; it never carries the password hash.
type Summary struct {
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	Name      string    `db:"name" json:"name"`
	Username  string    `db:"username" json:"username"`
	Role      Role      `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Identity is the subset returned after create.
type Identity struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

func (a *Account) Summary() Summary {
	return Summary{ID: a.ID, Email: a.Email, Name: a.Name, Username: a.Username, Role: a.Role, CreatedAt: a.CreatedAt}
}

func (a *Account) Identity() Identity {
	return Identity{ID: a.ID, Email: a.Email, Name: a.Name, Username: a.Username}
}
