package account

import (
	"encoding/json"
	"sync"

	"github.com/ovaphlow/pitchfork/service-account-admin/internal/account/entity"
	"github.com/ovaphlow/pitchfork/service-account-admin/internal/response"
)

// Pagination describes one page of a listing.
type Pagination struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	TotalUsers  int64 `json:"totalUsers"`
	HasNext     bool  `json:"hasNext"`
	HasPrev     bool  `json:"hasPrev"`
}

// Result is the envelope every service operation returns. Handlers look at
// Success and Error only; they never see internal errors.
type Result struct {
	Success    bool
	Message    string
	Error      response.ErrorCode
	User       *entity.Identity
	Users      []entity.Summary
	Pagination *Pagination
	// GeneratedPassword is set only when the service generated the password.
	GeneratedPassword *OneTimeSecret
}

// MarshalJSON flattens the payload next to success/message/error. The
// generated password is revealed here, so a Result can disclose it once.
func (r Result) MarshalJSON() ([]byte, error) {
	out := struct {
		Success           bool               `json:"success"`
		Message           string             `json:"message,omitempty"`
		Error             response.ErrorCode `json:"error,omitempty"`
		User              *entity.Identity   `json:"user,omitempty"`
		Users             *[]entity.Summary  `json:"users,omitempty"`
		Pagination        *Pagination        `json:"pagination,omitempty"`
		GeneratedPassword string             `json:"generatedPassword,omitempty"`
	}{
		Success:    r.Success,
		Message:    r.Message,
		Error:      r.Error,
		User:       r.User,
		Pagination: r.Pagination,
	}
	if r.Pagination != nil {
		users := r.Users
		if users == nil {
			users = []entity.Summary{}
		}
		out.Users = &users
	}
	if r.GeneratedPassword != nil {
		out.GeneratedPassword, _ = r.GeneratedPassword.Reveal()
	}
	return json.Marshal(out)
}

func failure(code response.ErrorCode, message string) *Result {
	return &Result{Success: false, Message: message, Error: code}
}

// OneTimeSecret carries a plaintext that can be read exactly once. Formatting
// it (fmt, zap) never prints the value.
type OneTimeSecret struct {
	mu       sync.Mutex
	value    string
	revealed bool
}

func NewOneTimeSecret(v string) *OneTimeSecret {
	return &OneTimeSecret{value: v}
}

// Reveal returns the plaintext on the first call and ("", false) afterwards.
func (s *OneTimeSecret) Reveal() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.revealed {
		return "", false
	}
	v := s.value
	s.value = ""
	s.revealed = true
	return v, true
}

func (s *OneTimeSecret) String() string   { return "[REDACTED]" }
func (s *OneTimeSecret) GoString() string { return "[REDACTED]" }
