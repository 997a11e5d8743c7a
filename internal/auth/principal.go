// Package auth authenticates admin requests with either an API key or a
// session token and attaches the resulting Principal to the request context.
package auth

import (
	"context"

	"github.com/ovaphlow/pitchfork/service-account-admin/internal/account/entity"
)

// Method names the strategy that produced a Principal.
type Method string

const (
	MethodAPIKey  Method = "api_key"
	MethodSession Method = "session"
)

// Principal is the authenticated identity behind a request.
type Principal struct {
	ID          string
	Email       string
	Role        entity.Role
	DisplayName string
	Method      Method
}

const (
	ServicePrincipalID    = "admin-api-service"
	ServicePrincipalEmail = "admin-api@system"
)

// ServicePrincipal is the non-persisted administrator that a valid API key
// stands for.
func ServicePrincipal() Principal {
	return Principal{
		ID:          ServicePrincipalID,
		Email:       ServicePrincipalEmail,
		Role:        entity.RoleAdmin,
		DisplayName: "Admin API Service",
		Method:      MethodAPIKey,
	}
}

func principalFromAccount(a *entity.Account) Principal {
	return Principal{
		ID:          a.ID,
		Email:       a.Email,
		Role:        a.Role,
		DisplayName: a.Name,
		Method:      MethodSession,
	}
}

type principalKey struct{}

// WithPrincipal stores the principal in the context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext extracts the principal from the context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
