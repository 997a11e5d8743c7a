package setting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	balance "github.com/ovaphlow/pitchfork/service-account-admin/internal/balance/entity"
	"github.com/ovaphlow/pitchfork/service-account-admin/internal/setting/entity"
	"github.com/ovaphlow/pitchfork/service-account-admin/internal/setting/repo"
)

// Store is the persistence the settings service needs.
type Store interface {
	GetByCategory(ctx context.Context, category string) (*entity.Setting, error)
	List(ctx context.Context) ([]*entity.Setting, error)
	Upsert(ctx context.Context, s *entity.Setting) error
}

// Defaults apply when no settings row exists for a category.
type Defaults struct {
	AllowedDomains []string
	Balance        balance.Config
}

// Service encapsulates registration policy and balance configuration.
type Service struct {
	repo     Store
	defaults Defaults
}

// NewService constructs a Service with the provided repository.
func NewService(r Store, d Defaults) *Service {
	return &Service{repo: r, defaults: d}
}

var (
	ErrUnknownCategory = errors.New("unknown setting category")
	ErrInvalidSetting  = errors.New("invalid setting")
)

// IsEmailDomainAllowed reports whether the email's domain may register. An
// empty allowlist admits every domain.
func (s *Service) IsEmailDomainAllowed(ctx context.Context, email string) (bool, error) {
	domains := s.defaults.AllowedDomains
	row, err := s.repo.GetByCategory(ctx, entity.CategoryRegistration)
	switch {
	case err == nil:
		var reg entity.Registration
		if err := json.Unmarshal(row.Metadata, &reg); err != nil {
			return false, fmt.Errorf("decode registration setting: %w", err)
		}
		domains = reg.AllowedDomains
	case !errors.Is(err, repo.ErrNotFound):
		return false, fmt.Errorf("load registration setting: %w", err)
	}

	if len(domains) == 0 {
		return true, nil
	}
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return false, nil
	}
	domain := strings.ToLower(email[at+1:])
	for _, d := range domains {
		if strings.ToLower(strings.TrimSpace(d)) == domain {
			return true, nil
		}
	}
	return false, nil
}

// GetBalanceConfig returns the balance configuration applied to new accounts.
func (s *Service) GetBalanceConfig(ctx context.Context) (*balance.Config, error) {
	cfg := s.defaults.Balance
	row, err := s.repo.GetByCategory(ctx, entity.CategoryBalance)
	switch {
	case err == nil:
		if err := json.Unmarshal(row.Metadata, &cfg); err != nil {
			return nil, fmt.Errorf("decode balance setting: %w", err)
		}
	case !errors.Is(err, repo.ErrNotFound):
		return nil, fmt.Errorf("load balance setting: %w", err)
	}
	return &cfg, nil
}

// List returns every stored setting.
func (s *Service) List(ctx context.Context) ([]*entity.Setting, error) {
	return s.repo.List(ctx)
}

// Put validates metadata against the category's schema and stores it.
func (s *Service) Put(ctx context.Context, category string, metadata json.RawMessage) (*entity.Setting, error) {
	var target any
	switch category {
	case entity.CategoryRegistration:
		target = &entity.Registration{}
	case entity.CategoryBalance:
		target = &balance.Config{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	dec := json.NewDecoder(bytes.NewReader(metadata))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidSetting, category, err)
	}
	normalized, err := json.Marshal(target)
	if err != nil {
		return nil, err
	}
	st := entity.NewSetting(category, normalized)
	if err := s.repo.Upsert(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}
