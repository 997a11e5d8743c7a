package account

import (
	"context"
	"errors"
	"math"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-account-admin/internal/account/entity"
	"github.com/ovaphlow/pitchfork/service-account-admin/internal/account/repo"
	balance "github.com/ovaphlow/pitchfork/service-account-admin/internal/balance/entity"
	"github.com/ovaphlow/pitchfork/service-account-admin/internal/credential"
	"github.com/ovaphlow/pitchfork/service-account-admin/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-account-admin/internal/response"
	"github.com/ovaphlow/pitchfork/service-account-admin/pkg/utilities"
)

// Store is the account persistence the service relies on. Create must report
// an email or username collision as repo.ErrDuplicate; lookups report
// repo.ErrNotFound.
type Store interface {
	Create(ctx context.Context, a *entity.Account, cfg *balance.Config) error
	FindByID(ctx context.Context, id string) (*entity.Account, error)
	FindByEmail(ctx context.Context, email string) (*entity.Account, error)
	FindByUsername(ctx context.Context, username string) (*entity.Account, error)
	UpdatePassword(ctx context.Context, id, hash string) error
	Count(ctx context.Context) (int64, error)
	List(ctx context.Context, skip, limit int) ([]entity.Summary, error)
	DeleteByID(ctx context.Context, id string) (int64, error)
}

// Policy decides registration rules and the starting balance.
type Policy interface {
	IsEmailDomainAllowed(ctx context.Context, email string) (bool, error)
	GetBalanceConfig(ctx context.Context) (*balance.Config, error)
}

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100

	maxPage = math.MaxInt / MaxLimit

	// bcrypt ignores everything past 72 bytes and x/crypto rejects it.
	maxPasswordBytes = 72
)

var (
	ErrBadCredentials = errors.New("invalid credentials")

	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// CreateInput is the payload of Create and Bootstrap. An empty Password asks
// the service to generate one.
type CreateInput struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Password string `json:"password,omitempty"`
}

// Service implements the account lifecycle rules.
type Service struct {
	store    Store
	policy   Policy
	hasher   credential.PasswordHasher
	logger   *zap.SugaredLogger
	generate func() (string, error)
	now      func() time.Time
}

func NewService(store Store, policy Policy, hasher credential.PasswordHasher, logger *zap.SugaredLogger) *Service {
	if hasher == nil {
		hasher = credential.BcryptHasher{}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{
		store:    store,
		policy:   policy,
		hasher:   hasher,
		logger:   logger,
		generate: credential.GeneratePassword,
		now:      time.Now,
	}
}

// Create registers a USER account. Uniqueness is checked before the domain
// policy, so a taken address reports USER_EXISTS even on a blocked domain.
func (s *Service) Create(ctx context.Context, in CreateInput) *Result {
	res := s.create(ctx, in, entity.RoleUser, true)
	s.record("create", res)
	return res
}

// Bootstrap creates an ADMIN account. It skips the domain policy and is only
// reachable from the command line.
func (s *Service) Bootstrap(ctx context.Context, in CreateInput) *Result {
	res := s.create(ctx, in, entity.RoleAdmin, false)
	s.record("bootstrap", res)
	return res
}

func (s *Service) create(ctx context.Context, in CreateInput, role entity.Role, checkDomain bool) *Result {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	name := strings.TrimSpace(in.Name)
	username := strings.TrimSpace(in.Username)

	if email == "" || name == "" || username == "" {
		return failure(response.CodeInvalidInput, "Email, name, and username are required")
	}
	if !emailPattern.MatchString(email) {
		return failure(response.CodeInvalidEmail, "Invalid email format")
	}
	if _, err := s.store.FindByEmail(ctx, email); err == nil {
		return failure(response.CodeUserExists, "User already exists")
	} else if !errors.Is(err, repo.ErrNotFound) {
		return s.internal("lookup account by email", err, "email", email)
	}
	if _, err := s.store.FindByUsername(ctx, username); err == nil {
		return failure(response.CodeUserExists, "Username already exists")
	} else if !errors.Is(err, repo.ErrNotFound) {
		return s.internal("lookup account by username", err, "username", username)
	}

	if checkDomain {
		allowed, err := s.policy.IsEmailDomainAllowed(ctx, email)
		if err != nil {
			return s.internal("check email domain", err, "email", email)
		}
		if !allowed {
			return failure(response.CodeInvalidEmail, "Email domain not allowed")
		}
	}
	if len(in.Password) > maxPasswordBytes {
		return failure(response.CodeInvalidInput, "Password must be at most 72 bytes")
	}

	plain, generated, err := s.resolvePassword(in.Password)
	if err != nil {
		return s.internal("generate password", err)
	}
	hash, err := s.hasher.Hash(plain)
	if err != nil {
		return s.internal("hash password", err)
	}
	bal, err := s.policy.GetBalanceConfig(ctx)
	if err != nil {
		return s.internal("load balance config", err)
	}

	now := s.now().UTC()
	acct := &entity.Account{
		ID:                utilities.NewAccountID(),
		Email:             email,
		Username:          username,
		Name:              name,
		Role:              role,
		Provider:          entity.ProviderLocal,
		PasswordHash:      &hash,
		EmailVerified:     true,
		PasswordUpdatedAt: &now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.store.Create(ctx, acct, bal); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return failure(response.CodeUserExists, "User already exists")
		}
		return s.internal("create account", err, "email", email)
	}

	s.logger.Infow("account created", "userId", acct.ID, "email", email, "username", username, "role", role, "generatedPassword", generated)
	ident := acct.Identity()
	res := &Result{Success: true, Message: "User created successfully", User: &ident}
	if generated {
		res.GeneratedPassword = NewOneTimeSecret(plain)
	}
	return res
}

// NormalizePage applies the listing defaults. Zero means "not given".
// Page is capped at maxPage so the row offset always fits in an int.
func NormalizePage(page, limit int) (int, int) {
	if page < DefaultPage {
		page = DefaultPage
	}
	if page > maxPage {
		page = maxPage
	}
	if limit == 0 {
		limit = DefaultLimit
	}
	if limit < 1 {
		limit = 1
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}

// List returns one page of accounts, newest first.
func (s *Service) List(ctx context.Context, page, limit int) *Result {
	res := s.list(ctx, page, limit)
	s.record("list", res)
	return res
}

func (s *Service) list(ctx context.Context, page, limit int) *Result {
	page, limit = NormalizePage(page, limit)
	skip := (page - 1) * limit

	total, err := s.store.Count(ctx)
	if err != nil {
		return s.internal("count accounts", err)
	}
	users := []entity.Summary{}
	if int64(skip) < total {
		users, err = s.store.List(ctx, skip, limit)
		if err != nil {
			return s.internal("list accounts", err, "page", page, "limit", limit)
		}
	}
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return &Result{
		Success: true,
		Users:   users,
		Pagination: &Pagination{
			CurrentPage: page,
			TotalPages:  totalPages,
			TotalUsers:  total,
			HasNext:     page < totalPages,
			HasPrev:     page > 1,
		},
	}
}

// UpdatePassword replaces the password hash of an account. Nothing else on
// the account changes.
func (s *Service) UpdatePassword(ctx context.Context, userID, password string) *Result {
	res := s.updatePassword(ctx, userID, password)
	s.record("update_password", res)
	return res
}

func (s *Service) updatePassword(ctx context.Context, userID, password string) *Result {
	if _, err := s.store.FindByID(ctx, userID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return failure(response.CodeUserNotFound, "User not found")
		}
		return s.internal("lookup account", err, "userId", userID)
	}
	if len(password) > maxPasswordBytes {
		return failure(response.CodeInvalidInput, "Password must be at most 72 bytes")
	}

	plain, generated, err := s.resolvePassword(password)
	if err != nil {
		return s.internal("generate password", err)
	}
	hash, err := s.hasher.Hash(plain)
	if err != nil {
		return s.internal("hash password", err)
	}
	if err := s.store.UpdatePassword(ctx, userID, hash); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return failure(response.CodeUserNotFound, "User not found")
		}
		return s.internal("update password", err, "userId", userID)
	}

	s.logger.Infow("password updated", "userId", userID, "generatedPassword", generated)
	res := &Result{Success: true, Message: "Password updated successfully"}
	if generated {
		res.GeneratedPassword = NewOneTimeSecret(plain)
	}
	return res
}

// Delete removes a non-admin account.
func (s *Service) Delete(ctx context.Context, userID string) *Result {
	res := s.delete(ctx, userID)
	s.record("delete", res)
	return res
}

func (s *Service) delete(ctx context.Context, userID string) *Result {
	acct, err := s.store.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return failure(response.CodeUserNotFound, "User not found")
		}
		return s.internal("lookup account", err, "userId", userID)
	}
	if acct.Role == entity.RoleAdmin {
		s.logger.Warnw("refused to delete admin account", "userId", userID)
		return failure(response.CodeAdminDeleteForbidden, "Cannot delete admin user")
	}

	n, err := s.store.DeleteByID(ctx, userID)
	if err != nil {
		return s.internal("delete account", err, "userId", userID)
	}
	if n == 0 {
		s.logger.Warnw("delete affected no rows", "userId", userID)
		return failure(response.CodeDeleteFailed, "Failed to delete user")
	}
	s.logger.Infow("account deleted", "userId", userID, "email", acct.Email)
	return &Result{Success: true, Message: "User deleted successfully"}
}

// Authenticate checks a password against a local account found by email
// (identifier contains '@') or username. Every mismatch is ErrBadCredentials.
func (s *Service) Authenticate(ctx context.Context, identifier, password string) (*entity.Account, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, ErrBadCredentials
	}

	var acct *entity.Account
	var err error
	if strings.Contains(identifier, "@") {
		acct, err = s.store.FindByEmail(ctx, strings.ToLower(identifier))
	} else {
		acct, err = s.store.FindByUsername(ctx, identifier)
	}
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrBadCredentials
		}
		return nil, err
	}
	if acct.Provider != entity.ProviderLocal || acct.PasswordHash == nil {
		return nil, ErrBadCredentials
	}
	if !s.hasher.Verify(*acct.PasswordHash, password) {
		return nil, ErrBadCredentials
	}
	return acct, nil
}

// FindByID exposes account lookup to the session-token strategy.
func (s *Service) FindByID(ctx context.Context, id string) (*entity.Account, error) {
	return s.store.FindByID(ctx, id)
}

func (s *Service) resolvePassword(supplied string) (string, bool, error) {
	if supplied != "" {
		return supplied, false, nil
	}
	pw, err := s.generate()
	if err != nil {
		return "", false, err
	}
	return pw, true, nil
}

func (s *Service) internal(op string, err error, kv ...any) *Result {
	s.logger.Errorw(op+" failed", append(kv, "err", err)...)
	return failure(response.CodeInternal, "Something went wrong")
}

func (s *Service) record(op string, res *Result) {
	outcome := "success"
	if !res.Success {
		outcome = string(res.Error)
	}
	metrics.AccountOperationsTotal.WithLabelValues(op, outcome).Inc()
}
