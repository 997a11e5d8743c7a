package repo

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ovaphlow/pitchfork/service-account-admin/internal/account/entity"
	balance "github.com/ovaphlow/pitchfork/service-account-admin/internal/balance/entity"
)

// MemoryRepo is a thread-safe account store for single-process runs and tests.
// It enforces the same email/username uniqueness as the postgres indexes.
type MemoryRepo struct {
	mu       sync.RWMutex
	accounts map[string]entity.Account
	balances map[string]balance.Balance
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		accounts: make(map[string]entity.Account),
		balances: make(map[string]balance.Balance),
	}
}

func (r *MemoryRepo) Create(ctx context.Context, a *entity.Account, cfg *balance.Config) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[a.ID]; ok {
		return ErrDuplicate
	}
	for _, existing := range r.accounts {
		if strings.EqualFold(existing.Email, a.Email) || existing.Username == a.Username {
			return ErrDuplicate
		}
	}
	r.accounts[a.ID] = *a
	if b := cfg.Initial(a.ID, a.CreatedAt); b != nil {
		r.balances[a.ID] = *b
	}
	return nil
}

func (r *MemoryRepo) FindByID(ctx context.Context, id string) (*entity.Account, error) {
	return r.find(ctx, func(a *entity.Account) bool { return a.ID == id })
}

func (r *MemoryRepo) FindByEmail(ctx context.Context, email string) (*entity.Account, error) {
	return r.find(ctx, func(a *entity.Account) bool { return strings.EqualFold(a.Email, email) })
}

func (r *MemoryRepo) FindByUsername(ctx context.Context, username string) (*entity.Account, error) {
	return r.find(ctx, func(a *entity.Account) bool { return a.Username == username })
}

func (r *MemoryRepo) find(ctx context.Context, match func(*entity.Account) bool) (*entity.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.accounts {
		if match(&a) {
			out := a
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryRepo) UpdatePassword(ctx context.Context, id, hash string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	a.PasswordHash = &hash
	a.PasswordUpdatedAt = &now
	a.UpdatedAt = now
	r.accounts[id] = a
	return nil
}

func (r *MemoryRepo) Count(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.accounts)), nil
}

func (r *MemoryRepo) List(ctx context.Context, skip, limit int) ([]entity.Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	all := make([]entity.Summary, 0, len(r.accounts))
	for _, a := range r.accounts {
		all = append(all, a.Summary())
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})
	if skip < 0 {
		skip = 0
	}
	if skip >= len(all) {
		return []entity.Summary{}, nil
	}
	end := len(all)
	if limit >= 0 && limit < end-skip {
		end = skip + limit
	}
	return all[skip:end], nil
}

func (r *MemoryRepo) DeleteByID(ctx context.Context, id string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[id]; !ok {
		return 0, nil
	}
	delete(r.accounts, id)
	delete(r.balances, id)
	return 1, nil
}

// Balance returns the stored balance of an account.
func (r *MemoryRepo) Balance(id string) (balance.Balance, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.balances[id]
	return b, ok
}
