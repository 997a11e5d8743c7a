package repo

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-account-admin/internal/setting/entity"
)

var ErrNotFound = errors.New("setting not found")

// Repo is the repository implementation for settings backed by PostgreSQL.
type Repo struct {
	db *sqlx.DB
}

// NewRepo constructs a new Repo with an existing *sqlx.DB connection.
func NewRepo(db *sqlx.DB) *Repo {
	return &Repo{db: db}
}

const settingColumns = `id, parent_id, root_id, record_meta, category, metadata`

func (r *Repo) GetByCategory(ctx context.Context, category string) (*entity.Setting, error) {
	var s entity.Setting
	err := r.db.GetContext(ctx, &s, `SELECT `+settingColumns+` FROM settings WHERE category=$1`, category)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *Repo) List(ctx context.Context) ([]*entity.Setting, error) {
	out := []*entity.Setting{}
	if err := r.db.SelectContext(ctx, &out, `SELECT `+settingColumns+` FROM settings ORDER BY category`); err != nil {
		return nil, err
	}
	return out, nil
}

// Upsert writes a setting keyed by id, replacing its metadata.
func (r *Repo) Upsert(ctx context.Context, s *entity.Setting) error {
	const q = `INSERT INTO settings (id, parent_id, root_id, record_meta, category, metadata)
		VALUES (:id, :parent_id, :root_id, :record_meta, :category, :metadata)
		ON CONFLICT (id) DO UPDATE SET record_meta=EXCLUDED.record_meta, metadata=EXCLUDED.metadata`
	_, err := r.db.NamedExecContext(ctx, q, s)
	return err
}

// MemoryRepo keeps settings in process memory.
type MemoryRepo struct {
	mu       sync.RWMutex
	settings map[string]entity.Setting
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{settings: make(map[string]entity.Setting)}
}

func (r *MemoryRepo) GetByCategory(_ context.Context, category string) (*entity.Setting, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.settings {
		if s.Category == category {
			out := s
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryRepo) List(_ context.Context) ([]*entity.Setting, error) {
	r.mu.RLock()
	out := make([]*entity.Setting, 0, len(r.settings))
	for _, s := range r.settings {
		s := s
		out = append(out, &s)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}

func (r *MemoryRepo) Upsert(_ context.Context, s *entity.Setting) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings[s.ID] = *s
	return nil
}
