package repo

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-account-admin/internal/session/entity"
)

var ErrNotFound = errors.New("refresh session not found")

// RefreshRepo persists refresh sessions in the refresh_sessions table.
type RefreshRepo struct {
	db *sqlx.DB
}

func NewRefreshRepo(db *sqlx.DB) *RefreshRepo {
	return &RefreshRepo{db: db}
}

func (r *RefreshRepo) Save(ctx context.Context, s *entity.RefreshSession) error {
	const q = `INSERT INTO refresh_sessions (token, user_id, client_id, expires_at)
		VALUES ($1, $2, $3, $4) RETURNING id`
	return r.db.QueryRowxContext(ctx, q, s.Token, s.UserID, s.ClientID, s.ExpiresAt).Scan(&s.ID)
}

// Take deletes the session and returns it, so a token can be used once.
func (r *RefreshRepo) Take(ctx context.Context, token string) (*entity.RefreshSession, error) {
	const q = `DELETE FROM refresh_sessions WHERE token = $1
		RETURNING id, token, user_id, client_id, expires_at`
	var s entity.RefreshSession
	if err := r.db.GetContext(ctx, &s, q, token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *RefreshRepo) Delete(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM refresh_sessions WHERE token = $1`, token)
	return err
}

// MemoryRepo keeps refresh sessions in process memory.
type MemoryRepo struct {
	mu       sync.Mutex
	seq      int64
	sessions map[string]entity.RefreshSession
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{sessions: make(map[string]entity.RefreshSession)}
}

func (r *MemoryRepo) Save(ctx context.Context, s *entity.RefreshSession) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	s.ID = r.seq
	r.sessions[s.Token] = *s
	return nil
}

func (r *MemoryRepo) Take(ctx context.Context, token string) (*entity.RefreshSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[token]
	if !ok {
		return nil, ErrNotFound
	}
	delete(r.sessions, token)
	return &s, nil
}

func (r *MemoryRepo) Delete(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	delete(r.sessions, token)
	r.mu.Unlock()
	return nil
}
