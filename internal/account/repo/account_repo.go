package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ovaphlow/pitchfork/service-account-admin/internal/account/entity"
	balance "github.com/ovaphlow/pitchfork/service-account-admin/internal/balance/entity"
	balancerepo "github.com/ovaphlow/pitchfork/service-account-admin/internal/balance/repo"
)

var (
	ErrNotFound  = errors.New("account not found")
	ErrDuplicate = errors.New("account already exists")
)

const uniqueViolation = "23505"

const accountColumns = `id, email, username, name, avatar, role, provider, password_hash,
	email_verified, password_updated_at, created_at, updated_at`

// AccountRepo provides data access for the users table using sqlx.
type AccountRepo struct {
	db       *sqlx.DB
	balances *balancerepo.BalanceRepo
}

func NewAccountRepo(db *sqlx.DB) *AccountRepo {
	return &AccountRepo{db: db, balances: balancerepo.NewBalanceRepo()}
}

// Create inserts the account and, when enabled, its starting balance in one
// transaction. A unique index hit on email or username yields ErrDuplicate.
func (r *AccountRepo) Create(ctx context.Context, a *entity.Account, cfg *balance.Config) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const q = `INSERT INTO users (id, email, username, name, avatar, role, provider, password_hash, email_verified, password_updated_at, created_at, updated_at)
		VALUES (:id, :email, :username, :name, :avatar, :role, :provider, :password_hash, :email_verified, :password_updated_at, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, q, a); err != nil {
		return translate(err)
	}
	if b := cfg.Initial(a.ID, a.CreatedAt); b != nil {
		if err = r.balances.InsertTx(ctx, tx, b); err != nil {
			return fmt.Errorf("insert balance: %w", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return translate(err)
	}
	return nil
}

func (r *AccountRepo) FindByID(ctx context.Context, id string) (*entity.Account, error) {
	return r.findOne(ctx, `SELECT `+accountColumns+` FROM users WHERE id=$1`, id)
}

// FindByEmail matches case-insensitively (citext).
func (r *AccountRepo) FindByEmail(ctx context.Context, email string) (*entity.Account, error) {
	return r.findOne(ctx, `SELECT `+accountColumns+` FROM users WHERE email=$1`, email)
}

func (r *AccountRepo) FindByUsername(ctx context.Context, username string) (*entity.Account, error) {
	return r.findOne(ctx, `SELECT `+accountColumns+` FROM users WHERE username=$1`, username)
}

func (r *AccountRepo) findOne(ctx context.Context, q string, arg any) (*entity.Account, error) {
	var a entity.Account
	if err := r.db.GetContext(ctx, &a, q, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// UpdatePassword replaces the password hash only.
func (r *AccountRepo) UpdatePassword(ctx context.Context, id, hash string) error {
	const q = `UPDATE users SET password_hash=$2, password_updated_at=$3, updated_at=$3 WHERE id=$1`
	res, err := r.db.ExecContext(ctx, q, id, hash, time.Now().UTC())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *AccountRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, err
	}
	return n, nil
}

// List returns one page of summaries, newest first.
func (r *AccountRepo) List(ctx context.Context, skip, limit int) ([]entity.Summary, error) {
	const q = `SELECT id, email, name, username, role, created_at FROM users
		ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`
	out := []entity.Summary{}
	if err := r.db.SelectContext(ctx, &out, q, limit, skip); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteByID removes the account and returns the number of rows deleted.
func (r *AccountRepo) DeleteByID(ctx context.Context, id string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id=$1`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func translate(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicate, pqErr.Constraint)
	}
	return err
}
