package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-account-admin/internal/balance/entity"
)

// NOTE: expected table schema lives in pkg/database/migrations (balances).

// BalanceRepo provides data access for the balances table.
type BalanceRepo struct{}

func NewBalanceRepo() *BalanceRepo {
	return &BalanceRepo{}
}

// InsertTx writes the starting balance inside the caller's transaction so the
// account and its balance are created together.
func (r *BalanceRepo) InsertTx(ctx context.Context, tx *sqlx.Tx, b *entity.Balance) error {
	const q = `INSERT INTO balances (user_id, token_credits, auto_refill_enabled, refill_interval_value, refill_interval_unit, refill_amount, last_refill)
		VALUES (:user_id, :token_credits, :auto_refill_enabled, :refill_interval_value, :refill_interval_unit, :refill_amount, :last_refill)`
	_, err := tx.NamedExecContext(ctx, q, b)
	return err
}
