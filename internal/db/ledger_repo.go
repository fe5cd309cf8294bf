package db

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"glowmart/internal/types"
)

// WalletRepository provides data access for the wallet_ledger_entries and
// wallet_balances tables. It serves the cashback maturation worker: reserve
// expiry cleanup, due-entry batch selection, anomaly quarantine, and the
// transactional credit application.
type WalletRepository struct {
	db PoolTX
}

// NewWalletRepository creates a new WalletRepository backed by the given
// connection pool. A pool (not a bare DBTX) is required because CreditEntry
// opens its own transaction.
func NewWalletRepository(db PoolTX) *WalletRepository {
	return &WalletRepository{db: db}
}

// DeleteExpiredReserves removes pending reserve entries whose hold window has
// lapsed. A reserve that never converted to a credit never touched the
// balance, so this is a plain bulk delete with no per-row processing.
//
// SQL: DELETE FROM wallet_ledger_entries
//
//	WHERE kind = 'reserve' AND status = 'pending' AND expires_at <= $1
//
// Returns the number of rows deleted.
func (r *WalletRepository) DeleteExpiredReserves(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM wallet_ledger_entries
		 WHERE kind = $1 AND status = $2
		   AND expires_at IS NOT NULL AND expires_at <= $3`,
		string(types.LedgerKindReserve),
		string(types.LedgerStatusPending),
		now,
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to delete expired reserves", err)
	}
	return tag.RowsAffected(), nil
}

// ListDueEntries returns up to limit pending ledger entries whose eligibility
// time has passed, in id-ascending order for deterministic batching. Entries
// with a null eligible_at are managed by a different code path and are never
// selected here.
func (r *WalletRepository) ListDueEntries(ctx context.Context, now time.Time, limit int) ([]types.WalletLedgerEntry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, amount, kind, status, eligible_at, expires_at, order_id, created_at
		 FROM wallet_ledger_entries
		 WHERE status = $1 AND eligible_at IS NOT NULL AND eligible_at <= $2
		 ORDER BY id ASC
		 LIMIT $3`,
		string(types.LedgerStatusPending),
		now,
		limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query due ledger entries", err)
	}
	defer rows.Close()

	var entries []types.WalletLedgerEntry
	for rows.Next() {
		var (
			e      types.WalletLedgerEntry
			kind   string
			status string
		)
		if err := rows.Scan(
			&e.ID,
			&e.UserID,
			&e.Amount,
			&kind,
			&status,
			&e.EligibleAt,
			&e.ExpiresAt,
			&e.OrderID,
			&e.CreatedAt,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan ledger entry", err)
		}
		e.Kind = types.LedgerKind(kind)
		e.Status = types.LedgerStatus(status)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating ledger entries", err)
	}

	return entries, nil
}

// MarkEntryFailed transitions a pending entry to the terminal 'failed' state.
// Used to quarantine data-integrity anomalies (entries missing an order_id).
// The status guard keeps terminal states immutable even under concurrent
// sweeps.
func (r *WalletRepository) MarkEntryFailed(ctx context.Context, entryID int64) error {
	_, err := r.db.Exec(ctx,
		`UPDATE wallet_ledger_entries
		 SET status = $2
		 WHERE id = $1 AND status = $3`,
		entryID,
		string(types.LedgerStatusFailed),
		string(types.LedgerStatusPending),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to mark ledger entry failed", err)
	}
	return nil
}

// CreditEntry applies one matured cashback credit atomically:
//
//  1. Ensure the wallet row exists (INSERT .. ON CONFLICT DO NOTHING; wallets
//     are lazily created on first credit).
//  2. SELECT .. FOR UPDATE the wallet row so concurrent credits for the same
//     user serialize.
//  3. UPDATE the ledger entry to 'completed' with before/after snapshots,
//     guarded by status = 'pending'. Zero rows affected means another instance
//     already completed this entry: the transaction rolls back and the wallet
//     is left untouched.
//  4. Write the new wallet balance and total_earned.
//
// The whole sequence is one database transaction, so a crash between the two
// writes cannot double-count on retry.
func (r *WalletRepository) CreditEntry(ctx context.Context, entry *types.WalletLedgerEntry, now time.Time) (*types.CreditResult, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to begin credit transaction", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO wallet_balances (user_id, cashback_balance, total_earned, updated_at)
		 VALUES ($1, 0, 0, $2)
		 ON CONFLICT (user_id) DO NOTHING`,
		entry.UserID,
		now,
	); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to ensure wallet balance row", err)
	}

	var before, earned decimal.Decimal
	if err := tx.QueryRow(ctx,
		`SELECT cashback_balance, total_earned
		 FROM wallet_balances
		 WHERE user_id = $1
		 FOR UPDATE`,
		entry.UserID,
	).Scan(&before, &earned); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to lock wallet balance row", err)
	}

	after := before.Add(entry.Amount)
	newEarned := earned.Add(entry.Amount)

	tag, err := tx.Exec(ctx,
		`UPDATE wallet_ledger_entries
		 SET status = $2, kind = $3, balance_before = $4, balance_after = $5
		 WHERE id = $1 AND status = $6`,
		entry.ID,
		string(types.LedgerStatusCompleted),
		string(types.LedgerKindCredit),
		before,
		after,
		string(types.LedgerStatusPending),
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to complete ledger entry", err)
	}
	if tag.RowsAffected() == 0 {
		// Lost the race to another instance; the rollback in the deferred
		// call discards the wallet lock.
		return &types.CreditResult{Applied: false}, nil
	}

	if _, err := tx.Exec(ctx,
		`UPDATE wallet_balances
		 SET cashback_balance = $2, total_earned = $3, updated_at = $4
		 WHERE user_id = $1`,
		entry.UserID,
		after,
		newEarned,
		now,
	); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to update wallet balance", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to commit credit transaction", err)
	}

	return &types.CreditResult{
		Applied:       true,
		BalanceBefore: before,
		BalanceAfter:  after,
	}, nil
}
