package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"glowmart/internal/types"
)

// CreditBatchSize is the maximum number of matured ledger entries processed
// per pass. Rows beyond the batch wait for the next interval.
const CreditBatchSize = 200

// CashbackDB defines the database operations needed by the CashbackService.
type CashbackDB interface {
	// DeleteExpiredReserves bulk-deletes pending reserve entries past their
	// expiry. Returns the count of deleted rows.
	DeleteExpiredReserves(ctx context.Context, now time.Time) (int64, error)

	// ListDueEntries returns up to limit pending entries with a non-null
	// eligible_at that has passed, id ascending.
	ListDueEntries(ctx context.Context, now time.Time, limit int) ([]types.WalletLedgerEntry, error)

	// MarkEntryFailed quarantines a single anomalous entry as 'failed'.
	MarkEntryFailed(ctx context.Context, entryID int64) error

	// CreditEntry applies one credit transactionally: wallet row locked,
	// ledger update guarded by status = 'pending', balance snapshots written.
	CreditEntry(ctx context.Context, entry *types.WalletLedgerEntry, now time.Time) (*types.CreditResult, error)
}

// CashbackService implements the cashback maturation pass. Each pass performs
// two operations: unconditional cleanup of expired wallet reserves, then
// maturation of a bounded batch of due pending credits into wallet balances.
type CashbackService struct {
	db     CashbackDB
	logger *slog.Logger
}

// NewCashbackService creates a new CashbackService.
func NewCashbackService(db CashbackDB, logger *slog.Logger) *CashbackService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CashbackService{db: db, logger: logger}
}

// RunPass executes one maturation sweep at the given reference time.
// Returns the number of rows affected (reserves deleted plus entries
// transitioned).
//
// A query failure aborts the whole pass; unprocessed rows are retried on the
// next interval. A per-row failure (credit transaction error) is logged and
// the batch continues, since each row's transition is independent.
func (s *CashbackService) RunPass(ctx context.Context, now time.Time) (int, error) {
	// Step 1: reserve expiry cleanup. A hold that never converted carries no
	// balance impact, so this is a plain bulk delete.
	deleted, err := s.db.DeleteExpiredReserves(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("deleting expired reserves: %w", err)
	}
	if deleted > 0 {
		s.logger.InfoContext(ctx, "expired wallet reserves deleted",
			"count", deleted,
		)
	}

	// Step 2: pending credit maturation.
	entries, err := s.db.ListDueEntries(ctx, now, CreditBatchSize)
	if err != nil {
		return int(deleted), fmt.Errorf("listing due ledger entries: %w", err)
	}

	if len(entries) == 0 {
		return int(deleted), nil
	}

	s.logger.InfoContext(ctx, "maturing pending cashback credits",
		"count", len(entries),
	)

	credited := 0
	quarantined := 0
	skipped := 0
	for i := range entries {
		entry := &entries[i]

		// An entry without an order reference is a creation-path anomaly,
		// not a scheduler bug. Quarantine it and move on.
		if entry.OrderID == nil {
			if err := s.db.MarkEntryFailed(ctx, entry.ID); err != nil {
				s.logger.ErrorContext(ctx, "failed to quarantine anomalous ledger entry",
					"entry_id", entry.ID,
					"error", err,
				)
				continue
			}
			s.logger.WarnContext(ctx, "ledger entry missing order reference, marked failed",
				"entry_id", entry.ID,
				"user_id", entry.UserID,
			)
			quarantined++
			continue
		}

		result, err := s.db.CreditEntry(ctx, entry, now)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to credit ledger entry",
				"entry_id", entry.ID,
				"user_id", entry.UserID,
				"error", err,
			)
			// Retried next pass; the status guard makes retry safe.
			continue
		}

		if !result.Applied {
			// Another instance completed this entry between the list and the
			// credit. Nothing to do.
			skipped++
			continue
		}

		credited++
	}

	s.logger.InfoContext(ctx, "cashback maturation pass complete",
		"reserves_deleted", deleted,
		"credited", credited,
		"quarantined", quarantined,
		"skipped", skipped,
		"batch", len(entries),
	)

	return int(deleted) + credited + quarantined, nil
}
