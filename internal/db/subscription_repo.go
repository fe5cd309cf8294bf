package db

import (
	"context"
	"time"

	"glowmart/internal/types"
)

// PushSubscriptionRepository provides data access for the push_subscriptions
// table. Subscriptions are created by the client subscription flow; the
// dispatch worker only reads active rows, touches last_used_at on success, and
// soft-disables endpoints the provider reports as gone. Rows are never deleted.
type PushSubscriptionRepository struct {
	db DBTX
}

// NewPushSubscriptionRepository creates a new PushSubscriptionRepository
// backed by the given database connection (pool or transaction).
func NewPushSubscriptionRepository(db DBTX) *PushSubscriptionRepository {
	return &PushSubscriptionRepository{db: db}
}

// ListActive returns all subscriptions with is_active = true, oldest first.
func (r *PushSubscriptionRepository) ListActive(ctx context.Context) ([]types.PushSubscription, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, endpoint, auth, p256dh, is_active, last_used_at
		 FROM push_subscriptions
		 WHERE is_active = true
		 ORDER BY id ASC`,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query active push subscriptions", err)
	}
	defer rows.Close()

	var subs []types.PushSubscription
	for rows.Next() {
		var s types.PushSubscription
		if err := rows.Scan(
			&s.ID,
			&s.Endpoint,
			&s.Auth,
			&s.P256dh,
			&s.IsActive,
			&s.LastUsedAt,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan push subscription", err)
		}
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating push subscriptions", err)
	}

	return subs, nil
}

// TouchLastUsed records a successful delivery time for a subscription.
func (r *PushSubscriptionRepository) TouchLastUsed(ctx context.Context, id int64, now time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE push_subscriptions SET last_used_at = $2 WHERE id = $1`,
		id,
		now,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to touch push subscription", err)
	}
	return nil
}

// Deactivate soft-disables a subscription the provider reported gone. The row
// is kept for audit; it is excluded from every subsequent ListActive result.
func (r *PushSubscriptionRepository) Deactivate(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx,
		`UPDATE push_subscriptions SET is_active = false WHERE id = $1`,
		id,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to deactivate push subscription", err)
	}
	return nil
}
