package db

import (
	"context"
	"fmt"
	"time"

	"glowmart/internal/types"
)

// PromoRepository provides the bulk activate/deactivate updates for the
// time-boxed promotional tables. Offers and contests are structurally
// identical, so one repository serves both via the PromoEntity selector.
type PromoRepository struct {
	db DBTX
}

// NewPromoRepository creates a new PromoRepository backed by the given
// database connection (pool or transaction).
func NewPromoRepository(db DBTX) *PromoRepository {
	return &PromoRepository{db: db}
}

// tableFor maps a promo entity to its table name. The names are compile-time
// constants, never user input, so interpolation into SQL is safe.
func tableFor(entity types.PromoEntity) (string, error) {
	switch entity {
	case types.PromoOffer:
		return "offers", nil
	case types.PromoContest:
		return "contests", nil
	default:
		return "", types.NewAppError(types.ErrCodeInternalUnexpected,
			fmt.Sprintf("unknown promo entity %q", entity), nil)
	}
}

// DeactivateExpired flips is_active off for rows whose validity window has
// closed. No batch limit: all qualifying rows flip in one statement.
//
// SQL: UPDATE <table> SET is_active = false
//
//	WHERE is_active = true AND valid_until < $1
//
// Returns the number of rows deactivated.
func (r *PromoRepository) DeactivateExpired(ctx context.Context, entity types.PromoEntity, now time.Time) (int64, error) {
	table, err := tableFor(entity)
	if err != nil {
		return 0, err
	}

	tag, err := r.db.Exec(ctx,
		fmt.Sprintf(`UPDATE %s
		 SET is_active = false
		 WHERE is_active = true AND valid_until < $1`, table),
		now,
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB,
			fmt.Sprintf("failed to deactivate expired %ss", entity), err)
	}
	return tag.RowsAffected(), nil
}

// ActivateDue flips is_active on for rows whose validity window is open.
// The valid_until >= now guard means a window that closed strictly in the
// past never reactivates, while a zero-width window sitting exactly at now
// ends the pass active (activation wins at the boundary instant).
//
// SQL: UPDATE <table> SET is_active = true
//
//	WHERE is_active = false AND valid_from <= $1 AND valid_until >= $1
//
// Returns the number of rows activated.
func (r *PromoRepository) ActivateDue(ctx context.Context, entity types.PromoEntity, now time.Time) (int64, error) {
	table, err := tableFor(entity)
	if err != nil {
		return 0, err
	}

	tag, err := r.db.Exec(ctx,
		fmt.Sprintf(`UPDATE %s
		 SET is_active = true
		 WHERE is_active = false AND valid_from <= $1 AND valid_until >= $1`, table),
		now,
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB,
			fmt.Sprintf("failed to activate due %ss", entity), err)
	}
	return tag.RowsAffected(), nil
}
