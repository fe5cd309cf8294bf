package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"glowmart/internal/types"
)

// PromoDB defines the database operations needed by the PromoLifecycleService.
type PromoDB interface {
	// DeactivateExpired flips is_active off where valid_until < now.
	DeactivateExpired(ctx context.Context, entity types.PromoEntity, now time.Time) (int64, error)

	// ActivateDue flips is_active on where valid_from <= now <= valid_until.
	ActivateDue(ctx context.Context, entity types.PromoEntity, now time.Time) (int64, error)
}

// PromoLifecycleService corrects the is_active flag on offers and contests as
// their validity windows open and close. The flag is eventually consistent:
// it is only corrected at each pass, never continuously.
type PromoLifecycleService struct {
	db     PromoDB
	logger *slog.Logger
	clock  types.Clock
}

// NewPromoLifecycleService creates a new PromoLifecycleService.
func NewPromoLifecycleService(db PromoDB, logger *slog.Logger) *PromoLifecycleService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PromoLifecycleService{db: db, logger: logger, clock: types.RealClock{}}
}

// SetClock overrides the clock used by RunOnce. For tests.
func (s *PromoLifecycleService) SetClock(c types.Clock) {
	s.clock = c
}

// RunPass executes one lifecycle sweep at the given reference time: four bulk
// updates, one per entity-type and direction, with no batch limit.
//
// The order is deliberate: deactivation first, then activation. Combined with
// the valid_until >= now guard on activation, a zero-width window sitting
// exactly at now ends the pass active, and a window strictly in the past can
// never flip back on.
//
// Any update failure aborts the pass; the remaining flips happen on the next
// interval. Returns the total number of rows flipped.
func (s *PromoLifecycleService) RunPass(ctx context.Context, now time.Time) (int, error) {
	expiredOffers, err := s.db.DeactivateExpired(ctx, types.PromoOffer, now)
	if err != nil {
		return 0, fmt.Errorf("deactivating expired offers: %w", err)
	}

	expiredContests, err := s.db.DeactivateExpired(ctx, types.PromoContest, now)
	if err != nil {
		return int(expiredOffers), fmt.Errorf("deactivating expired contests: %w", err)
	}

	activatedOffers, err := s.db.ActivateDue(ctx, types.PromoOffer, now)
	if err != nil {
		return int(expiredOffers + expiredContests), fmt.Errorf("activating due offers: %w", err)
	}

	activatedContests, err := s.db.ActivateDue(ctx, types.PromoContest, now)
	if err != nil {
		return int(expiredOffers + expiredContests + activatedOffers), fmt.Errorf("activating due contests: %w", err)
	}

	total := expiredOffers + expiredContests + activatedOffers + activatedContests
	s.logger.InfoContext(ctx, "promotion lifecycle pass complete",
		"offers_expired", expiredOffers,
		"contests_expired", expiredContests,
		"offers_activated", activatedOffers,
		"contests_activated", activatedContests,
	)

	return int(total), nil
}

// RunOnce executes a single lifecycle sweep on demand, outside the recurring
// schedule. Used by the admin trigger.
func (s *PromoLifecycleService) RunOnce(ctx context.Context) (int, error) {
	return s.RunPass(ctx, s.clock.Now())
}
