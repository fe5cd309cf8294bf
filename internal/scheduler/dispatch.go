package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"glowmart/internal/types"
)

// SubscriptionDB defines the database operations needed by the
// PushDispatchService.
type SubscriptionDB interface {
	ListActive(ctx context.Context) ([]types.PushSubscription, error)
	TouchLastUsed(ctx context.Context, id int64, now time.Time) error
	Deactivate(ctx context.Context, id int64) error
}

// PushSender abstracts the Web Push provider call.
type PushSender interface {
	// Configured reports whether the VAPID credential pair is present.
	// When it is not, dispatch passes skip entirely.
	Configured() bool

	// Send delivers one payload to one subscription. A returned error means
	// the request never produced a provider verdict (network failure, open
	// breaker) and is treated as transient. A non-nil DeliveryResult carries
	// the provider's verdict, including the permanent "gone" case.
	Send(ctx context.Context, sub types.PushSubscription, payload types.BroadcastPayload) (*types.DeliveryResult, error)
}

// PushDispatchService broadcasts one notification to every active push
// subscription per pass, pruning subscriptions the provider reports gone.
// Delivery is idempotent per subscription, so there is no transactional
// concern; each outcome is independent.
type PushDispatchService struct {
	db     SubscriptionDB
	sender PushSender
	logger *slog.Logger
}

// NewPushDispatchService creates a new PushDispatchService.
func NewPushDispatchService(db SubscriptionDB, sender PushSender, logger *slog.Logger) *PushDispatchService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PushDispatchService{db: db, sender: sender, logger: logger}
}

// RunPass executes one broadcast sweep at the given reference time.
// Returns the number of notifications sent.
func (s *PushDispatchService) RunPass(ctx context.Context, now time.Time) (int, error) {
	// Missing credentials is a configuration state, not an error: skip.
	if !s.sender.Configured() {
		s.logger.WarnContext(ctx, "push credentials not configured, skipping dispatch pass")
		return 0, nil
	}

	subs, err := s.db.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing active push subscriptions: %w", err)
	}
	if len(subs) == 0 {
		s.logger.InfoContext(ctx, "no active push subscriptions")
		return 0, nil
	}

	payload := broadcastPayload()

	sent := 0
	pruned := 0
	for _, sub := range subs {
		result, err := s.sender.Send(ctx, sub, payload)
		if err != nil {
			// Transient: leave the subscription untouched, retry next pass.
			s.logger.WarnContext(ctx, "push delivery failed",
				"subscription_id", sub.ID,
				"error", err,
			)
			continue
		}

		if result.Gone {
			// Provider confirmed the endpoint no longer exists. Disable it
			// permanently; it is excluded from every later pass.
			if err := s.db.Deactivate(ctx, sub.ID); err != nil {
				s.logger.ErrorContext(ctx, "failed to deactivate gone subscription",
					"subscription_id", sub.ID,
					"error", err,
				)
				continue
			}
			s.logger.InfoContext(ctx, "deactivated gone push subscription",
				"subscription_id", sub.ID,
				"status", result.StatusCode,
			)
			pruned++
			continue
		}

		if !result.Sent() {
			s.logger.WarnContext(ctx, "push delivery rejected",
				"subscription_id", sub.ID,
				"status", result.StatusCode,
				"reason", result.FailureReason,
			)
			continue
		}

		if err := s.db.TouchLastUsed(ctx, sub.ID, now); err != nil {
			s.logger.WarnContext(ctx, "failed to record push delivery time",
				"subscription_id", sub.ID,
				"error", err,
			)
			// The notification went out; still counts as sent.
		}
		sent++
	}

	s.logger.InfoContext(ctx, "push dispatch pass complete",
		"sent", sent,
		"pruned", pruned,
		"total", len(subs),
	)

	return sent, nil
}

// broadcastPayload builds the fixed promotional payload for one pass. The
// uuid tag uniquifies the pass so clients collapse duplicate notifications.
func broadcastPayload() types.BroadcastPayload {
	return types.BroadcastPayload{
		Title: "GlowMart",
		Body:  "Fresh beauty deals are live. Tap to browse today's offers.",
		Tag:   fmt.Sprintf("glowmart-broadcast-%s", uuid.New().String()[:8]),
		URL:   "/offers",
	}
}
