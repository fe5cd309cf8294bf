// Package push delivers Web Push notifications to stored browser
// subscriptions using VAPID-signed requests.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/sony/gobreaker/v2"

	"glowmart/internal/config"
	"glowmart/internal/types"
)

// notificationTTL is how long the push service retains an undelivered
// notification before dropping it. Promotional broadcasts go stale fast.
const notificationTTL = 6 * 60 * 60 // seconds

// sendFunc matches webpush.SendNotificationWithContext. Injectable for tests.
type sendFunc func(ctx context.Context, message []byte, s *webpush.Subscription, options *webpush.Options) (*http.Response, error)

// Sender delivers notifications through the browser vendors' push services.
// All deliveries share one circuit breaker: the vendors sit behind a handful
// of hosts, so a transport-level outage on one delivery predicts the rest.
type Sender struct {
	cfg     config.PushWorkerConfig
	breaker *gobreaker.CircuitBreaker[*http.Response]
	logger  *slog.Logger
	send    sendFunc
}

// NewSender creates a Sender from the push worker configuration.
func NewSender(cfg config.PushWorkerConfig, logger *slog.Logger) *Sender {
	if logger == nil {
		logger = slog.Default()
	}

	breaker := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "webpush",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return &Sender{
		cfg:     cfg,
		breaker: breaker,
		logger:  logger,
		send:    webpush.SendNotificationWithContext,
	}
}

// Configured reports whether the VAPID key pair is present. Without it no
// delivery can be signed, and dispatch passes skip entirely.
func (s *Sender) Configured() bool {
	return s.cfg.VAPIDPublicKey != "" && s.cfg.VAPIDPrivateKey != ""
}

// Send delivers one payload to one subscription.
//
// A returned error means the request produced no provider verdict: the
// payload could not be encoded, the breaker is open, or the request failed at
// the transport level. Callers treat these as transient and retry on a later
// pass. A non-nil DeliveryResult carries the provider's verdict; only
// transport errors count against the breaker, since an HTTP rejection is a
// statement about the subscription, not the service.
func (s *Sender) Send(ctx context.Context, sub types.PushSubscription, payload types.BroadcastPayload) (*types.DeliveryResult, error) {
	message, err := json.Marshal(payload)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode push payload", err)
	}

	target := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			Auth:   sub.Auth,
			P256dh: sub.P256dh,
		},
	}

	opts := &webpush.Options{
		Subscriber:      s.cfg.Subscriber,
		VAPIDPublicKey:  s.cfg.VAPIDPublicKey,
		VAPIDPrivateKey: s.cfg.VAPIDPrivateKey,
		TTL:             notificationTTL,
	}

	resp, err := s.breaker.Execute(func() (*http.Response, error) {
		return s.send(ctx, message, target, opts)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, types.NewAppError(types.ErrCodeUpstreamPush, "push delivery suspended by circuit breaker", err)
		}
		return nil, types.NewAppError(types.ErrCodeUpstreamPush, "push delivery request failed", err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	return verdict(resp.StatusCode), nil
}

// verdict maps a provider HTTP status to a delivery outcome.
func verdict(status int) *types.DeliveryResult {
	switch {
	case status >= 200 && status < 300:
		return &types.DeliveryResult{StatusCode: status}
	case status == http.StatusNotFound || status == http.StatusGone:
		// The subscription no longer exists at the provider.
		return &types.DeliveryResult{
			StatusCode:    status,
			Gone:          true,
			FailureReason: "subscription_gone",
		}
	case status == http.StatusTooManyRequests:
		return &types.DeliveryResult{
			StatusCode:    status,
			Retryable:     true,
			FailureReason: "rate_limited",
		}
	case status >= 500:
		return &types.DeliveryResult{
			StatusCode:    status,
			Retryable:     true,
			FailureReason: fmt.Sprintf("provider_error_%d", status),
		}
	default:
		return &types.DeliveryResult{
			StatusCode:    status,
			FailureReason: fmt.Sprintf("rejected_%d", status),
		}
	}
}
