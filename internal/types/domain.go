package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// WalletLedgerEntry is a per-user, per-event financial record in the cashback
// ledger. Entries are created in 'pending' state by the order-delivery flow.
//
// A pending entry with a non-null EligibleAt belongs to the maturation
// scheduler. A pending entry with EligibleAt == nil is managed by a different
// code path and must never be touched by the scheduler.
type WalletLedgerEntry struct {
	ID     int64           `json:"id" db:"id"`
	UserID int64           `json:"user_id" db:"user_id"`
	Amount decimal.Decimal `json:"amount" db:"amount"`
	Kind   LedgerKind      `json:"kind" db:"kind"`
	Status LedgerStatus    `json:"status" db:"status"`

	// Scheduling
	EligibleAt *time.Time `json:"eligible_at,omitempty" db:"eligible_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty" db:"expires_at"` // reserve holds only

	// Provenance
	OrderID *int64 `json:"order_id,omitempty" db:"order_id"`

	// Balance snapshots, set when the entry completes.
	BalanceBefore *decimal.Decimal `json:"balance_before,omitempty" db:"balance_before"`
	BalanceAfter  *decimal.Decimal `json:"balance_after,omitempty" db:"balance_after"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// WalletBalance is the per-user cashback aggregate. It is lazily created on
// first credit and never deleted. CashbackBalance equals the sum of completed
// credits minus redemptions; the scheduler maintains it incrementally inside a
// transaction that locks the row.
type WalletBalance struct {
	UserID          int64           `json:"user_id" db:"user_id"`
	CashbackBalance decimal.Decimal `json:"cashback_balance" db:"cashback_balance"`
	TotalEarned     decimal.Decimal `json:"total_earned" db:"total_earned"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// TimeBoxedPromo is the shared shape of offers and contests: a promotional
// record whose active flag is meant to track its validity window. The flag is
// eventually consistent; it is corrected at each lifecycle pass.
type TimeBoxedPromo struct {
	ID         int64     `json:"id" db:"id"`
	ValidFrom  time.Time `json:"valid_from" db:"valid_from"`
	ValidUntil time.Time `json:"valid_until" db:"valid_until"`
	IsActive   bool      `json:"is_active" db:"is_active"`
}

// PushSubscription is a stored Web Push credential triple plus liveness state.
// Subscriptions are soft-disabled only; a provider-confirmed-gone endpoint is
// marked inactive and never retried.
type PushSubscription struct {
	ID         int64      `json:"id" db:"id"`
	Endpoint   string     `json:"endpoint" db:"endpoint"`
	Auth       string     `json:"auth" db:"auth"`
	P256dh     string     `json:"p256dh" db:"p256dh"`
	IsActive   bool       `json:"is_active" db:"is_active"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty" db:"last_used_at"`
}

// CreditResult reports the outcome of applying one matured cashback credit.
type CreditResult struct {
	// Applied is false when another worker instance completed the entry
	// first; the wallet was not touched.
	Applied       bool
	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal
}

// BroadcastPayload is the single notification body sent to every active
// subscriber during one dispatch pass. Tag uniquifies the pass so clients
// collapse duplicates.
type BroadcastPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Tag   string `json:"tag"`
	URL   string `json:"url"`
}

// DeliveryResult reports the outcome of a single push delivery attempt.
type DeliveryResult struct {
	// StatusCode is the provider HTTP status, 0 when the request never
	// reached the provider (network error, open breaker).
	StatusCode int
	// Gone is true when the provider reported the subscription permanently
	// dead (404/410). The subscription must be deactivated and never retried.
	Gone bool
	// Retryable marks transient failures that may succeed on a later pass.
	Retryable bool
	// FailureReason is a short machine-readable description for logs.
	FailureReason string
}

// Sent reports whether the delivery succeeded.
func (r *DeliveryResult) Sent() bool {
	return r != nil && !r.Gone && r.FailureReason == "" &&
		r.StatusCode >= 200 && r.StatusCode < 300
}
