package types

// LedgerKind classifies a wallet ledger entry.
type LedgerKind string

const (
	// LedgerKindReserve is a held-but-not-yet-earned cashback amount. It either
	// matures into a credit or expires unconsumed and is deleted.
	LedgerKindReserve LedgerKind = "reserve"
	// LedgerKindCredit is a balance-affecting cashback credit.
	LedgerKindCredit LedgerKind = "credit"
)

// LedgerStatus is the lifecycle state of a wallet ledger entry.
// Completed and failed are terminal: no further mutation is allowed.
type LedgerStatus string

const (
	LedgerStatusPending   LedgerStatus = "pending"
	LedgerStatusCompleted LedgerStatus = "completed"
	LedgerStatusFailed    LedgerStatus = "failed"
)

// PromoEntity identifies which time-boxed promotional table an operation
// targets. Offers and contests are structurally identical.
type PromoEntity string

const (
	PromoOffer   PromoEntity = "offer"
	PromoContest PromoEntity = "contest"
)
