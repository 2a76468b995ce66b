// Package backend defines the sealed Ledger Backend Contract (spec.md §4.5,
// §6) that every storage implementation — in-memory or relational — must
// honor with identical observable semantics.
package backend

import (
	"context"
	"time"

	"github.com/R3E-Network/valueledger/internal/domain/ledger"
)

// Window bounds a transaction-history query by creation time. A zero value
// on either side means unbounded in that direction.
type Window struct {
	Since time.Time
	Until time.Time
}

// Backend is the single mutation and read path for the ledger core.
// execute_plan is the only entry point that may change VO state; every
// other method is a consistent, possibly-concurrent read.
type Backend interface {
	// ExecutePlan applies plan atomically: selects and locks every VO pool
	// named in plan.Locks, verifies sufficiency, applies every operation in
	// order, and settles locked pools back to Alive change. See spec.md
	// §4.5 for the three-phase contract. Returns a *ledger.Error wrapping
	// ledger.KindInsufficientFunds, KindAssetNotFound, KindConflict,
	// KindDuplicateIdempotencyKey, KindReservationNotFound,
	// KindInvalidAuthority, or KindStorage on failure, with no partial state
	// change.
	ExecutePlan(ctx context.Context, plan ledger.Plan) error

	// GetBalance returns a consistent snapshot reduction over VOs for
	// (assetCode, owner) at the observation point.
	GetBalance(ctx context.Context, assetCode, owner string) (ledger.Balance, error)

	// GetTransaction returns the append-only audit row by id, or a
	// *ledger.Error wrapping KindTransactionNotFound.
	GetTransaction(ctx context.Context, txID string) (ledger.Transaction, error)

	// GetTransactionsForOwner lists transactions where owner appears as
	// sender or receiver, most recent first, optionally bounded by window.
	GetTransactionsForOwner(ctx context.Context, owner string, window *Window) ([]ledger.Transaction, error)

	// GetAsset looks up a registered asset by code, or a *ledger.Error
	// wrapping KindAssetNotFound.
	GetAsset(ctx context.Context, code string) (ledger.Asset, error)

	// CreateAsset registers a new asset. Idempotent on Code: a repeated
	// call with an identical definition returns the existing asset's
	// identity; a call with a different Unit/Decimals under an existing
	// Code fails with KindConflict.
	CreateAsset(ctx context.Context, asset ledger.Asset) (ledger.Asset, error)
}
