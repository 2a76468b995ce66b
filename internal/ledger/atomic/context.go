// Package atomic implements the planning-time façade spec.md §4.6 describes:
// an atomic context that hands out Money handles and Slice capabilities,
// collects the Operations they append, and submits exactly one Plan to a
// backend.Backend on close. Nothing here performs backend I/O except the
// single asset lookup needed to populate a Transaction's AssetID, and the
// one execute_plan call at the very end.
package atomic

import (
	"context"

	"github.com/R3E-Network/valueledger/internal/domain/ledger"
	"github.com/R3E-Network/valueledger/internal/ledger/backend"
)

// Context is the builder passed into the closure given to Run. It never
// mutates the backend directly; every method here only appends to an
// in-memory operation list and tracks Money/Slice accounting.
type Context struct {
	parent context.Context
	store  backend.Backend

	ops     []ledger.Operation
	assets  map[string]ledger.Asset
	handles []*Money
	slices  []*Slice
}

// TransactionHandle is the opaque receipt Run returns on success.
type TransactionHandle struct {
	OperationCount int
}

// Run opens an atomic context, executes fn, validates the Money/Slice
// safety properties, and submits the resulting plan to store in one
// execute_plan call. If fn returns an error, a safety property is violated,
// or execute_plan fails, store's observable state is left unchanged — fn's
// error and safety-property errors abort before the backend is ever called.
func Run(ctx context.Context, store backend.Backend, fn func(tx *Context) error) (TransactionHandle, error) {
	tx := &Context{parent: ctx, store: store, assets: make(map[string]ledger.Asset)}

	if err := fn(tx); err != nil {
		return TransactionHandle{}, err
	}

	if err := tx.checkSafety(); err != nil {
		return TransactionHandle{}, err
	}

	plan := ledger.NewPlan(tx.ops)
	if err := store.ExecutePlan(ctx, plan); err != nil {
		return TransactionHandle{}, err
	}

	return TransactionHandle{OperationCount: len(tx.ops)}, nil
}

// Mint appends a Mint operation directly to the plan: it creates value with
// no source, so it never goes through the Money/Slice path.
func (tx *Context) Mint(assetCode, owner string, amount int64, metadata map[string]string) error {
	if amount <= 0 {
		return ledger.InvalidAmount("mint amount must be > 0")
	}
	asset, err := tx.resolveAsset(assetCode)
	if err != nil {
		return err
	}
	tx.ops = append(tx.ops, ledger.Mint(assetCode, owner, amount, metadata))
	tx.ops = append(tx.ops, ledger.RecordTransaction(ledger.Transaction{
		AssetID:        asset.ID,
		Receiver:       owner,
		ReceivedAmount: amount,
		Metadata:       metadata,
	}))
	return nil
}

// Reserve appends a Reserve operation directly to the plan: it has
// authority-explicit semantics distinct from a Transfer/Burn slice target.
func (tx *Context) Reserve(assetCode, from, authority string, amount int64, metadata map[string]string) error {
	if amount <= 0 {
		return ledger.InvalidAmount("reserve amount must be > 0")
	}
	if from == "" || authority == "" {
		return ledger.InvalidAmount("reserve requires both an owner and an authority")
	}
	asset, err := tx.resolveAsset(assetCode)
	if err != nil {
		return err
	}
	tx.ops = append(tx.ops, ledger.Reserve(assetCode, from, authority, amount, metadata))
	tx.ops = append(tx.ops, ledger.RecordTransaction(ledger.Transaction{
		AssetID:        asset.ID,
		Sender:         from,
		Receiver:       authority,
		SentAmount:     amount,
		ReceivedAmount: amount,
		Metadata:       metadata,
	}))
	return nil
}

// ActivateReservation appends an operation moving authority's reserved
// funds to Alive, owned by authority.
func (tx *Context) ActivateReservation(assetCode, owner, authority string, amount int64) error {
	if amount <= 0 {
		return ledger.InvalidAmount("activation amount must be > 0")
	}
	if _, err := tx.resolveAsset(assetCode); err != nil {
		return err
	}
	tx.ops = append(tx.ops, ledger.ActivateReservation(assetCode, owner, authority, amount))
	return nil
}

// ReleaseReservation appends an operation cancelling a reservation, funds
// reverting to Alive under the original owner.
func (tx *Context) ReleaseReservation(assetCode, owner, authority string, amount int64) error {
	if amount <= 0 {
		return ledger.InvalidAmount("release amount must be > 0")
	}
	if _, err := tx.resolveAsset(assetCode); err != nil {
		return err
	}
	tx.ops = append(tx.ops, ledger.ReleaseReservation(assetCode, owner, authority, amount))
	return nil
}

// Money declares intent to spend up to amount from (assetCode, owner). It
// creates no VO and contributes amount to the plan's derived lock set; the
// handle must be fully sliced by the time the context closes.
func (tx *Context) Money(assetCode, owner string, amount int64) (*Money, error) {
	if amount <= 0 {
		return nil, ledger.InvalidAmount("money amount must be > 0")
	}
	if _, err := tx.resolveAsset(assetCode); err != nil {
		return nil, err
	}
	m := &Money{tx: tx, assetCode: assetCode, owner: owner, remaining: amount}
	tx.handles = append(tx.handles, m)
	return m, nil
}

func (tx *Context) resolveAsset(assetCode string) (ledger.Asset, error) {
	if asset, ok := tx.assets[assetCode]; ok {
		return asset, nil
	}
	asset, err := tx.store.GetAsset(tx.parent, assetCode)
	if err != nil {
		return ledger.Asset{}, err
	}
	tx.assets[assetCode] = asset
	return asset, nil
}

// checkSafety enforces spec.md §4.6's two safety properties: every Money
// handle sliced to zero, every Slice consumed exactly once.
func (tx *Context) checkSafety() error {
	for _, m := range tx.handles {
		if !m.sliced && m.remaining > 0 {
			return ledger.Storage("money handle for "+m.owner+" never sliced", nil)
		}
		if m.remaining > 0 {
			return ledger.UnconsumedSlice("money handle for " + m.owner + " has unsliced remaining")
		}
	}
	for _, s := range tx.slices {
		if !s.consumed && s.remaining > 0 {
			return ledger.UnconsumedSlice("slice for " + s.owner + " was never consumed")
		}
	}
	return nil
}
