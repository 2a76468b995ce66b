// Package memory implements the Ledger Backend Contract as an in-process,
// single-mutex store. It is the reference oracle for atomicity semantics
// described in spec.md §5 — correctness, not performance, is the goal.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/R3E-Network/valueledger/internal/domain/ledger"
	"github.com/R3E-Network/valueledger/internal/ledger/backend"
)

// Store is a thread-safe in-memory implementation of backend.Backend. A
// single mutex covers the asset registry, the VO set, and the transaction
// log for the lifetime of every call, so that ExecutePlan serializes
// against every other plan and every read observes a consistent snapshot.
type Store struct {
	mu sync.Mutex

	assetsByCode map[string]ledger.Asset
	assetsByID   map[string]ledger.Asset
	vos          map[string]ledger.ValueObject
	transactions map[string]ledger.Transaction
	idempotency  map[string]string // idempotency key -> transaction id
}

var _ backend.Backend = (*Store)(nil)

// New creates an empty in-memory backend.
func New() *Store {
	return &Store{
		assetsByCode: make(map[string]ledger.Asset),
		assetsByID:   make(map[string]ledger.Asset),
		vos:          make(map[string]ledger.ValueObject),
		transactions: make(map[string]ledger.Transaction),
		idempotency:  make(map[string]string),
	}
}

// CreateAsset registers an asset, idempotent on Code per spec.md §4.2.
func (s *Store) CreateAsset(_ context.Context, asset ledger.Asset) (ledger.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := asset.Validate(); err != nil {
		return ledger.Asset{}, err
	}

	if existing, ok := s.assetsByCode[asset.Code]; ok {
		if existing.SameDefinition(asset) {
			return existing, nil
		}
		return ledger.Asset{}, ledger.Conflict("asset code " + asset.Code + " already registered with different attributes")
	}

	if asset.ID == "" {
		asset.ID = ledger.NewID()
	}
	s.assetsByCode[asset.Code] = asset
	s.assetsByID[asset.ID] = asset
	return asset, nil
}

// GetAsset looks up a registered asset by code.
func (s *Store) GetAsset(_ context.Context, code string) (ledger.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	asset, ok := s.assetsByCode[code]
	if !ok {
		return ledger.Asset{}, ledger.AssetNotFound(code)
	}
	return asset, nil
}

// GetBalance reduces the current VO set for (assetCode, owner).
func (s *Store) GetBalance(_ context.Context, assetCode, owner string) (ledger.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	asset, ok := s.assetsByCode[assetCode]
	if !ok {
		return ledger.Balance{}, ledger.AssetNotFound(assetCode)
	}
	return ledger.Reduce(s.voSliceForAssetLocked(asset.ID), owner, time.Now().UTC()), nil
}

// GetTransaction returns a recorded transaction by id.
func (s *Store) GetTransaction(_ context.Context, txID string) (ledger.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.transactions[txID]
	if !ok {
		return ledger.Transaction{}, ledger.TransactionNotFound(txID)
	}
	return tx, nil
}

// GetTransactionsForOwner lists transactions touching owner as sender or
// receiver, most recent first, optionally bounded by window.
func (s *Store) GetTransactionsForOwner(_ context.Context, owner string, window *backend.Window) ([]ledger.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []ledger.Transaction
	for _, tx := range s.transactions {
		if tx.Sender != owner && tx.Receiver != owner {
			continue
		}
		if window != nil {
			if !window.Since.IsZero() && tx.CreatedAt.Before(window.Since) {
				continue
			}
			if !window.Until.IsZero() && tx.CreatedAt.After(window.Until) {
				continue
			}
		}
		result = append(result, tx)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (s *Store) voSliceForAssetLocked(assetID string) []ledger.ValueObject {
	var out []ledger.ValueObject
	for _, v := range s.vos {
		if v.AssetID == assetID {
			out = append(out, v)
		}
	}
	return out
}
