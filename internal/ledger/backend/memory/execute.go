package memory

import (
	"context"
	"sort"
	"time"

	"github.com/R3E-Network/valueledger/internal/domain/ledger"
	"github.com/R3E-Network/valueledger/internal/ledger/metrics"
)

// poolKey identifies one debitable VO pool: a (asset, owner) Alive pool for
// ordinary spends, or a (asset, owner, authority) Reserved pool for
// reservation activation/release.
type poolKey struct {
	AssetID   string
	AssetCode string
	Owner     string
	Authority string
	State     ledger.State
}

type pool struct {
	key       poolKey
	required  int64
	candidate []ledger.ValueObject // ascending amount, id tie-break
	used      int64
}

// ExecutePlan is the sole mutation path: select-and-verify under the store
// mutex, apply every operation in order, then settle every locked pool back
// to Alive/Reserved change. Any failure aborts with no visible side effect,
// since the mutex is held for the whole call and no map is written until
// every pool has been proven sufficient.
func (s *Store) ExecutePlan(_ context.Context, plan ledger.Plan) (err error) {
	start := time.Now()
	defer func() {
		metrics.RecordPlanExecution(metrics.PlanOutcome(err), time.Since(start))
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	if plan.IsEmpty() {
		return nil
	}

	// Resolve every referenced asset up front; unknown asset aborts the
	// whole plan before any selection or mutation (spec.md §4.5).
	assetsByCode := make(map[string]ledger.Asset)
	for _, op := range plan.Operations {
		if op.AssetCode == "" {
			continue
		}
		if _, ok := assetsByCode[op.AssetCode]; ok {
			continue
		}
		asset, ok := s.assetsByCode[op.AssetCode]
		if !ok {
			return ledger.AssetNotFound(op.AssetCode)
		}
		assetsByCode[op.AssetCode] = asset
	}

	// Duplicate idempotency keys must fail before any VO is mutated.
	seenKeys := make(map[string]bool)
	for _, op := range plan.Operations {
		if op.Kind != ledger.OpRecordTransaction || op.Record == nil || op.Record.IdempotencyKey == "" {
			continue
		}
		key := op.Record.IdempotencyKey
		if seenKeys[key] {
			return ledger.DuplicateIdempotencyKey(key)
		}
		seenKeys[key] = true
		if _, exists := s.idempotency[key]; exists {
			return ledger.DuplicateIdempotencyKey(key)
		}
	}

	// Phase 1: build and verify every debitable pool. plan.Locks aggregates
	// Alive- and Reserved-pool requirements under the same (asset, owner)
	// key purely for mutual-exclusion purposes, so the Alive-pool amount is
	// re-derived here straight from ConsumesFrom rather than read off
	// plan.Locks, which would overcount by every Activate/ReleaseReservation
	// sharing that key.
	pools := make(map[poolKey]*pool)
	for _, op := range plan.Operations {
		if assetCode, owner, amount, ok := op.ConsumesFrom(); ok {
			asset := assetsByCode[assetCode]
			pk := poolKey{AssetID: asset.ID, AssetCode: assetCode, Owner: owner, State: ledger.StateAlive}
			p, ok := pools[pk]
			if !ok {
				p = &pool{key: pk}
				pools[pk] = p
			}
			p.required += amount
			continue
		}
		if op.Kind != ledger.OpActivateReservation && op.Kind != ledger.OpReleaseReservation {
			continue
		}
		asset := assetsByCode[op.AssetCode]
		pk := poolKey{AssetID: asset.ID, AssetCode: op.AssetCode, Owner: op.Owner, Authority: op.Authority, State: ledger.StateReserved}
		p, ok := pools[pk]
		if !ok {
			p = &pool{key: pk}
			pools[pk] = p
		}
		p.required += op.Amount
	}

	for _, p := range pools {
		if err := s.selectIntoPool(p); err != nil {
			return err
		}
		metrics.RecordLockPoolSize(string(p.key.State), len(p.candidate))
	}

	// Phase 2: apply operations in order, accruing debits against pools and
	// creating new VOs for recipients.
	newVOs := make(map[string]ledger.ValueObject)
	newTxs := make(map[string]ledger.Transaction)
	newIdempotency := make(map[string]string)

	for _, op := range plan.Operations {
		asset := assetsByCode[op.AssetCode]
		switch op.Kind {
		case ledger.OpMint:
			for _, vo := range mintVOs(asset.ID, op.Owner, op.Amount, asset.Unit) {
				newVOs[vo.ID] = vo
			}

		case ledger.OpBurn:
			pk := poolKey{AssetID: asset.ID, AssetCode: op.AssetCode, Owner: op.Owner, State: ledger.StateAlive}
			pools[pk].used += op.Amount

		case ledger.OpTransfer:
			pk := poolKey{AssetID: asset.ID, AssetCode: op.AssetCode, Owner: op.Owner, State: ledger.StateAlive}
			pools[pk].used += op.Amount
			for _, vo := range mintVOs(asset.ID, op.To, op.Amount, asset.Unit) {
				newVOs[vo.ID] = vo
			}

		case ledger.OpReserve:
			pk := poolKey{AssetID: asset.ID, AssetCode: op.AssetCode, Owner: op.Owner, State: ledger.StateAlive}
			pools[pk].used += op.Amount
			for _, vo := range reserveVOs(asset.ID, op.Owner, op.Authority, op.Amount, asset.Unit) {
				newVOs[vo.ID] = vo
			}

		case ledger.OpActivateReservation:
			pk := poolKey{AssetID: asset.ID, AssetCode: op.AssetCode, Owner: op.Owner, Authority: op.Authority, State: ledger.StateReserved}
			pools[pk].used += op.Amount
			for _, vo := range mintVOs(asset.ID, op.Authority, op.Amount, asset.Unit) {
				newVOs[vo.ID] = vo
			}

		case ledger.OpReleaseReservation:
			pk := poolKey{AssetID: asset.ID, AssetCode: op.AssetCode, Owner: op.Owner, Authority: op.Authority, State: ledger.StateReserved}
			pools[pk].used += op.Amount
			for _, vo := range mintVOs(asset.ID, op.Owner, op.Amount, asset.Unit) {
				newVOs[vo.ID] = vo
			}

		case ledger.OpRecordTransaction:
			tx := *op.Record
			if tx.ID == "" {
				tx.ID = ledger.NewID()
			}
			if tx.CreatedAt.IsZero() {
				tx.CreatedAt = time.Now().UTC()
			}
			newTxs[tx.ID] = tx
			if tx.IdempotencyKey != "" {
				newIdempotency[tx.IdempotencyKey] = tx.ID
			}
		}
	}

	// Phase 3: settle every locked pool — burn every selected candidate,
	// mint change back for the unused remainder.
	for _, p := range pools {
		if p.required == 0 && len(p.candidate) == 0 {
			continue
		}
		totalLocked := int64(0)
		for _, vo := range p.candidate {
			totalLocked += vo.Amount
			burned := vo
			burned.State = ledger.StateBurned
			newVOs[burned.ID] = burned
		}
		change := totalLocked - p.used
		if change > 0 {
			unit := assetsByCode[p.key.AssetCode].Unit
			switch p.key.State {
			case ledger.StateAlive:
				for _, vo := range mintVOs(p.key.AssetID, p.key.Owner, change, unit) {
					newVOs[vo.ID] = vo
				}
			case ledger.StateReserved:
				for _, vo := range reserveVOs(p.key.AssetID, p.key.Owner, p.key.Authority, change, unit) {
					newVOs[vo.ID] = vo
				}
			}
		}
	}

	// Commit: nothing above touched s.vos/s.transactions/s.idempotency, so
	// any early return left the store byte-for-byte as it was.
	for id, vo := range newVOs {
		s.vos[id] = vo
	}
	for id, tx := range newTxs {
		s.transactions[id] = tx
	}
	for key, txID := range newIdempotency {
		s.idempotency[key] = txID
	}
	return nil
}

func (s *Store) selectIntoPool(p *pool) error {
	var candidates []ledger.ValueObject
	anyReservedForOwner := false
	for _, v := range s.vos {
		if v.AssetID != p.key.AssetID || v.Owner != p.key.Owner || v.State != p.key.State {
			continue
		}
		if p.key.State == ledger.StateReserved {
			anyReservedForOwner = true
			if v.ReservedFor != p.key.Authority {
				continue
			}
		}
		candidates = append(candidates, v)
	}
	if p.key.State == ledger.StateReserved && !anyReservedForOwner {
		return ledger.ReservationNotFound(p.key.AssetCode, p.key.Owner)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Amount != candidates[j].Amount {
			return candidates[i].Amount < candidates[j].Amount
		}
		return candidates[i].ID < candidates[j].ID
	})

	var sum int64
	var selected []ledger.ValueObject
	for _, v := range candidates {
		if sum >= p.required {
			break
		}
		selected = append(selected, v)
		sum += v.Amount
	}
	if sum < p.required {
		if p.key.State == ledger.StateReserved && len(candidates) == 0 {
			return ledger.InvalidAuthority(p.key.Authority)
		}
		return ledger.InsufficientFunds(p.key.AssetCode, p.key.Owner, p.required, sum)
	}
	p.candidate = selected
	return nil
}

func mintVOs(assetID, owner string, amount, unit int64) []ledger.ValueObject {
	var out []ledger.ValueObject
	for _, piece := range ledger.Fragment(amount, unit) {
		out = append(out, ledger.ValueObject{
			ID:        ledger.NewID(),
			AssetID:   assetID,
			Owner:     owner,
			Amount:    piece,
			State:     ledger.StateAlive,
			CreatedAt: time.Now().UTC(),
		})
	}
	return out
}

func reserveVOs(assetID, owner, authority string, amount, unit int64) []ledger.ValueObject {
	var out []ledger.ValueObject
	for _, piece := range ledger.Fragment(amount, unit) {
		out = append(out, ledger.ValueObject{
			ID:          ledger.NewID(),
			AssetID:     assetID,
			Owner:       owner,
			Amount:      piece,
			State:       ledger.StateReserved,
			ReservedFor: authority,
			CreatedAt:   time.Now().UTC(),
		})
	}
	return out
}
