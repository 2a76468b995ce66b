package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/R3E-Network/valueledger/internal/domain/ledger"
	"github.com/R3E-Network/valueledger/internal/ledger/metrics"
)

type txPoolKey struct {
	AssetID   string
	AssetCode string
	Owner     string
	Authority string
	State     ledger.State
}

type txPool struct {
	key       txPoolKey
	required  int64
	selected  []selectedVO
	used      int64
}

// ExecutePlan runs the three-phase contract inside one serializable-enough
// transaction: select and FOR UPDATE lock every debitable pool in
// deterministic order, verify sufficiency, apply every operation, then
// settle by burning the locked rows and inserting change. Any error rolls
// the transaction back, leaving the database exactly as it was.
func (s *Store) ExecutePlan(ctx context.Context, plan ledger.Plan) (err error) {
	start := time.Now()
	defer func() {
		metrics.RecordPlanExecution(metrics.PlanOutcome(err), time.Since(start))
	}()

	if plan.IsEmpty() {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return ledger.Storage("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	assetsByCode := make(map[string]ledger.Asset)
	for _, op := range plan.Operations {
		if op.AssetCode == "" {
			continue
		}
		if _, ok := assetsByCode[op.AssetCode]; ok {
			continue
		}
		var row assetRow
		err := tx.QueryRowxContext(ctx, `
			SELECT id, code, unit, decimals FROM ledger_assets WHERE code = $1
		`, op.AssetCode).StructScan(&row)
		if errors.Is(err, sql.ErrNoRows) {
			return ledger.AssetNotFound(op.AssetCode)
		}
		if err != nil {
			return ledger.Storage("select asset", err)
		}
		assetsByCode[op.AssetCode] = row.toDomain()
	}

	// Build the pool requirement map exactly as the in-memory backend does:
	// Alive-pool amounts come straight from ConsumesFrom, Reserved-pool
	// amounts from Activate/ReleaseReservation — never from plan.Locks,
	// which conflates both under one mutual-exclusion key.
	pools := make(map[txPoolKey]*txPool)
	for _, op := range plan.Operations {
		if assetCode, owner, amount, ok := op.ConsumesFrom(); ok {
			asset := assetsByCode[assetCode]
			pk := txPoolKey{AssetID: asset.ID, AssetCode: assetCode, Owner: owner, State: ledger.StateAlive}
			p, ok := pools[pk]
			if !ok {
				p = &txPool{key: pk}
				pools[pk] = p
			}
			p.required += amount
			continue
		}
		if op.Kind != ledger.OpActivateReservation && op.Kind != ledger.OpReleaseReservation {
			continue
		}
		asset := assetsByCode[op.AssetCode]
		pk := txPoolKey{AssetID: asset.ID, AssetCode: op.AssetCode, Owner: op.Owner, Authority: op.Authority, State: ledger.StateReserved}
		p, ok := pools[pk]
		if !ok {
			p = &txPool{key: pk}
			pools[pk] = p
		}
		p.required += op.Amount
	}

	for _, p := range pools {
		query := `
			SELECT id, amount FROM ledger_value_objects
			WHERE asset_id = $1 AND owner = $2 AND state = $3
		`
		args := []any{p.key.AssetID, p.key.Owner, string(p.key.State)}
		if p.key.State == ledger.StateReserved {
			query += " AND reserved_for = $4"
			args = append(args, p.key.Authority)
		}
		query += " ORDER BY amount ASC, id ASC FOR UPDATE"

		rows, err := tx.QueryxContext(ctx, query, args...)
		if err != nil {
			return ledger.Storage("select pool for update", err)
		}
		var sum int64
		for rows.Next() {
			if sum >= p.required {
				break
			}
			var v selectedVO
			if err := rows.StructScan(&v); err != nil {
				rows.Close()
				return ledger.Storage("scan locked vo", err)
			}
			p.selected = append(p.selected, v)
			sum += v.Amount
		}
		rows.Close()
		if sum < p.required && p.key.State == ledger.StateReserved {
			var anyReservedForOwner bool
			err := tx.QueryRowxContext(ctx, `
				SELECT EXISTS(SELECT 1 FROM ledger_value_objects WHERE asset_id = $1 AND owner = $2 AND state = 'reserved')
			`, p.key.AssetID, p.key.Owner).Scan(&anyReservedForOwner)
			if err != nil {
				return ledger.Storage("check reservation existence", err)
			}
			if !anyReservedForOwner {
				return ledger.ReservationNotFound(p.key.AssetCode, p.key.Owner)
			}
			if len(p.selected) == 0 {
				return ledger.InvalidAuthority(p.key.Authority)
			}
		}
		if sum < p.required {
			return ledger.InsufficientFunds(p.key.AssetCode, p.key.Owner, p.required, sum)
		}
		metrics.RecordLockPoolSize(string(p.key.State), len(p.selected))
	}

	// Duplicate idempotency keys fail before any VO mutation. Uniqueness is
	// additionally enforced by the column constraint; this check exists so
	// a rejected plan never reaches the VO tables at all.
	for _, op := range plan.Operations {
		if op.Kind != ledger.OpRecordTransaction || op.Record == nil || op.Record.IdempotencyKey == "" {
			continue
		}
		var exists bool
		err := tx.QueryRowxContext(ctx, `
			SELECT EXISTS(SELECT 1 FROM ledger_transactions WHERE idempotency_key = $1)
		`, op.Record.IdempotencyKey).Scan(&exists)
		if err != nil {
			return ledger.Storage("check idempotency key", err)
		}
		if exists {
			return ledger.DuplicateIdempotencyKey(op.Record.IdempotencyKey)
		}
	}

	for _, op := range plan.Operations {
		asset := assetsByCode[op.AssetCode]
		switch op.Kind {
		case ledger.OpMint:
			if err := insertVOs(ctx, tx, mintVOs(asset.ID, op.Owner, op.Amount, asset.Unit)); err != nil {
				return err
			}

		case ledger.OpBurn:
			pk := txPoolKey{AssetID: asset.ID, AssetCode: op.AssetCode, Owner: op.Owner, State: ledger.StateAlive}
			pools[pk].used += op.Amount

		case ledger.OpTransfer:
			pk := txPoolKey{AssetID: asset.ID, AssetCode: op.AssetCode, Owner: op.Owner, State: ledger.StateAlive}
			pools[pk].used += op.Amount
			if err := insertVOs(ctx, tx, mintVOs(asset.ID, op.To, op.Amount, asset.Unit)); err != nil {
				return err
			}

		case ledger.OpReserve:
			pk := txPoolKey{AssetID: asset.ID, AssetCode: op.AssetCode, Owner: op.Owner, State: ledger.StateAlive}
			pools[pk].used += op.Amount
			if err := insertVOs(ctx, tx, reserveVOs(asset.ID, op.Owner, op.Authority, op.Amount, asset.Unit)); err != nil {
				return err
			}

		case ledger.OpActivateReservation:
			pk := txPoolKey{AssetID: asset.ID, AssetCode: op.AssetCode, Owner: op.Owner, Authority: op.Authority, State: ledger.StateReserved}
			pools[pk].used += op.Amount
			if err := insertVOs(ctx, tx, mintVOs(asset.ID, op.Authority, op.Amount, asset.Unit)); err != nil {
				return err
			}

		case ledger.OpReleaseReservation:
			pk := txPoolKey{AssetID: asset.ID, AssetCode: op.AssetCode, Owner: op.Owner, Authority: op.Authority, State: ledger.StateReserved}
			pools[pk].used += op.Amount
			if err := insertVOs(ctx, tx, mintVOs(asset.ID, op.Owner, op.Amount, asset.Unit)); err != nil {
				return err
			}

		case ledger.OpRecordTransaction:
			record := *op.Record
			if record.ID == "" {
				record.ID = ledger.NewID()
			}
			if record.CreatedAt.IsZero() {
				record.CreatedAt = nowUTC()
			}
			metadataJSON, err := json.Marshal(record.Metadata)
			if err != nil {
				return ledger.Storage("marshal transaction metadata", err)
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO ledger_transactions
					(id, asset_id, sender, receiver, sent_amount, received_amount, metadata, created_at, idempotency_key)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8, NULLIF($9, ''))
			`, record.ID, asset.ID, record.Sender, record.Receiver, record.SentAmount, record.ReceivedAmount, metadataJSON, record.CreatedAt, record.IdempotencyKey)
			if isUniqueViolation(err) {
				return ledger.DuplicateIdempotencyKey(record.IdempotencyKey)
			}
			if err != nil {
				return ledger.Storage("insert transaction", err)
			}
		}
	}

	for _, p := range pools {
		if p.required == 0 && len(p.selected) == 0 {
			continue
		}
		var totalLocked int64
		ids := make([]string, 0, len(p.selected))
		for _, v := range p.selected {
			totalLocked += v.Amount
			ids = append(ids, v.ID)
		}
		if len(ids) > 0 {
			if _, err := tx.ExecContext(ctx, `
				UPDATE ledger_value_objects SET state = 'burned' WHERE id = ANY($1)
			`, pqStringArray(ids)); err != nil {
				return ledger.Storage("burn locked vos", err)
			}
		}

		change := totalLocked - p.used
		if change > 0 {
			unit := assetsByCode[p.key.AssetCode].Unit
			switch p.key.State {
			case ledger.StateAlive:
				if err := insertVOs(ctx, tx, mintVOs(p.key.AssetID, p.key.Owner, change, unit)); err != nil {
					return err
				}
			case ledger.StateReserved:
				if err := insertVOs(ctx, tx, reserveVOs(p.key.AssetID, p.key.Owner, p.key.Authority, change, unit)); err != nil {
					return err
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return ledger.Storage("commit plan", err)
	}
	return nil
}

func insertVOs(ctx context.Context, tx txExecer, vos []ledger.ValueObject) error {
	for _, vo := range vos {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO ledger_value_objects (id, asset_id, owner, amount, state, reserved_for, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, vo.ID, vo.AssetID, vo.Owner, vo.Amount, string(vo.State), vo.ReservedFor, vo.CreatedAt)
		if err != nil {
			return ledger.Storage(fmt.Sprintf("insert value object for %s", vo.Owner), err)
		}
	}
	return nil
}

type txExecer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}
