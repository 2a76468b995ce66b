// Package postgres implements the Ledger Backend Contract on PostgreSQL.
// Where the in-memory backend serializes every plan behind one mutex, this
// backend relies on row-level locking: execute_plan selects every VO pool
// with SELECT ... FOR UPDATE in the deterministic amount/id order spec.md
// §9 requires, so concurrent plans contending on the same (asset, owner)
// block on Postgres rather than on an in-process lock.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/R3E-Network/valueledger/internal/domain/ledger"
	"github.com/R3E-Network/valueledger/internal/ledger/backend"
)

// Store implements backend.Backend on top of a *sql.DB/lib/pq connection.
type Store struct {
	db *sqlx.DB
}

// assetRow is the sqlx StructScan target for ledger_assets reads; db tags
// let StructScan map columns regardless of SELECT list order.
type assetRow struct {
	ID       string `db:"id"`
	Code     string `db:"code"`
	Unit     int64  `db:"unit"`
	Decimals int32  `db:"decimals"`
}

func (r assetRow) toDomain() ledger.Asset {
	return ledger.Asset{ID: r.ID, Code: r.Code, Unit: r.Unit, Decimals: r.Decimals}
}

// transactionRow is the sqlx StructScan target for ledger_transactions
// reads. Metadata arrives as raw JSONB bytes and is unmarshalled separately
// since ledger.Transaction.Metadata is a plain map with no sql.Scanner.
type transactionRow struct {
	ID             string    `db:"id"`
	AssetID        string    `db:"asset_id"`
	Sender         string    `db:"sender"`
	Receiver       string    `db:"receiver"`
	SentAmount     int64     `db:"sent_amount"`
	ReceivedAmount int64     `db:"received_amount"`
	Metadata       []byte    `db:"metadata"`
	CreatedAt      time.Time `db:"created_at"`
	IdempotencyKey string    `db:"idempotency_key"`
}

func (r transactionRow) toDomain() ledger.Transaction {
	tx := ledger.Transaction{
		ID:             r.ID,
		AssetID:        r.AssetID,
		Sender:         r.Sender,
		Receiver:       r.Receiver,
		SentAmount:     r.SentAmount,
		ReceivedAmount: r.ReceivedAmount,
		CreatedAt:      r.CreatedAt,
		IdempotencyKey: r.IdempotencyKey,
	}
	if len(r.Metadata) > 0 {
		_ = json.Unmarshal(r.Metadata, &tx.Metadata)
	}
	return tx
}

var _ backend.Backend = (*Store)(nil)

// New wraps an already-opened database handle. Callers own the handle's
// lifecycle (pooling, Close).
func New(db *sql.DB) *Store {
	return &Store{db: sqlx.NewDb(db, "postgres")}
}

// CreateAsset registers an asset, idempotent on Code.
func (s *Store) CreateAsset(ctx context.Context, asset ledger.Asset) (ledger.Asset, error) {
	if err := asset.Validate(); err != nil {
		return ledger.Asset{}, err
	}

	existing, err := s.GetAsset(ctx, asset.Code)
	if err == nil {
		if existing.SameDefinition(asset) {
			return existing, nil
		}
		return ledger.Asset{}, ledger.Conflict("asset code " + asset.Code + " already registered with different attributes")
	}
	var lerr *ledger.Error
	if !errors.As(err, &lerr) || lerr.Kind != ledger.KindAssetNotFound {
		return ledger.Asset{}, err
	}

	if asset.ID == "" {
		asset.ID = ledger.NewID()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO ledger_assets (id, code, unit, decimals) VALUES ($1, $2, $3, $4)
	`, asset.ID, asset.Code, asset.Unit, asset.Decimals)
	if isUniqueViolation(err) {
		return s.GetAsset(ctx, asset.Code)
	}
	if err != nil {
		return ledger.Asset{}, ledger.Storage("insert asset", err)
	}
	return asset, nil
}

// GetAsset looks up a registered asset by code.
func (s *Store) GetAsset(ctx context.Context, code string) (ledger.Asset, error) {
	var row assetRow
	err := s.db.QueryRowxContext(ctx, `
		SELECT id, code, unit, decimals FROM ledger_assets WHERE code = $1
	`, code).StructScan(&row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Asset{}, ledger.AssetNotFound(code)
	}
	if err != nil {
		return ledger.Asset{}, ledger.Storage("select asset", err)
	}
	return row.toDomain(), nil
}

// GetBalance reduces the current VO set for (assetCode, owner).
func (s *Store) GetBalance(ctx context.Context, assetCode, owner string) (ledger.Balance, error) {
	asset, err := s.GetAsset(ctx, assetCode)
	if err != nil {
		return ledger.Balance{}, err
	}

	var bal ledger.Balance
	row := s.db.QueryRowxContext(ctx, `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE state = 'alive' AND owner = $2), 0),
			COALESCE(SUM(amount) FILTER (WHERE state = 'reserved' AND reserved_for = $2), 0)
		FROM ledger_value_objects
		WHERE asset_id = $1
	`, asset.ID, owner)
	if err := row.Scan(&bal.Available, &bal.Reserved); err != nil {
		return ledger.Balance{}, ledger.Storage("reduce balance", err)
	}
	bal.UpdatedAt = time.Now().UTC()
	return bal, nil
}

// GetTransaction returns a recorded transaction by id.
func (s *Store) GetTransaction(ctx context.Context, txID string) (ledger.Transaction, error) {
	tx, err := scanTransaction(s.db.QueryRowxContext(ctx, `
		SELECT id, asset_id, sender, receiver, sent_amount, received_amount, metadata, created_at, COALESCE(idempotency_key, '') AS idempotency_key
		FROM ledger_transactions WHERE id = $1
	`, txID))
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Transaction{}, ledger.TransactionNotFound(txID)
	}
	if err != nil {
		return ledger.Transaction{}, ledger.Storage("select transaction", err)
	}
	return tx, nil
}

// GetTransactionsForOwner lists transactions touching owner, most recent
// first, optionally bounded by window.
func (s *Store) GetTransactionsForOwner(ctx context.Context, owner string, window *backend.Window) ([]ledger.Transaction, error) {
	query := `
		SELECT id, asset_id, sender, receiver, sent_amount, received_amount, metadata, created_at, COALESCE(idempotency_key, '') AS idempotency_key
		FROM ledger_transactions
		WHERE (sender = $1 OR receiver = $1)
	`
	args := []any{owner}
	if window != nil {
		if !window.Since.IsZero() {
			args = append(args, window.Since)
			query += fmt.Sprintf(" AND created_at >= $%d", len(args))
		}
		if !window.Until.IsZero() {
			args = append(args, window.Until)
			query += fmt.Sprintf(" AND created_at <= $%d", len(args))
		}
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, ledger.Storage("list transactions", err)
	}
	defer rows.Close()

	var result []ledger.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, ledger.Storage("scan transaction", err)
		}
		result = append(result, tx)
	}
	return result, rows.Err()
}

type rowStructScanner interface {
	StructScan(dest any) error
}

func scanTransaction(row rowStructScanner) (ledger.Transaction, error) {
	var r transactionRow
	if err := row.StructScan(&r); err != nil {
		return ledger.Transaction{}, err
	}
	return r.toDomain(), nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// selectedVO is one row locked for a pool during ExecutePlan; rows already
// arrive amount-ASC, id-ASC from the FOR UPDATE query itself.
type selectedVO struct {
	ID     string `db:"id"`
	Amount int64  `db:"amount"`
}
