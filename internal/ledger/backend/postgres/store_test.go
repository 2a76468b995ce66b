package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/valueledger/internal/domain/ledger"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db), mock
}

func TestGetAssetFound(t *testing.T) {
	s, mock := newMockStore(t)
	rows := sqlmock.NewRows([]string{"id", "code", "unit", "decimals"}).
		AddRow("asset-1", "USD", int64(100), 2)
	mock.ExpectQuery("SELECT id, code, unit, decimals FROM ledger_assets WHERE code = \\$1").
		WithArgs("USD").
		WillReturnRows(rows)

	asset, err := s.GetAsset(context.Background(), "USD")
	require.NoError(t, err)
	require.Equal(t, "asset-1", asset.ID)
	require.Equal(t, int64(100), asset.Unit)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAssetNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("SELECT id, code, unit, decimals FROM ledger_assets WHERE code = \\$1").
		WithArgs("XYZ").
		WillReturnRows(sqlmock.NewRows([]string{"id", "code", "unit", "decimals"}))

	_, err := s.GetAsset(context.Background(), "XYZ")
	require.ErrorIs(t, err, ledger.ErrAssetNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAssetInsertsWhenAbsent(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("SELECT id, code, unit, decimals FROM ledger_assets WHERE code = \\$1").
		WithArgs("USD").
		WillReturnRows(sqlmock.NewRows([]string{"id", "code", "unit", "decimals"}))
	mock.ExpectExec("INSERT INTO ledger_assets").
		WillReturnResult(sqlmock.NewResult(1, 1))

	asset, err := s.CreateAsset(context.Background(), ledger.Asset{Code: "USD", Unit: 100, Decimals: 2})
	require.NoError(t, err)
	require.Equal(t, "USD", asset.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAssetIdempotentOnSameDefinition(t *testing.T) {
	s, mock := newMockStore(t)
	rows := sqlmock.NewRows([]string{"id", "code", "unit", "decimals"}).
		AddRow("asset-1", "USD", int64(100), 2)
	mock.ExpectQuery("SELECT id, code, unit, decimals FROM ledger_assets WHERE code = \\$1").
		WithArgs("USD").
		WillReturnRows(rows)

	asset, err := s.CreateAsset(context.Background(), ledger.Asset{Code: "USD", Unit: 100, Decimals: 2})
	require.NoError(t, err)
	require.Equal(t, "asset-1", asset.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAssetConflictsOnDifferentDefinition(t *testing.T) {
	s, mock := newMockStore(t)
	rows := sqlmock.NewRows([]string{"id", "code", "unit", "decimals"}).
		AddRow("asset-1", "USD", int64(100), 2)
	mock.ExpectQuery("SELECT id, code, unit, decimals FROM ledger_assets WHERE code = \\$1").
		WithArgs("USD").
		WillReturnRows(rows)

	_, err := s.CreateAsset(context.Background(), ledger.Asset{Code: "USD", Unit: 1000, Decimals: 3})
	require.ErrorIs(t, err, ledger.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetBalanceReducesVOs(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("SELECT id, code, unit, decimals FROM ledger_assets WHERE code = \\$1").
		WithArgs("USD").
		WillReturnRows(sqlmock.NewRows([]string{"id", "code", "unit", "decimals"}).
			AddRow("asset-1", "USD", int64(100), 2))
	mock.ExpectQuery("SELECT(.|\n)*FROM ledger_value_objects").
		WithArgs("asset-1", "alice").
		WillReturnRows(sqlmock.NewRows([]string{"available", "reserved"}).AddRow(int64(500), int64(200)))

	bal, err := s.GetBalance(context.Background(), "USD", "alice")
	require.NoError(t, err)
	require.Equal(t, int64(500), bal.Available)
	require.Equal(t, int64(200), bal.Reserved)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTransactionNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("SELECT(.|\n)*FROM ledger_transactions WHERE id = \\$1").
		WithArgs("tx-missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "asset_id", "sender", "receiver", "sent_amount", "received_amount", "metadata", "created_at", "idempotency_key"}))

	_, err := s.GetTransaction(context.Background(), "tx-missing")
	require.ErrorIs(t, err, ledger.ErrTransactionNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTransactionFound(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC().Truncate(time.Second)
	mock.ExpectQuery("SELECT(.|\n)*FROM ledger_transactions WHERE id = \\$1").
		WithArgs("tx-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "asset_id", "sender", "receiver", "sent_amount", "received_amount", "metadata", "created_at", "idempotency_key"}).
			AddRow("tx-1", "asset-1", "alice", "bob", int64(500), int64(500), []byte(`{"note":"rent"}`), now, "idem-1"))

	tx, err := s.GetTransaction(context.Background(), "tx-1")
	require.NoError(t, err)
	require.Equal(t, "alice", tx.Sender)
	require.Equal(t, "bob", tx.Receiver)
	require.Equal(t, "rent", tx.Metadata["note"])
	require.NoError(t, mock.ExpectationsWereMet())
}
