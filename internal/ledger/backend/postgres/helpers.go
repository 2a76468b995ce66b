package postgres

import (
	"database/sql/driver"
	"time"

	"github.com/lib/pq"

	"github.com/R3E-Network/valueledger/internal/domain/ledger"
)

func nowUTC() time.Time { return time.Now().UTC() }

func pqStringArray(ids []string) driver.Valuer {
	return pq.Array(ids)
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
			CreatedAt: nowUTC(),
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
			CreatedAt:   nowUTC(),
		})
	}
	return out
}
