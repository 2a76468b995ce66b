package ledger

// Asset is a registered kind of fungible value: a currency, a token, a
// loyalty point system. Unit bounds the amount any single Value Object of
// this asset may carry; Decimals is presentation-only and must never enter
// arithmetic.
type Asset struct {
	ID       string
	Code     string
	Unit     int64
	Decimals int32
}

// Validate enforces the Asset invariants from spec.md §3: unit > 0.
// Decimals has no lower bound check beyond "≥ 0" since it is presentation-only.
func (a Asset) Validate() error {
	if a.Unit <= 0 {
		return InvalidAmount("asset unit must be > 0")
	}
	if a.Decimals < 0 {
		return InvalidAmount("asset decimals must be >= 0")
	}
	if a.Code == "" {
		return InvalidAmount("asset code must not be empty")
	}
	return nil
}

// SameDefinition reports whether two assets describe the same unit/decimals
// under the same code, used by create_asset's idempotency check (spec.md
// §4.2): repeated creation with the same code must yield the same identity,
// but creating a different asset under an existing code is a Conflict.
func (a Asset) SameDefinition(other Asset) bool {
	return a.Code == other.Code && a.Unit == other.Unit && a.Decimals == other.Decimals
}
