package atomic

import "github.com/R3E-Network/valueledger/internal/domain/ledger"

// Money is a planning-time claim on remaining spendable minor units for one
// (asset, owner) within an atomic context. It is ephemeral: no reference to
// it should outlive the Run call that created it.
type Money struct {
	tx        *Context
	assetCode string
	owner     string
	remaining int64
	sliced    bool
}

// Remaining reports the handle's undistributed budget.
func (m *Money) Remaining() int64 {
	return m.remaining
}

// Slice carves out a one-shot Slice capability of n minor units, decrementing
// the handle's remaining budget. 0 < n <= Remaining(), else InvalidAmount.
func (m *Money) Slice(n int64) (*Slice, error) {
	if n <= 0 || n > m.remaining {
		return nil, ledger.InvalidAmount("slice amount must be > 0 and <= remaining")
	}
	m.remaining -= n
	m.sliced = true

	s := &Slice{tx: m.tx, assetCode: m.assetCode, owner: m.owner, remaining: n}
	m.tx.slices = append(m.tx.slices, s)
	return s, nil
}
