package ledger

// LockKey identifies one (asset, owner) pair that an Execution Plan must
// prove sufficient funds for before any VO is mutated.
type LockKey struct {
	AssetCode string
	Owner     string
}

// Plan is an ordered, validated batch of Operations plus the derived lock
// set the backend must acquire before applying any of them.
type Plan struct {
	Operations []Operation
	Locks      map[LockKey]int64
}

// NewPlan builds a Plan from an ordered operation slice, deriving its lock
// set per spec.md §4.4: sum every debiting (from) side, keyed by
// (asset, owner); Mint/recipient sides and RecordTransaction contribute
// nothing.
func NewPlan(ops []Operation) Plan {
	locks := make(map[LockKey]int64)
	for _, op := range ops {
		if assetCode, owner, amount, ok := op.ConsumesFrom(); ok {
			locks[LockKey{AssetCode: assetCode, Owner: owner}] += amount
			continue
		}
		switch op.Kind {
		case OpActivateReservation, OpReleaseReservation:
			// These consume Reserved VOs owned by op.Owner rather than
			// Alive ones, but still require exclusive access to that
			// owner's VO set, so they aggregate into the same lock key.
			locks[LockKey{AssetCode: op.AssetCode, Owner: op.Owner}] += op.Amount
		}
	}
	return Plan{Operations: append([]Operation(nil), ops...), Locks: locks}
}

// IsEmpty reports whether the plan carries no operations at all.
func (p Plan) IsEmpty() bool {
	return len(p.Operations) == 0
}
