package ledger

import "time"

// State is the lifecycle stage of a Value Object. It only ever moves
// forward along the transitions enumerated in allowedTransitions; Burned is
// terminal.
type State string

const (
	StateAlive    State = "alive"
	StateReserved State = "reserved"
	StateBurned   State = "burned"
)

// allowedTransitions enumerates every valid (from, to) edge in the VO state
// machine, per spec.md §4.1: Alive→Reserved, Alive→Burned, Reserved→Alive
// (activation), Reserved→Burned (release/cancel).
var allowedTransitions = map[State]map[State]bool{
	StateAlive:    {StateReserved: true, StateBurned: true},
	StateReserved: {StateAlive: true, StateBurned: true},
	StateBurned:   {},
}

// CanTransition reports whether moving from one state to another is a legal
// edge in the VO lifecycle.
func CanTransition(from, to State) bool {
	edges, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	return edges[to]
}

// ValueObject is the smallest addressable unit of value: an immutable
// amount of one asset owned by one owner, with a one-way lifecycle.
type ValueObject struct {
	ID          string
	AssetID     string
	Owner       string
	Amount      int64
	State       State
	ReservedFor string // required iff State == StateReserved
	CreatedAt   time.Time
}

// Validate enforces the per-VO invariants from spec.md §3/§4.1: amount
// bound, and ReservedFor set iff Reserved.
func (v ValueObject) Validate(unit int64) error {
	if v.Amount <= 0 {
		return InvalidAmount("value object amount must be > 0")
	}
	if unit > 0 && v.Amount > unit {
		return InvalidAmount("value object amount exceeds asset unit")
	}
	switch v.State {
	case StateReserved:
		if v.ReservedFor == "" {
			return Storage("reserved value object missing reserved_for", nil)
		}
	case StateAlive, StateBurned:
		if v.ReservedFor != "" {
			return Storage("non-reserved value object must not carry reserved_for", nil)
		}
	default:
		return Storage("unknown value object state: "+string(v.State), nil)
	}
	return nil
}

// Fragment splits a logical amount into a sequence of per-VO amounts, each
// bounded by unit, per spec.md §4.1: "fragment it into successive VOs of
// size min(remaining, unit) until exhausted". The caller assigns identity
// and owner to each fragment.
func Fragment(amount, unit int64) []int64 {
	if amount <= 0 {
		return nil
	}
	if unit <= 0 {
		return []int64{amount}
	}
	fragments := make([]int64, 0, amount/unit+1)
	remaining := amount
	for remaining > 0 {
		piece := unit
		if remaining < piece {
			piece = remaining
		}
		fragments = append(fragments, piece)
		remaining -= piece
	}
	return fragments
}
