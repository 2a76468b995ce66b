package ledger

import "time"

// Balance is a derived, point-in-time reduction over Value Objects for one
// (asset, identity) pair. It is never stored.
type Balance struct {
	Available int64 // sum of Alive VOs owned by identity
	Reserved  int64 // sum of Reserved VOs whose ReservedFor == identity
	UpdatedAt time.Time
}

// Total returns Available + Reserved.
func (b Balance) Total() int64 {
	return b.Available + b.Reserved
}

// Reduce computes the Balance visible to a single identity over a VO set
// already filtered to one asset. Available sums Alive VOs owned by
// identity; Reserved sums Reserved VOs reserved FOR identity (regardless of
// which owner field the VO still carries).
//
// This single reduction resolves spec.md §9's "Reserve ownership model"
// open question: a Reserve operation consumes the sender's Alive VOs
// (reducing the sender's Available, as any spend would) and creates a
// Reserved VO whose Owner is the original sender but whose ReservedFor is
// the authority. The sender's own Balance never double-counts that VO as
// Reserved, because it was never reserved *for* the sender — only the
// authority's Reduce call picks it up. See DESIGN.md.
func Reduce(vos []ValueObject, identity string, now time.Time) Balance {
	var bal Balance
	for _, v := range vos {
		switch {
		case v.State == StateAlive && v.Owner == identity:
			bal.Available += v.Amount
		case v.State == StateReserved && v.ReservedFor == identity:
			bal.Reserved += v.Amount
		}
	}
	bal.UpdatedAt = now
	return bal
}
