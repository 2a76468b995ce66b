package ledger

import "github.com/google/uuid"

// NewID returns a time-ordered 128-bit identifier suitable for VO,
// Transaction, and Asset identity. UUIDv7 embeds a millisecond timestamp in
// its high bits, so IDs generated later sort later, which is what the
// "monotonic-friendly" requirement in spec.md §6 asks for and what the
// amount-ASC/id-ASC tie-break in §4.5 relies on for determinism among VOs of
// equal amount.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails if the global random source errors; fall back to
		// a random v4 rather than panic on a core allocation path.
		return uuid.NewString()
	}
	return id.String()
}
