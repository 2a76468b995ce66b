package ledger

import "fmt"

// Kind identifies the taxonomy of a ledger error, independent of its
// wrapped cause or message. Callers should branch on Kind, not on the
// formatted message.
type Kind string

const (
	KindInsufficientFunds      Kind = "insufficient_funds"
	KindAssetNotFound          Kind = "asset_not_found"
	KindInvalidAmount          Kind = "invalid_amount"
	KindUnconsumedSlice        Kind = "unconsumed_slice"
	KindReservationNotFound    Kind = "reservation_not_found"
	KindInvalidAuthority       Kind = "invalid_authority"
	KindTransactionNotFound    Kind = "transaction_not_found"
	KindDuplicateIdempotencyKey Kind = "duplicate_idempotency_key"
	KindConflict               Kind = "conflict"
	KindStorage                Kind = "storage"
)

// Error is the single error type surfaced by the ledger core. Every
// returned error can be type-asserted to *Error to recover its Kind.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, ledger.ErrInsufficientFunds) style sentinel
// comparisons by matching on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func newErr(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func wrapErr(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// Sentinel instances for errors.Is comparisons against a bare Kind.
var (
	ErrInsufficientFunds       = newErr(KindInsufficientFunds, "insufficient funds")
	ErrAssetNotFound           = newErr(KindAssetNotFound, "asset not found")
	ErrInvalidAmount           = newErr(KindInvalidAmount, "invalid amount")
	ErrUnconsumedSlice         = newErr(KindUnconsumedSlice, "unconsumed slice")
	ErrReservationNotFound     = newErr(KindReservationNotFound, "reservation not found")
	ErrInvalidAuthority        = newErr(KindInvalidAuthority, "invalid authority")
	ErrTransactionNotFound     = newErr(KindTransactionNotFound, "transaction not found")
	ErrDuplicateIdempotencyKey = newErr(KindDuplicateIdempotencyKey, "duplicate idempotency key")
	ErrConflict                = newErr(KindConflict, "conflict")
)

// InsufficientFunds reports a lock pool (Alive, or Reserved for one
// authority) whose VOs summed to less than required.
func InsufficientFunds(assetCode, owner string, required, available int64) *Error {
	return newErr(KindInsufficientFunds, fmt.Sprintf(
		"asset %s owner %s: required %d, available %d", assetCode, owner, required, available))
}

// AssetNotFound reports a lookup or operation against an unknown asset code.
func AssetNotFound(code string) *Error {
	return newErr(KindAssetNotFound, fmt.Sprintf("asset %q not found", code))
}

// InvalidAmount reports a non-positive or over-budget amount at planning time.
func InvalidAmount(msg string) *Error {
	return newErr(KindInvalidAmount, msg)
}

// UnconsumedSlice reports a Slice or Money handle left with unconsumed
// remaining at atomic-context close.
func UnconsumedSlice(msg string) *Error {
	return newErr(KindUnconsumedSlice, msg)
}

// InvalidAuthority reports a Reserved-state operation attempted by an
// authority other than the one recorded on the VO.
func InvalidAuthority(authority string) *Error {
	return newErr(KindInvalidAuthority, fmt.Sprintf("authority %q does not match reservation", authority))
}

// ReservationNotFound reports an Activate/ReleaseReservation against an
// (asset, owner) pair that holds no Reserved VOs for any authority.
func ReservationNotFound(assetCode, owner string) *Error {
	return newErr(KindReservationNotFound, fmt.Sprintf("asset %s owner %s: no reservation found", assetCode, owner))
}

// TransactionNotFound reports a get_transaction miss.
func TransactionNotFound(id string) *Error {
	return newErr(KindTransactionNotFound, fmt.Sprintf("transaction %q not found", id))
}

// DuplicateIdempotencyKey reports a recording collision on idempotency key.
func DuplicateIdempotencyKey(key string) *Error {
	return newErr(KindDuplicateIdempotencyKey, fmt.Sprintf("idempotency key %q already recorded", key))
}

// Conflict reports an asset code collision with different attributes, or a
// backend write conflict that could not be serialized.
func Conflict(msg string) *Error {
	return newErr(KindConflict, msg)
}

// Storage is the catch-all for backend/infrastructure failures, arithmetic
// overflow, and invariant-violation messages.
func Storage(msg string, cause error) *Error {
	return wrapErr(KindStorage, msg, cause)
}
