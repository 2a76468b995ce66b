package ledger

// OperationKind tags the variant of an Operation. Go has no native sum
// type, so Operation is a discriminated struct: Kind selects which of the
// payload fields are meaningful, and dispatch on it must be exhaustive
// (see Plan.Locks and every backend's apply loop).
type OperationKind string

const (
	OpMint                OperationKind = "mint"
	OpBurn                OperationKind = "burn"
	OpTransfer            OperationKind = "transfer"
	OpReserve             OperationKind = "reserve"
	OpActivateReservation OperationKind = "activate_reservation"
	OpReleaseReservation  OperationKind = "release_reservation"
	OpRecordTransaction   OperationKind = "record_transaction"
)

// Operation is one step of an Execution Plan. Only the fields relevant to
// Kind are populated; see the constructors below.
type Operation struct {
	Kind OperationKind

	AssetCode string
	Owner     string // consumed side for Burn/Transfer/Reserve; VO owner for Mint
	To        string // recipient for Transfer
	Authority string // for_authority for Reserve/ActivateReservation/ReleaseReservation
	Amount    int64
	Metadata  map[string]string

	// ReservationVOIDs lists specific Reserved VOs for an
	// Activate/ReleaseReservation call. Neither backend reads it: both
	// always select Reserved VOs by owner and authority, smallest first.
	ReservationVOIDs []string

	// Record carries the payload for OpRecordTransaction.
	Record *Transaction
}

// Mint constructs a Mint operation: creates Alive VOs for owner.
func Mint(assetCode, owner string, amount int64, metadata map[string]string) Operation {
	return Operation{Kind: OpMint, AssetCode: assetCode, Owner: owner, Amount: amount, Metadata: metadata}
}

// Burn constructs a Burn operation: consumes existing Alive VOs of owner.
func Burn(assetCode, owner string, amount int64, metadata map[string]string) Operation {
	return Operation{Kind: OpBurn, AssetCode: assetCode, Owner: owner, Amount: amount, Metadata: metadata}
}

// Transfer constructs a Transfer operation: consumes Alive VOs of from,
// creates Alive VOs for to.
func Transfer(assetCode, from, to string, amount int64, metadata map[string]string) Operation {
	return Operation{Kind: OpTransfer, AssetCode: assetCode, Owner: from, To: to, Amount: amount, Metadata: metadata}
}

// Reserve constructs a Reserve operation: consumes Alive VOs of from,
// creates Reserved VOs owned by from with ReservedFor authority.
func Reserve(assetCode, from, authority string, amount int64, metadata map[string]string) Operation {
	return Operation{Kind: OpReserve, AssetCode: assetCode, Owner: from, Authority: authority, Amount: amount, Metadata: metadata}
}

// ActivateReservation constructs an operation moving Reserved VOs owned by
// owner and reserved for authority into Alive VOs owned by authority.
// Requires authority == the VO's ReservedFor (spec.md §4.1).
func ActivateReservation(assetCode, owner, authority string, amount int64) Operation {
	return Operation{Kind: OpActivateReservation, AssetCode: assetCode, Owner: owner, Authority: authority, Amount: amount}
}

// ReleaseReservation constructs an operation cancelling a reservation: the
// Reserved VOs revert to Alive, owned by the original owner.
func ReleaseReservation(assetCode, owner, authority string, amount int64) Operation {
	return Operation{Kind: OpReleaseReservation, AssetCode: assetCode, Owner: owner, Authority: authority, Amount: amount}
}

// RecordTransaction constructs an operation that appends an audit row with
// no VO side effects.
func RecordTransaction(record Transaction) Operation {
	return Operation{Kind: OpRecordTransaction, Record: &record}
}

// ConsumesFrom reports the (assetCode, owner) pair this operation debits,
// and whether it debits anything at all. Mint and RecordTransaction debit
// nothing; ActivateReservation debits the Reserved pool, not the Alive pool,
// so it is excluded from the Alive-VO lock set (it locks its own
// reservation instead — see Plan.Locks).
func (op Operation) ConsumesFrom() (assetCode, owner string, amount int64, ok bool) {
	switch op.Kind {
	case OpBurn, OpTransfer, OpReserve:
		return op.AssetCode, op.Owner, op.Amount, true
	default:
		return "", "", 0, false
	}
}
