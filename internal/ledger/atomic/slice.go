package atomic

import "github.com/R3E-Network/valueledger/internal/domain/ledger"

// Slice is a one-shot capability derived from a Money handle (or from
// another Slice). It carries a fixed current amount that shrinks as it is
// subdivided, and must eventually be consumed by TransferTo or Burn, or be
// fully subdivided away to zero remaining.
type Slice struct {
	tx        *Context
	assetCode string
	owner     string
	remaining int64
	consumed  bool
}

// Amount reports the slice's current undistributed amount.
func (s *Slice) Amount() int64 {
	return s.remaining
}

// Slice subdivides this slice into a child Slice of n minor units,
// decrementing this slice's remaining amount. 0 < n <= Amount(), else
// InvalidAmount. Subdividing does not itself count as consuming this
// slice — the child must still be consumed or further subdivided.
func (s *Slice) Slice(n int64) (*Slice, error) {
	if s.consumed {
		return nil, ledger.Storage("slice for "+s.owner+" already consumed", nil)
	}
	if n <= 0 || n > s.remaining {
		return nil, ledger.InvalidAmount("sub-slice amount must be > 0 and <= parent remaining")
	}
	s.remaining -= n

	child := &Slice{tx: s.tx, assetCode: s.assetCode, owner: s.owner, remaining: n}
	s.tx.slices = append(s.tx.slices, child)
	return child, nil
}

// TransferTo consumes this slice's entire current amount: appends a
// Transfer operation moving it to recipient plus a Transaction record, and
// marks the slice consumed.
func (s *Slice) TransferTo(recipient string, metadata map[string]string) error {
	if s.consumed {
		return ledger.Storage("slice for "+s.owner+" already consumed", nil)
	}
	if s.remaining <= 0 {
		return ledger.InvalidAmount("slice has no remaining amount to transfer")
	}
	asset, err := s.tx.resolveAsset(s.assetCode)
	if err != nil {
		return err
	}

	s.tx.ops = append(s.tx.ops, ledger.Transfer(s.assetCode, s.owner, recipient, s.remaining, metadata))
	s.tx.ops = append(s.tx.ops, ledger.RecordTransaction(ledger.Transaction{
		AssetID:        asset.ID,
		Sender:         s.owner,
		Receiver:       recipient,
		SentAmount:     s.remaining,
		ReceivedAmount: s.remaining,
		Metadata:       metadata,
	}))
	s.consumed = true
	s.remaining = 0
	return nil
}

// Burn consumes this slice's entire current amount: appends a Burn
// operation plus a Transaction record, and marks the slice consumed.
func (s *Slice) Burn(metadata map[string]string) error {
	if s.consumed {
		return ledger.Storage("slice for "+s.owner+" already consumed", nil)
	}
	if s.remaining <= 0 {
		return ledger.InvalidAmount("slice has no remaining amount to burn")
	}
	asset, err := s.tx.resolveAsset(s.assetCode)
	if err != nil {
		return err
	}

	s.tx.ops = append(s.tx.ops, ledger.Burn(s.assetCode, s.owner, s.remaining, metadata))
	s.tx.ops = append(s.tx.ops, ledger.RecordTransaction(ledger.Transaction{
		AssetID:    asset.ID,
		Sender:     s.owner,
		SentAmount: s.remaining,
		Metadata:   metadata,
	}))
	s.consumed = true
	s.remaining = 0
	return nil
}
