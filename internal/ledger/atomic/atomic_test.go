package atomic_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/valueledger/internal/domain/ledger"
	"github.com/R3E-Network/valueledger/internal/ledger/atomic"
	"github.com/R3E-Network/valueledger/internal/ledger/backend/memory"
)

func newUSDStore(t *testing.T) *memory.Store {
	t.Helper()
	s := memory.New()
	_, err := s.CreateAsset(context.Background(), ledger.Asset{Code: "USD", Unit: 1000, Decimals: 2})
	require.NoError(t, err)
	return s
}

func mint(t *testing.T, s *memory.Store, owner string, amount int64) {
	t.Helper()
	require.NoError(t, s.ExecutePlan(context.Background(), ledger.NewPlan([]ledger.Operation{
		ledger.Mint("USD", owner, amount, nil),
	})))
}

// Scenario 3: split payment across three recipients via nested slicing.
func TestSplitPaymentAcrossThreeRecipients(t *testing.T) {
	s := newUSDStore(t)
	ctx := context.Background()
	mint(t, s, "U", 10000)

	_, err := atomic.Run(ctx, s, func(tx *atomic.Context) error {
		money, err := tx.Money("USD", "U", 10000)
		if err != nil {
			return err
		}
		slice1, err := money.Slice(6000)
		if err != nil {
			return err
		}
		if err := slice1.TransferTo("M1", nil); err != nil {
			return err
		}
		slice2, err := money.Slice(3000)
		if err != nil {
			return err
		}
		if err := slice2.TransferTo("M2", nil); err != nil {
			return err
		}
		slice3, err := money.Slice(1000)
		if err != nil {
			return err
		}
		return slice3.TransferTo("M3", nil)
	})
	require.NoError(t, err)

	for owner, want := range map[string]int64{"M1": 6000, "M2": 3000, "M3": 1000} {
		bal, err := s.GetBalance(ctx, "USD", owner)
		require.NoError(t, err)
		require.Equal(t, want, bal.Available)
	}

	uBal, err := s.GetBalance(ctx, "USD", "U")
	require.NoError(t, err)
	require.Equal(t, int64(0), uBal.Available)
}

// Scenario 4: a fully-sliced but never-transferred Slice fails atomically.
func TestUnconsumedSliceFailsAtomically(t *testing.T) {
	s := newUSDStore(t)
	ctx := context.Background()
	mint(t, s, "U", 10000)

	_, err := atomic.Run(ctx, s, func(tx *atomic.Context) error {
		money, err := tx.Money("USD", "U", 10000)
		if err != nil {
			return err
		}
		_, err = money.Slice(10000)
		return err
	})
	require.Error(t, err)
	require.ErrorIs(t, err, ledger.ErrUnconsumedSlice)

	uBal, err := s.GetBalance(ctx, "USD", "U")
	require.NoError(t, err)
	require.Equal(t, int64(10000), uBal.Available)
}

// Scenario 5: over-slicing a handle past its remaining budget is rejected
// at the moment of the call, aborting the whole atomic.
func TestOverSliceRejected(t *testing.T) {
	s := newUSDStore(t)
	ctx := context.Background()
	mint(t, s, "U", 10000)

	_, err := atomic.Run(ctx, s, func(tx *atomic.Context) error {
		money, err := tx.Money("USD", "U", 10000)
		if err != nil {
			return err
		}
		if _, err := money.Slice(6000); err != nil {
			return err
		}
		_, err = money.Slice(5000)
		return err
	})
	require.Error(t, err)
	require.ErrorIs(t, err, ledger.ErrInvalidAmount)

	uBal, err := s.GetBalance(ctx, "USD", "U")
	require.NoError(t, err)
	require.Equal(t, int64(10000), uBal.Available)
}

// Scenario 6 (atomic-level): a Money handle that is never sliced at all
// fails distinctly from the leftover-remaining case.
func TestMoneyNeverSlicedFailsWithStorageError(t *testing.T) {
	s := newUSDStore(t)
	ctx := context.Background()
	mint(t, s, "U", 10000)

	_, err := atomic.Run(ctx, s, func(tx *atomic.Context) error {
		_, err := tx.Money("USD", "U", 10000)
		return err
	})
	require.Error(t, err)
	var lerr *ledger.Error
	require.True(t, errors.As(err, &lerr))
	require.Equal(t, ledger.KindStorage, lerr.Kind)
}

// Scenario 8: a closure that applies a Transfer and then returns an error
// rolls back the whole atomic, leaving balances untouched.
func TestClosureErrorRollsBackTransfer(t *testing.T) {
	s := newUSDStore(t)
	ctx := context.Background()
	mint(t, s, "U", 10000)

	sentinel := errors.New("downstream failure after transfer")
	_, err := atomic.Run(ctx, s, func(tx *atomic.Context) error {
		money, err := tx.Money("USD", "U", 6000)
		if err != nil {
			return err
		}
		slice, err := money.Slice(6000)
		if err != nil {
			return err
		}
		if err := slice.TransferTo("M", nil); err != nil {
			return err
		}
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	uBal, err := s.GetBalance(ctx, "USD", "U")
	require.NoError(t, err)
	require.Equal(t, int64(10000), uBal.Available)

	mBal, err := s.GetBalance(ctx, "USD", "M")
	require.NoError(t, err)
	require.Equal(t, int64(0), mBal.Available)
}

// A slice subdivided entirely into children (remaining reaches zero without
// ever calling TransferTo/Burn on the parent itself) is not itself flagged
// unconsumed, so long as every child is consumed.
func TestSliceFullySubdividedNeedsNoDirectConsumption(t *testing.T) {
	s := newUSDStore(t)
	ctx := context.Background()
	mint(t, s, "U", 10000)

	_, err := atomic.Run(ctx, s, func(tx *atomic.Context) error {
		money, err := tx.Money("USD", "U", 10000)
		if err != nil {
			return err
		}
		parent, err := money.Slice(10000)
		if err != nil {
			return err
		}
		left, err := parent.Slice(4000)
		if err != nil {
			return err
		}
		right, err := parent.Slice(6000)
		if err != nil {
			return err
		}
		if err := left.TransferTo("M1", nil); err != nil {
			return err
		}
		return right.TransferTo("M2", nil)
	})
	require.NoError(t, err)

	m1, err := s.GetBalance(ctx, "USD", "M1")
	require.NoError(t, err)
	require.Equal(t, int64(4000), m1.Available)

	m2, err := s.GetBalance(ctx, "USD", "M2")
	require.NoError(t, err)
	require.Equal(t, int64(6000), m2.Available)
}

func TestReserveThenActivateInSeparateAtomics(t *testing.T) {
	s := newUSDStore(t)
	ctx := context.Background()
	mint(t, s, "U", 10000)

	_, err := atomic.Run(ctx, s, func(tx *atomic.Context) error {
		if err := tx.Reserve("USD", "U", "A", 6000, nil); err != nil {
			return err
		}
		return nil
	})
	require.NoError(t, err)

	_, err = atomic.Run(ctx, s, func(tx *atomic.Context) error {
		return tx.ActivateReservation("USD", "U", "A", 6000)
	})
	require.NoError(t, err)

	aBal, err := s.GetBalance(ctx, "USD", "A")
	require.NoError(t, err)
	require.Equal(t, int64(6000), aBal.Available)

	uBal, err := s.GetBalance(ctx, "USD", "U")
	require.NoError(t, err)
	require.Equal(t, int64(4000), uBal.Available)
}

func TestBurnConsumesSlice(t *testing.T) {
	s := newUSDStore(t)
	ctx := context.Background()
	mint(t, s, "U", 10000)

	_, err := atomic.Run(ctx, s, func(tx *atomic.Context) error {
		money, err := tx.Money("USD", "U", 4000)
		if err != nil {
			return err
		}
		slice, err := money.Slice(4000)
		if err != nil {
			return err
		}
		return slice.Burn(map[string]string{"reason": "write-off"})
	})
	require.NoError(t, err)

	uBal, err := s.GetBalance(ctx, "USD", "U")
	require.NoError(t, err)
	require.Equal(t, int64(6000), uBal.Available)
}
