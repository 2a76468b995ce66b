package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReduceMintThenTransfer(t *testing.T) {
	now := time.Now().UTC()
	vos := []ValueObject{
		{ID: "1", Owner: "U", Amount: 4000, State: StateAlive},
		{ID: "2", Owner: "M", Amount: 6000, State: StateAlive},
	}
	require.Equal(t, int64(4000), Reduce(vos, "U", now).Available)
	require.Equal(t, int64(6000), Reduce(vos, "M", now).Available)
}

func TestReduceReserveSplit(t *testing.T) {
	// mint(USD, U, 10000); reserve(USD, U -> A, 6000)
	now := time.Now().UTC()
	vos := []ValueObject{
		{ID: "1", Owner: "U", Amount: 4000, State: StateAlive},
		{ID: "2", Owner: "U", Amount: 6000, State: StateReserved, ReservedFor: "A"},
	}
	uBal := Reduce(vos, "U", now)
	require.Equal(t, int64(4000), uBal.Available)
	require.Equal(t, int64(0), uBal.Reserved)

	aBal := Reduce(vos, "A", now)
	require.Equal(t, int64(0), aBal.Available)
	require.Equal(t, int64(6000), aBal.Reserved)
}

func TestBalanceTotal(t *testing.T) {
	b := Balance{Available: 10, Reserved: 5}
	require.Equal(t, int64(15), b.Total())
}
