package ledger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewPlanLockDerivation(t *testing.T) {
	ops := []Operation{
		Mint("USD", "U", 10000, nil),
		Transfer("USD", "U", "M", 6000, nil),
		Burn("USD", "U", 1000, nil),
		RecordTransaction(Transaction{Sender: "U", Receiver: "M", SentAmount: 6000, ReceivedAmount: 6000}),
	}
	plan := NewPlan(ops)

	require.Len(t, plan.Operations, 4)
	require.Equal(t, int64(7000), plan.Locks[LockKey{AssetCode: "USD", Owner: "U"}])
	_, mintLocked := plan.Locks[LockKey{AssetCode: "USD", Owner: "M"}]
	require.False(t, mintLocked, "mint/recipient side must not contribute to locks")
}

func TestNewPlanReserveLocksSender(t *testing.T) {
	plan := NewPlan([]Operation{
		Reserve("USD", "U", "A", 6000, nil),
	})
	require.Equal(t, int64(6000), plan.Locks[LockKey{AssetCode: "USD", Owner: "U"}])
}

func TestPlanIsEmpty(t *testing.T) {
	require.True(t, NewPlan(nil).IsEmpty())
	require.False(t, NewPlan([]Operation{Mint("USD", "U", 1, nil)}).IsEmpty())
}
