package ledger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to State
		want     bool
	}{
		{StateAlive, StateReserved, true},
		{StateAlive, StateBurned, true},
		{StateReserved, StateAlive, true},
		{StateReserved, StateBurned, true},
		{StateBurned, StateAlive, false},
		{StateBurned, StateReserved, false},
		{StateAlive, StateAlive, false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestValueObjectValidate(t *testing.T) {
	unit := int64(1000)

	vo := ValueObject{Amount: 500, State: StateAlive}
	require.NoError(t, vo.Validate(unit))

	tooBig := ValueObject{Amount: 1001, State: StateAlive}
	require.Error(t, tooBig.Validate(unit))

	zero := ValueObject{Amount: 0, State: StateAlive}
	require.Error(t, zero.Validate(unit))

	reservedMissingAuthority := ValueObject{Amount: 100, State: StateReserved}
	require.Error(t, reservedMissingAuthority.Validate(unit))

	reservedOK := ValueObject{Amount: 100, State: StateReserved, ReservedFor: "authority"}
	require.NoError(t, reservedOK.Validate(unit))

	aliveWithReservedFor := ValueObject{Amount: 100, State: StateAlive, ReservedFor: "authority"}
	require.Error(t, aliveWithReservedFor.Validate(unit))
}

func TestFragment(t *testing.T) {
	require.Equal(t, []int64{1000, 1000, 1000}, Fragment(3000, 1000))
	require.Equal(t, []int64{1000, 1000, 500}, Fragment(2500, 1000))
	require.Equal(t, []int64{500}, Fragment(500, 1000))
	require.Nil(t, Fragment(0, 1000))
	require.Nil(t, Fragment(-5, 1000))

	total := int64(0)
	for _, f := range Fragment(10000, 1000) {
		require.LessOrEqual(t, f, int64(1000))
		total += f
	}
	require.Equal(t, int64(10000), total)
}
