package msat

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckedAdd(t *testing.T) {
	sum, err := CheckedAdd(10, 20)
	require.NoError(t, err)
	require.Equal(t, Amount(30), sum)

	_, err = CheckedAdd(math.MaxUint64, 1)
	require.ErrorIs(t, err, ErrOverflow)
}

func TestCheckedSub(t *testing.T) {
	diff, err := CheckedSub(20, 10)
	require.NoError(t, err)
	require.Equal(t, Amount(10), diff)

	_, err = CheckedSub(10, 20)
	require.ErrorIs(t, err, ErrUnderflow)
}

func TestMustAddPanicsOnOverflow(t *testing.T) {
	require.Panics(t, func() {
		MustAdd(math.MaxUint64, 1)
	})
}

func TestMustSubPanicsOnUnderflow(t *testing.T) {
	require.Panics(t, func() {
		MustSub(1, 2)
	})
}

func TestSumChecked(t *testing.T) {
	total, err := SumChecked(1, 2, 3)
	require.NoError(t, err)
	require.Equal(t, Amount(6), total)

	_, err = SumChecked(math.MaxUint64, 1)
	require.ErrorIs(t, err, ErrOverflow)
}
