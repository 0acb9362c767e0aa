// Package msat defines the smallest accounted unit used throughout the
// stability pool: the millisatoshi. All balances, fees and payouts are
// plain u64 msat counts with overflow-checked arithmetic — there is no
// floating point anywhere on the consensus path.
package msat

import (
	"errors"
	"fmt"
)

// ErrOverflow is returned by the Checked* helpers when an operation would
// wrap a u64 msat counter.
var ErrOverflow = errors.New("msat: amount overflow")

// ErrUnderflow is returned by CheckedSub when the subtrahend exceeds the
// minuend.
var ErrUnderflow = errors.New("msat: amount underflow")

// Amount is a non-negative count of millisatoshis.
type Amount uint64

// Zero is the additive identity.
const Zero Amount = 0

func (a Amount) String() string {
	return fmt.Sprintf("%d msat", uint64(a))
}

// CheckedAdd returns a+b, or ErrOverflow if the u64 result would wrap.
func CheckedAdd(a, b Amount) (Amount, error) {
	sum := a + b
	if sum < a {
		return 0, ErrOverflow
	}
	return sum, nil
}

// CheckedSub returns a-b, or ErrUnderflow if b > a.
func CheckedSub(a, b Amount) (Amount, error) {
	if b > a {
		return 0, ErrUnderflow
	}
	return a - b, nil
}

// MustAdd is CheckedAdd but panics on overflow. Only used on paths that a
// prior Checked* call has already validated — an overflow here indicates a
// bug in that validation, and per the module's error-handling design that
// is a fatal condition for the peer.
func MustAdd(a, b Amount) Amount {
	sum, err := CheckedAdd(a, b)
	if err != nil {
		panic(fmt.Sprintf("msat: checked-arithmetic invariant violated: %v", err))
	}
	return sum
}

// MustSub is CheckedSub but panics on underflow, for the same reason as
// MustAdd.
func MustSub(a, b Amount) Amount {
	diff, err := CheckedSub(a, b)
	if err != nil {
		panic(fmt.Sprintf("msat: checked-arithmetic invariant violated: %v", err))
	}
	return diff
}

// SumChecked folds CheckedAdd over a slice, short-circuiting on overflow.
func SumChecked(amounts ...Amount) (Amount, error) {
	var total Amount
	for _, a := range amounts {
		var err error
		total, err = CheckedAdd(total, a)
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}
