// Package account defines per-account balance state for the stability
// pool: the unlocked msat amount available for withdrawal, and the single
// locked position (if any) held on the seeker or provider side of the
// current epoch.
//
// Grounded on _examples/original_source/src/account.rs (AccountBalance,
// LockedBalance) and laid out the way _examples/luxfi-evm/core/state
// shapes per-key account records.
package account

import (
	"fmt"

	"github.com/luxfi/stabilitypool/msat"
	"github.com/luxfi/stabilitypool/pubkey"
	"github.com/luxfi/stabilitypool/wire"
)

// Side identifies which side of the market a locked position belongs to.
type Side uint8

const (
	// SideNone means the account has no locked position.
	SideNone Side = iota
	// SideSeeker means the locked amount tracks the fiat reference price.
	SideSeeker
	// SideProvider means the locked amount backs seeker positions for a fee.
	SideProvider
)

func (s Side) String() string {
	switch s {
	case SideSeeker:
		return "seeker"
	case SideProvider:
		return "provider"
	default:
		return "none"
	}
}

// Locked is the locked half of an account's balance. The zero value is
// "no locked position", mirroring LockedBalance::None in the original.
type Locked struct {
	Side   Side
	Amount msat.Amount
}

// None reports whether this account currently holds no locked position.
func (l Locked) None() bool { return l.Side == SideNone }

// Balance is the full per-account record persisted under the account-key
// prefix (0xE0).
type Balance struct {
	Unlocked msat.Amount
	Locked   Locked
}

// Zero is the default balance for an account that has never been seen.
var Zero = Balance{}

// Total returns Unlocked+|Locked| with an overflow check — invariant I1.
func (b Balance) Total() (msat.Amount, error) {
	return msat.CheckedAdd(b.Unlocked, b.Locked.Amount)
}

// CanAddUnlocked reports whether adding amount to Unlocked keeps the
// account's total balance representable in a u64 msat counter.
func (b Balance) CanAddUnlocked(amount msat.Amount) bool {
	total, err := b.Total()
	if err != nil {
		return false
	}
	_, err = msat.CheckedAdd(total, amount)
	return err == nil
}

// Account pairs a balance with the public key that owns it, used where a
// self-contained record (e.g. API responses, audit iteration) is needed.
type Account struct {
	ID      pubkey.XOnly
	Balance Balance
}

// Encode renders the record in the module's canonical wire format:
// unlocked (u64 BE), then a side tag and, for seeker/provider, the
// locked amount (u64 BE).
func (b Balance) Encode() []byte {
	w := wire.NewWriter()
	w.U64(uint64(b.Unlocked))
	w.U8(uint8(b.Locked.Side))
	if !b.Locked.None() {
		w.U64(uint64(b.Locked.Amount))
	}
	return w.Bytes()
}

// Decode parses a Balance from its canonical encoding.
func Decode(data []byte) (Balance, error) {
	r := wire.NewReader(data)
	unlocked, err := r.U64()
	if err != nil {
		return Balance{}, err
	}
	sideByte, err := r.U8()
	if err != nil {
		return Balance{}, err
	}
	side := Side(sideByte)
	var locked Locked
	switch side {
	case SideNone:
	case SideSeeker, SideProvider:
		amt, err := r.U64()
		if err != nil {
			return Balance{}, err
		}
		locked = Locked{Side: side, Amount: msat.Amount(amt)}
	default:
		return Balance{}, fmt.Errorf("account: unknown side tag %d", sideByte)
	}
	if !r.Done() {
		return Balance{}, fmt.Errorf("account: trailing bytes after decoding balance")
	}
	return Balance{Unlocked: msat.Amount(unlocked), Locked: locked}, nil
}
