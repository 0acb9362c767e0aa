// Ledger operations, spec §4.1: deposit/withdraw transaction handlers
// against an account's unlocked balance, with overflow-safe arithmetic
// and duplicate-outpoint protection.
package pool

import (
	"errors"
	"fmt"

	"github.com/luxfi/stabilitypool/account"
	"github.com/luxfi/stabilitypool/msat"
	"github.com/luxfi/stabilitypool/pubkey"
	"github.com/luxfi/stabilitypool/store"
)

// ErrUnavailableFunds is returned by ValidateWithdraw when the account's
// unlocked balance can't cover the requested amount.
type ErrUnavailableFunds struct {
	Requested msat.Amount
	Available msat.Amount
}

func (e ErrUnavailableFunds) Error() string {
	return fmt.Sprintf("pool: unavailable funds: requested %s, available %s", e.Requested, e.Available)
}

// ErrDepositTooLarge is returned when a deposit would overflow an
// account's u64 msat balance.
type ErrDepositTooLarge struct {
	Amount    msat.Amount
	Unlocked  msat.Amount
}

func (e ErrDepositTooLarge) Error() string {
	return fmt.Sprintf("pool: deposit of %s would overflow unlocked balance %s", e.Amount, e.Unlocked)
}

// ErrOutpointExists is returned by ApplyDeposit when the outpoint key
// already maps to an account (invariant I6).
var ErrOutpointExists = store.ErrKeyExists

// getBalance reads an account's balance, defaulting to Zero for an
// account never seen before.
func getBalance(tx *store.Tx, acc pubkey.XOnly) (account.Balance, error) {
	data, ok, err := tx.Get(store.AccountBalanceKey(acc))
	if err != nil {
		return account.Balance{}, err
	}
	if !ok {
		return account.Zero, nil
	}
	return account.Decode(data)
}

func putBalance(tx *store.Tx, acc pubkey.XOnly, bal account.Balance) {
	tx.Put(store.AccountBalanceKey(acc), bal.Encode())
}

// ValidateWithdraw reads the account and fails with ErrUnavailableFunds
// if amount exceeds unlocked. It deliberately does not reserve amounts
// staged by a pending SeekerLock action for the next epoch (spec §9
// open question: this is the source's documented, unresolved
// limitation, carried forward rather than silently fixed).
func (p *StabilityPool) ValidateWithdraw(tx *store.Tx, acc pubkey.XOnly, amount msat.Amount) (fee msat.Amount, err error) {
	bal, err := getBalance(tx, acc)
	if err != nil {
		return 0, err
	}
	if amount > bal.Unlocked {
		return 0, ErrUnavailableFunds{Requested: amount, Available: bal.Unlocked}
	}
	return 0, nil // fee is always 0; fee accounting is out of scope
}

// ApplyWithdraw re-validates and decrements the account's unlocked
// balance by amount. If the re-validation fails it returns
// ErrUnavailableFunds and leaves the balance unchanged; the subtraction
// itself goes through msat.MustSub, which panics on underflow.
func (p *StabilityPool) ApplyWithdraw(tx *store.Tx, acc pubkey.XOnly, amount msat.Amount) error {
	bal, err := getBalance(tx, acc)
	if err != nil {
		return err
	}
	if amount > bal.Unlocked {
		return ErrUnavailableFunds{Requested: amount, Available: bal.Unlocked}
	}
	bal.Unlocked = msat.MustSub(bal.Unlocked, amount)
	putBalance(tx, acc, bal)
	return nil
}

// ValidateDeposit fails with ErrDepositTooLarge if crediting amount
// would overflow the account's total balance.
func (p *StabilityPool) ValidateDeposit(tx *store.Tx, acc pubkey.XOnly, amount msat.Amount) error {
	bal, err := getBalance(tx, acc)
	if err != nil {
		return err
	}
	if !bal.CanAddUnlocked(amount) {
		return ErrDepositTooLarge{Amount: amount, Unlocked: bal.Unlocked}
	}
	return nil
}

// ApplyDeposit re-validates, credits unlocked by amount, and records
// outpoint -> account. It fails if outpoint already has a recorded
// owner (invariant I6: duplicate protection).
func (p *StabilityPool) ApplyDeposit(tx *store.Tx, acc pubkey.XOnly, amount msat.Amount, outpoint []byte) error {
	if err := p.ValidateDeposit(tx, acc, amount); err != nil {
		return err
	}
	bal, err := getBalance(tx, acc)
	if err != nil {
		return err
	}
	bal.Unlocked = msat.MustAdd(bal.Unlocked, amount)

	if err := tx.InsertNew(store.DepositOutcomeKey(outpoint), acc.Bytes()); err != nil {
		if errors.Is(err, store.ErrKeyExists) {
			return ErrOutpointExists
		}
		return err
	}
	putBalance(tx, acc, bal)
	return nil
}

// DepositOwner returns the account that a deposit outpoint was recorded
// for, and whether it was found at all.
func (p *StabilityPool) DepositOwner(tx *store.Tx, outpoint []byte) (pubkey.XOnly, bool, error) {
	data, ok, err := tx.Get(store.DepositOutcomeKey(outpoint))
	if err != nil || !ok {
		return pubkey.XOnly{}, false, err
	}
	acc, err := pubkey.FromBytes(data)
	if err != nil {
		return pubkey.XOnly{}, false, err
	}
	return acc, true, nil
}
