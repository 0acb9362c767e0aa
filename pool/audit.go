// Read-only views over the pool's store, backing the API's query
// endpoints and the /state audit snapshot (spec §4.5, §9 "store as the
// single source of truth" — no in-memory cache of persisted entries).
package pool

import (
	"github.com/luxfi/stabilitypool/account"
	"github.com/luxfi/stabilitypool/action"
	"github.com/luxfi/stabilitypool/epoch"
	"github.com/luxfi/stabilitypool/pubkey"
	"github.com/luxfi/stabilitypool/store"
)

// DeriveIds returns the pool's current/staging epoch ids.
func (p *StabilityPool) DeriveIds(tx *store.Tx) (epoch.Ids, error) {
	lastEnded, err := p.lastEnded(tx)
	if err != nil {
		return epoch.Ids{}, err
	}
	return epoch.DeriveIds(lastEnded), nil
}

// LastEnded returns the last_epoch_ended singleton.
func (p *StabilityPool) LastEnded(tx *store.Tx) (uint64, error) {
	return p.lastEnded(tx)
}

// LastSettled returns the last_epoch_settled singleton.
func (p *StabilityPool) LastSettled(tx *store.Tx) (uint64, error) {
	return p.lastSettled(tx)
}

// EpochOutcome looks up a closed (or matched-but-not-yet-settled) epoch
// outcome.
func (p *StabilityPool) EpochOutcome(tx *store.Tx, epochID uint64) (epoch.Outcome, bool, error) {
	return getOutcome(tx, epochID)
}

// Account returns the balance record for acc, defaulting to a zero
// balance for an account never seen before.
func (p *StabilityPool) Account(tx *store.Tx, acc pubkey.XOnly) (account.Balance, error) {
	return getBalance(tx, acc)
}

// StagedAction returns the persisted staged action for acc, if any.
func (p *StabilityPool) StagedAction(tx *store.Tx, acc pubkey.XOnly) (action.Staged, bool, error) {
	return getStaged(tx, acc)
}

// AllAccounts returns every account with a balance record, in key
// order, for the /state audit snapshot.
func (p *StabilityPool) AllAccounts(tx *store.Tx) ([]account.Account, error) {
	entries, err := tx.PrefixEntries([]byte{store.PrefixAccountBalance})
	if err != nil {
		return nil, err
	}
	out := make([]account.Account, 0, len(entries))
	for _, kv := range entries {
		acc, err := pubkey.FromBytes(kv[0][1:])
		if err != nil {
			return nil, err
		}
		bal, err := account.Decode(kv[1])
		if err != nil {
			return nil, err
		}
		out = append(out, account.Account{ID: acc, Balance: bal})
	}
	return out, nil
}

// AllStagedActions returns every currently staged action, in key order,
// for the /state audit snapshot.
func (p *StabilityPool) AllStagedActions(tx *store.Tx) ([]action.Staged, error) {
	entries, err := tx.PrefixEntries([]byte{store.PrefixActionStaged})
	if err != nil {
		return nil, err
	}
	out := make([]action.Staged, 0, len(entries))
	for _, kv := range entries {
		staged, err := action.DecodeStaged(kv[1])
		if err != nil {
			return nil, err
		}
		out = append(out, staged)
	}
	return out, nil
}
