// Action staging, spec §4.3: ingress validation into the in-memory
// pending pool, consensus-time application into the persisted staged
// action per account, and promotion of staged actions into effective
// positions at epoch finalization.
package pool

import (
	"fmt"

	"github.com/luxfi/stabilitypool/account"
	"github.com/luxfi/stabilitypool/action"
	"github.com/luxfi/stabilitypool/consensus"
	"github.com/luxfi/stabilitypool/epoch"
	"github.com/luxfi/stabilitypool/msat"
	"github.com/luxfi/stabilitypool/pubkey"
	"github.com/luxfi/stabilitypool/store"
)

// ErrBadRequest is the API-facing error taxonomy member for malformed
// or out-of-order action proposals.
type ErrBadRequest struct {
	Reason string
}

func (e ErrBadRequest) Error() string { return "pool: bad request: " + e.Reason }

// getStaged reads the persisted staged action for an account, if any.
func getStaged(tx *store.Tx, acc pubkey.XOnly) (action.Staged, bool, error) {
	data, ok, err := tx.Get(store.ActionStagedKey(acc))
	if err != nil || !ok {
		return action.Staged{}, false, err
	}
	staged, err := action.DecodeStaged(data)
	if err != nil {
		return action.Staged{}, false, err
	}
	return staged, true, nil
}

// ProposeAction is the API ingress handler: it verifies the signature,
// checks the action targets the current staging epoch, and rejects
// anything not strictly newer than the most recently known action for
// that account — checking the in-memory pending pool first, then the
// persisted staged entry — before admitting it to the pending pool.
func (p *StabilityPool) ProposeAction(tx *store.Tx, lastEnded uint64, proposed action.Proposed) error {
	if err := proposed.VerifySignature(); err != nil {
		return ErrBadRequest{Reason: "bad signature"}
	}

	ids := epoch.DeriveIds(lastEnded)
	if proposed.Action.EpochID != ids.Staging {
		return ErrBadRequest{Reason: fmt.Sprintf("epoch_id must be %d (the staging epoch)", ids.Staging)}
	}

	acc := proposed.Action.AccountID

	p.pendingMu.Lock()
	pending, havePending := p.pending[acc]
	p.pendingMu.Unlock()
	if havePending && pending.Action.EpochID == proposed.Action.EpochID && proposed.Action.Sequence <= pending.Action.Sequence {
		return ErrBadRequest{Reason: "sequence not newer than pending proposal"}
	}

	staged, haveStaged, err := getStaged(tx, acc)
	if err != nil {
		return err
	}
	if haveStaged && staged.EpochID == proposed.Action.EpochID && proposed.Action.Sequence <= staged.Sequence {
		return ErrBadRequest{Reason: "sequence not newer than staged action"}
	}

	p.pendingMu.Lock()
	p.pending[acc] = proposed
	p.pendingMu.Unlock()
	return nil
}

// ContributeActions returns every entry of the pending pool for inclusion
// as ActionProposed consensus items. Entries remain in the pool (and will
// be re-contributed) until ProcessActionProposed observes them back
// through consensus and clears them.
func (p *StabilityPool) ContributeActions() []action.Proposed {
	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()
	items := make([]action.Proposed, 0, len(p.pending))
	for _, v := range p.pending {
		items = append(items, v)
	}
	return items
}

// ProcessActionProposed applies one ActionProposed consensus item per
// the condition table in spec §4.3.
func (p *StabilityPool) ProcessActionProposed(tx *store.Tx, lastEnded uint64, item action.Proposed) consensus.Outcome {
	if err := item.VerifySignature(); err != nil {
		p.metrics.actionsBanned.Inc()
		return consensus.BannedOutcome("bad signature")
	}

	ids := epoch.DeriveIds(lastEnded)
	if item.Action.EpochID != ids.Staging {
		p.metrics.actionsIgnored.Inc()
		return consensus.IgnoredOutcome("wrong epoch")
	}

	acc := item.Action.AccountID
	staged, ok, err := getStaged(tx, acc)
	if err != nil {
		p.metrics.actionsIgnored.Inc()
		return consensus.IgnoredOutcome(fmt.Sprintf("store error: %v", err))
	}
	if ok && staged.EpochID == item.Action.EpochID && item.Action.Sequence <= staged.Sequence {
		p.metrics.actionsIgnored.Inc()
		return consensus.IgnoredOutcome("superseded")
	}

	tx.Put(store.ActionStagedKey(acc), action.FromProposed(item).Encode())

	p.pendingMu.Lock()
	if pending, ok := p.pending[acc]; ok && pending.Action.EpochID == item.Action.EpochID && pending.Action.Sequence <= item.Action.Sequence {
		delete(p.pending, acc)
	}
	p.pendingMu.Unlock()

	p.metrics.actionsApplied.Inc()
	return consensus.AppliedOutcome()
}

// promote consumes every staged action whose epoch_id equals the newly
// opened epoch (closingEpoch+1), folding SeekerLock/Unlock into account
// balances and collecting ProviderBid entries for matching. The promoted
// seeker positions and provider bids are returned for the caller to run
// through stability.Match.
type promotedSeeker struct {
	Account pubkey.XOnly
	Amount  msat.Amount
}

type promotedProvider struct {
	Account    pubkey.XOnly
	MaxAmount  msat.Amount
	MinFeerate uint64
}

func (p *StabilityPool) promote(tx *store.Tx, newEpoch uint64) ([]promotedSeeker, []promotedProvider, error) {
	// Per spec §4.3's Promotion step, the actions promoted into effect
	// for newEpoch are exactly those staged with epoch_id == newEpoch:
	// they were submitted while newEpoch was still the staging target,
	// one finalization round ago, and become effective the moment the
	// epoch before newEpoch closes and newEpoch opens.
	targetEpoch := newEpoch
	entries, err := tx.PrefixEntries([]byte{store.PrefixActionStaged})
	if err != nil {
		return nil, nil, err
	}

	var seekers []promotedSeeker
	var providers []promotedProvider
	for _, kv := range entries {
		staged, err := action.DecodeStaged(kv[1])
		if err != nil {
			return nil, nil, err
		}
		if staged.EpochID != targetEpoch {
			continue
		}

		bal, err := getBalance(tx, staged.AccountID)
		if err != nil {
			return nil, nil, err
		}

		switch body := staged.Body.(type) {
		case action.SeekerLock:
			existing := msat.Amount(0)
			if bal.Locked.Side == account.SideSeeker {
				existing = bal.Locked.Amount
			}
			newAmount := msat.MustAdd(existing, body.Amount)
			bal.Unlocked = msat.MustSub(bal.Unlocked, body.Amount)
			bal.Locked = account.Locked{Side: account.SideSeeker, Amount: newAmount}
			putBalance(tx, staged.AccountID, bal)
			seekers = append(seekers, promotedSeeker{Account: staged.AccountID, Amount: newAmount})
		case action.SeekerUnlock:
			existing := msat.Amount(0)
			if bal.Locked.Side == account.SideSeeker {
				existing = bal.Locked.Amount
			}
			remaining := msat.MustSub(existing, body.Amount)
			bal.Unlocked = msat.MustAdd(bal.Unlocked, body.Amount)
			if remaining == 0 {
				bal.Locked = account.Locked{}
			} else {
				bal.Locked = account.Locked{Side: account.SideSeeker, Amount: remaining}
				seekers = append(seekers, promotedSeeker{Account: staged.AccountID, Amount: remaining})
			}
			putBalance(tx, staged.AccountID, bal)
		case action.ProviderBid:
			providers = append(providers, promotedProvider{Account: staged.AccountID, MaxAmount: body.MaxAmount, MinFeerate: body.MinFeerate})
		}

		tx.Delete(store.ActionStagedKey(staged.AccountID))
	}
	return seekers, providers, nil
}
