// Epoch finalization, spec §4.2: price-threshold vote processing,
// median settlement, and the promotion/matching step that fixes the
// next epoch's feerate.
//
// Design decision (recorded in DESIGN.md): the spec's data model says
// an epoch outcome is "created at epoch close", but matching needs
// seeker/provider positions that only exist once staged actions are
// promoted, and promotion happens inside the very finalization that
// closes the prior epoch. This implementation resolves the ordering by
// creating an epoch's outcome (feerate, seeker_total, provider_total)
// the moment its positions are matched at promotion time, with
// settled_price left nil; the finalization that later closes that
// epoch fills in settled_price and runs the payout using the feerate
// fixed back at promotion. Epoch 1 has no promotion behind it, so its
// outcome defaults to zero positions — consistent with the spec's "no
// prior epoch existed" case.
package pool

import (
	"bytes"
	"context"
	"time"

	"github.com/luxfi/stabilitypool/account"
	"github.com/luxfi/stabilitypool/consensus"
	"github.com/luxfi/stabilitypool/epoch"
	"github.com/luxfi/stabilitypool/msat"
	"github.com/luxfi/stabilitypool/pubkey"
	"github.com/luxfi/stabilitypool/stability"
	"github.com/luxfi/stabilitypool/store"
	"github.com/luxfi/stabilitypool/wire"
)

// lastEnded/lastSettled singleton accessors.

func getU64(tx *store.Tx, key []byte) (uint64, error) {
	data, ok, err := tx.Get(key)
	if err != nil || !ok {
		return 0, err
	}
	return wire.NewReader(data).U64()
}

func putU64(tx *store.Tx, key []byte, v uint64) {
	tx.Put(key, wire.NewWriter().U64(v).Bytes())
}

func (p *StabilityPool) lastEnded(tx *store.Tx) (uint64, error) {
	return getU64(tx, store.LastEpochEndedKey())
}

func (p *StabilityPool) lastSettled(tx *store.Tx) (uint64, error) {
	return getU64(tx, store.LastEpochSettledKey())
}

func getOutcome(tx *store.Tx, epochID uint64) (epoch.Outcome, bool, error) {
	data, ok, err := tx.Get(store.EpochOutcomeKey(epochID))
	if err != nil || !ok {
		return epoch.Outcome{}, false, err
	}
	o, err := epoch.DecodeOutcome(data)
	return o, true, err
}

func putOutcome(tx *store.Tx, epochID uint64, o epoch.Outcome) {
	tx.Put(store.EpochOutcomeKey(epochID), o.Encode())
}

// CanProposeEpochEnd reports whether wall-clock now has crossed the
// current epoch's boundary, per spec §4.2. The backoff guard against
// re-proposing within a single failed round lives in oracle.Poller.
func (p *StabilityPool) CanProposeEpochEnd(tx *store.Tx, now time.Time) (bool, error) {
	lastEnded, err := p.lastEnded(tx)
	if err != nil {
		return false, err
	}
	ids := epoch.DeriveIds(lastEnded)
	boundary := time.Unix(p.cfg.StartEpochAt, 0).Add(time.Duration(ids.Current) * time.Duration(p.cfg.EpochLength) * time.Second)
	return !now.Before(boundary), nil
}

// BuildEpochEndProposal queries the oracle (through the backoff-guarded
// poller) for the current epoch's closing price. ok is false whenever
// no EpochEnd should be emitted this round, per spec §4.2/§5.
func (p *StabilityPool) BuildEpochEndProposal(ctx context.Context, tx *store.Tx, now time.Time) (item epoch.EndItem, ok bool, err error) {
	lastEnded, err := p.lastEnded(tx)
	if err != nil {
		return epoch.EndItem{}, false, err
	}
	ids := epoch.DeriveIds(lastEnded)
	price, got := p.poller.TryPrice(ctx, now)
	if !got {
		return epoch.EndItem{}, false, nil
	}
	return epoch.EndItem{EpochID: ids.Current, Price: &price}, true, nil
}

// ProcessEpochEnd applies one peer's EpochEnd vote per the condition
// table in spec §4.2, attempting finalization once a vote is recorded.
func (p *StabilityPool) ProcessEpochEnd(tx *store.Tx, peerID uint64, item epoch.EndItem) (consensus.Outcome, error) {
	lastEnded, err := p.lastEnded(tx)
	if err != nil {
		return consensus.Outcome{}, err
	}
	ids := epoch.DeriveIds(lastEnded)

	if item.Price == nil {
		return consensus.BannedOutcome("epoch end item carries no price"), nil
	}
	if item.EpochID < ids.Current {
		return consensus.IgnoredOutcome("stale"), nil
	}
	if item.EpochID > ids.Current {
		return consensus.BannedOutcome("vote from the future"), nil
	}

	voteKey := store.EpochEndVoteKey(peerID)
	existingData, haveExisting, err := tx.Get(voteKey)
	if err != nil {
		return consensus.Outcome{}, err
	}
	if haveExisting {
		existing, err := epoch.DecodeEndVote(existingData)
		if err != nil {
			return consensus.Outcome{}, err
		}
		if existing.EpochID == ids.Current {
			return consensus.BannedOutcome("double vote"), nil
		}
	}

	tx.Put(voteKey, epoch.EndVote{EpochID: item.EpochID, Price: *item.Price}.Encode())
	p.metrics.epochEndVotes.Inc()

	if err := p.tryFinalize(tx, ids.Current); err != nil {
		return consensus.Outcome{}, err
	}
	return consensus.AppliedOutcome(), nil
}

// tryFinalize counts recorded votes for epochID and, once the
// price-threshold is met, closes the epoch.
func (p *StabilityPool) tryFinalize(tx *store.Tx, epochID uint64) error {
	voteEntries, err := tx.PrefixEntries([]byte{store.PrefixEpochEndVote})
	if err != nil {
		return err
	}

	var prices []uint64
	for _, kv := range voteEntries {
		v, err := epoch.DecodeEndVote(kv[1])
		if err != nil {
			return err
		}
		if v.EpochID == epochID {
			prices = append(prices, v.Price)
		}
	}
	if len(prices) < p.cfg.PriceThreshold {
		return nil
	}

	settledPrice := epoch.MedianPrice(prices)
	return p.closeEpoch(tx, epochID, settledPrice)
}

// closeEpoch runs settlement for epochID, promotes the next epoch's
// staged actions, and advances last_ended/last_settled.
func (p *StabilityPool) closeEpoch(tx *store.Tx, epochID uint64, closingPrice uint64) error {
	openingPrice := closingPrice
	if epochID > 1 {
		prevOutcome, ok, err := getOutcome(tx, epochID-1)
		if err != nil {
			return err
		}
		if ok && prevOutcome.SettledPrice != nil {
			openingPrice = *prevOutcome.SettledPrice
		}
	}

	outcome, _, err := getOutcome(tx, epochID)
	if err != nil {
		return err
	}

	seekers, providers, err := lockedPositions(tx)
	if err != nil {
		return err
	}

	if len(seekers) > 0 || len(providers) > 0 {
		result, err := stability.Settle(seekers, providers, stability.Feerate(outcome.FeeratePPM), openingPrice, closingPrice, p.cfg.CollateralRatio)
		if err != nil {
			return err
		}
		if err := applySettlement(tx, result); err != nil {
			return err
		}
		for _, out := range result.SeekerPayouts {
			p.metrics.settledSeekers.Add(float64(out.Value))
		}
		for _, out := range result.ProviderPayouts {
			p.metrics.settledProviders.Add(float64(out.Value))
		}
	}

	outcome.SettledPrice = &closingPrice
	putOutcome(tx, epochID, outcome)

	seekersIn, providersIn, err := p.promote(tx, epochID+1)
	if err != nil {
		return err
	}
	if err := p.matchAndLock(tx, epochID+1, seekersIn, providersIn); err != nil {
		return err
	}

	putU64(tx, store.LastEpochEndedKey(), epochID)
	putU64(tx, store.LastEpochSettledKey(), epochID)
	clearVotes(tx, voteEntriesForEpoch(tx, epochID))

	p.metrics.epochsSettled.Inc()
	p.metrics.currentEpoch.Set(float64(epochID + 1))
	return nil
}

// lockedPositions scans every account balance for an open seeker or
// provider position, for settlement's redistribution basis.
func lockedPositions(tx *store.Tx) ([]stability.Position, []stability.Position, error) {
	entries, err := tx.PrefixEntries([]byte{store.PrefixAccountBalance})
	if err != nil {
		return nil, nil, err
	}
	var seekers, providers []stability.Position
	for _, kv := range entries {
		acc, err := pubkey.FromBytes(kv[0][1:])
		if err != nil {
			return nil, nil, err
		}
		bal, err := account.Decode(kv[1])
		if err != nil {
			return nil, nil, err
		}
		switch bal.Locked.Side {
		case account.SideSeeker:
			seekers = append(seekers, stability.Position{Account: acc, Value: bal.Locked.Amount})
		case account.SideProvider:
			providers = append(providers, stability.Position{Account: acc, Value: bal.Locked.Amount})
		}
	}
	return seekers, providers, nil
}

// applySettlement moves each participant's payout from locked into
// unlocked and clears locked, per spec §4.4 "Applying settlement".
func applySettlement(tx *store.Tx, result stability.SettleResult) error {
	for _, out := range append(append([]stability.Position{}, result.SeekerPayouts...), result.ProviderPayouts...) {
		bal, err := getBalance(tx, out.Account)
		if err != nil {
			return err
		}
		bal.Unlocked = msat.MustAdd(bal.Unlocked, out.Value)
		bal.Locked = account.Locked{}
		putBalance(tx, out.Account, bal)
	}
	return nil
}

// matchAndLock runs stability.Match over the positions promoted for
// newEpoch, locks the accepted provider collateral, scales down any
// oversubscribed seeker locks, and records the resulting outcome with
// settled_price left nil.
func (p *StabilityPool) matchAndLock(tx *store.Tx, newEpoch uint64, seekers []promotedSeeker, providers []promotedProvider) error {
	if len(seekers) == 0 && len(providers) == 0 {
		putOutcome(tx, newEpoch, epoch.Outcome{})
		return nil
	}

	seekerInputs := make([]stability.SeekerInput, len(seekers))
	for i, s := range seekers {
		seekerInputs[i] = stability.SeekerInput{Account: s.Account, Amount: s.Amount}
	}
	bidInputs := make([]stability.ProviderBidInput, len(providers))
	for i, b := range providers {
		bidInputs[i] = stability.ProviderBidInput{Account: b.Account, MaxAmount: b.MaxAmount, MinFeerate: b.MinFeerate}
	}

	result, err := stability.Match(seekerInputs, bidInputs, p.cfg.MaxFeeratePPM, p.cfg.CollateralRatio)
	if err != nil {
		return err
	}

	for _, s := range result.Seekers {
		if s.Accepted == s.Requested {
			continue
		}
		refund := msat.MustSub(s.Requested, s.Accepted)
		bal, err := getBalance(tx, s.Account)
		if err != nil {
			return err
		}
		bal.Unlocked = msat.MustAdd(bal.Unlocked, refund)
		bal.Locked = account.Locked{Side: account.SideSeeker, Amount: s.Accepted}
		putBalance(tx, s.Account, bal)
	}

	for _, pr := range result.Providers {
		if pr.Accepted == 0 {
			continue
		}
		bal, err := getBalance(tx, pr.Account)
		if err != nil {
			return err
		}
		bal.Unlocked = msat.MustSub(bal.Unlocked, pr.Accepted)
		bal.Locked = account.Locked{Side: account.SideProvider, Amount: pr.Accepted}
		putBalance(tx, pr.Account, bal)
	}

	putOutcome(tx, newEpoch, epoch.Outcome{
		FeeratePPM:    result.ClearingFeerate,
		SeekerTotal:   result.SeekerTotal,
		ProviderTotal: result.ProviderTotal,
	})
	return nil
}

func voteEntriesForEpoch(tx *store.Tx, epochID uint64) [][2][]byte {
	entries, err := tx.PrefixEntries([]byte{store.PrefixEpochEndVote})
	if err != nil {
		return nil
	}
	var matching [][2][]byte
	for _, kv := range entries {
		v, err := epoch.DecodeEndVote(kv[1])
		if err == nil && v.EpochID == epochID {
			matching = append(matching, kv)
		}
	}
	return matching
}

func clearVotes(tx *store.Tx, entries [][2][]byte) {
	for _, kv := range entries {
		tx.Delete(bytes.Clone(kv[0]))
	}
}
