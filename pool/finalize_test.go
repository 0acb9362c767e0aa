package pool

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/stabilitypool/action"
	"github.com/luxfi/stabilitypool/epoch"
	"github.com/luxfi/stabilitypool/logging"
	"github.com/luxfi/stabilitypool/msat"
	"github.com/luxfi/stabilitypool/stability"
	"github.com/luxfi/stabilitypool/store"
)

func priceOf(v uint64) *uint64 { return &v }

func TestEpochEndIgnoresStaleAndBansFutureVotes(t *testing.T) {
	p := newTestPool(t)
	tx := p.NewTx()

	outcome, err := p.ProcessEpochEnd(tx, 0, epoch.EndItem{EpochID: 0, Price: priceOf(50000)})
	require.NoError(t, err)
	require.Equal(t, "ignored", outcome.Verdict.String(), "epoch 0 is stale relative to current epoch 1")

	outcome, err = p.ProcessEpochEnd(tx, 0, epoch.EndItem{EpochID: 99, Price: priceOf(50000)})
	require.NoError(t, err)
	require.Equal(t, "banned", outcome.Verdict.String())
}

func TestEpochEndBansNilPrice(t *testing.T) {
	p := newTestPool(t)
	tx := p.NewTx()
	outcome, err := p.ProcessEpochEnd(tx, 0, epoch.EndItem{EpochID: 1})
	require.NoError(t, err)
	require.Equal(t, "banned", outcome.Verdict.String())
}

func TestEpochEndBansDoubleVote(t *testing.T) {
	cfg := testConfig()
	cfg.PriceThreshold = 3
	p := New(store.NewMemory(), cfg, stubOracle{price: 50_000}, logging.NoOp())

	tx := p.NewTx()
	outcome, err := p.ProcessEpochEnd(tx, 1, epoch.EndItem{EpochID: 1, Price: priceOf(50000)})
	require.NoError(t, err)
	require.Equal(t, "applied", outcome.Verdict.String())

	outcome, err = p.ProcessEpochEnd(tx, 1, epoch.EndItem{EpochID: 1, Price: priceOf(51000)})
	require.NoError(t, err)
	require.Equal(t, "banned", outcome.Verdict.String())
}

func TestFinalizeByMedianOfTwoVotes(t *testing.T) {
	p := newTestPool(t)
	tx := p.NewTx()

	outcome, err := p.ProcessEpochEnd(tx, 1, epoch.EndItem{EpochID: 1, Price: priceOf(50000)})
	require.NoError(t, err)
	require.Equal(t, "applied", outcome.Verdict.String())

	ended, err := p.LastEnded(tx)
	require.NoError(t, err)
	require.Equal(t, uint64(0), ended, "threshold of 2 not yet met")

	outcome, err = p.ProcessEpochEnd(tx, 2, epoch.EndItem{EpochID: 1, Price: priceOf(52000)})
	require.NoError(t, err)
	require.Equal(t, "applied", outcome.Verdict.String())

	ended, err = p.LastEnded(tx)
	require.NoError(t, err)
	require.Equal(t, uint64(1), ended)

	settled, err := p.LastSettled(tx)
	require.NoError(t, err)
	require.Equal(t, uint64(1), settled)

	out, ok, err := p.EpochOutcome(tx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, out.SettledPrice)
	require.Equal(t, uint64(50000), *out.SettledPrice)
}

// TestFullRoundPromotesMatchesAndLocks drives two full epoch closes: the
// first promotes a seeker lock and a provider bid proposed during epoch
// 1's staging window (targeting epoch_id 2, per spec §4.3) and matches
// them into epoch 2's outcome; the second settles those positions at
// epoch 2's close and releases them back to unlocked (opening and
// closing prices are equal, so the payout round-trips exactly).
func TestFullRoundPromotesMatchesAndLocks(t *testing.T) {
	p := newTestPool(t)
	seeker := newTestAccount(t)
	provider := newTestAccount(t)

	tx := p.NewTx()
	require.NoError(t, p.ApplyDeposit(tx, seeker.id, 1000, []byte("seeker-in")))
	require.NoError(t, p.ApplyDeposit(tx, provider.id, 2000, []byte("provider-in")))

	lock := seeker.sign(t, 2, 1, action.SeekerLock{Amount: 500})
	require.Equal(t, "applied", p.ProcessActionProposed(tx, 0, lock).Verdict.String())

	bid := provider.sign(t, 2, 1, action.ProviderBid{MaxAmount: 2000, MinFeerate: 100})
	require.Equal(t, "applied", p.ProcessActionProposed(tx, 0, bid).Verdict.String())
	require.NoError(t, tx.Commit())

	// Close epoch 1: the actions staged for epoch_id 2 (the staging
	// epoch at submission time) are promoted into effect for the newly
	// opened epoch 2 and matched, producing epoch 2's outcome. No
	// positions existed going into epoch 1, so settlement for epoch 1
	// itself is a no-op.
	tx = p.NewTx()
	outcome, err := p.ProcessEpochEnd(tx, 1, epoch.EndItem{EpochID: 1, Price: priceOf(50000)})
	require.NoError(t, err)
	require.Equal(t, "applied", outcome.Verdict.String())
	outcome, err = p.ProcessEpochEnd(tx, 2, epoch.EndItem{EpochID: 1, Price: priceOf(50000)})
	require.NoError(t, err)
	require.Equal(t, "applied", outcome.Verdict.String())
	require.NoError(t, tx.Commit())

	tx = p.NewTx()
	seekerBal, err := p.Account(tx, seeker.id)
	require.NoError(t, err)
	require.Equal(t, msat.Amount(500), seekerBal.Unlocked)
	require.Equal(t, msat.Amount(500), seekerBal.Locked.Amount)

	providerBal, err := p.Account(tx, provider.id)
	require.NoError(t, err)
	require.Equal(t, msat.Amount(1500), providerBal.Unlocked)
	require.Equal(t, msat.Amount(500), providerBal.Locked.Amount)

	out, ok, err := p.EpochOutcome(tx, 2)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(100), out.FeeratePPM)
	require.Equal(t, msat.Amount(500), out.SeekerTotal)
	require.Equal(t, msat.Amount(500), out.ProviderTotal)

	staged, err := p.AllStagedActions(tx)
	require.NoError(t, err)
	require.Empty(t, staged, "promoted actions must be removed from the staged set")

	// Close epoch 2 at the same oracle price: settlement pays each side
	// back their exact locked value (fees round to zero at this rate and
	// amount), so the positions simply unlock.
	tx = p.NewTx()
	outcome, err = p.ProcessEpochEnd(tx, 1, epoch.EndItem{EpochID: 2, Price: priceOf(50000)})
	require.NoError(t, err)
	require.Equal(t, "applied", outcome.Verdict.String())
	outcome, err = p.ProcessEpochEnd(tx, 2, epoch.EndItem{EpochID: 2, Price: priceOf(50000)})
	require.NoError(t, err)
	require.Equal(t, "applied", outcome.Verdict.String())
	require.NoError(t, tx.Commit())

	tx = p.NewTx()
	seekerBal, err = p.Account(tx, seeker.id)
	require.NoError(t, err)
	require.Equal(t, msat.Amount(1000), seekerBal.Unlocked)
	require.True(t, seekerBal.Locked.None())

	providerBal, err = p.Account(tx, provider.id)
	require.NoError(t, err)
	require.Equal(t, msat.Amount(2000), providerBal.Unlocked)
	require.True(t, providerBal.Locked.None())
}

func TestMatchAndLockWithNoPositionsRecordsZeroOutcome(t *testing.T) {
	p := newTestPool(t)
	tx := p.NewTx()
	require.NoError(t, p.matchAndLock(tx, 5, nil, nil))
	out, ok, err := getOutcome(tx, 5)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(0), out.FeeratePPM)
}

func TestLockedPositionsSkipsUnlockedAccounts(t *testing.T) {
	p := newTestPool(t)
	acc := newTestAccount(t)
	tx := p.NewTx()
	require.NoError(t, p.ApplyDeposit(tx, acc.id, 100, []byte("out")))

	seekers, providers, err := lockedPositions(tx)
	require.NoError(t, err)
	require.Empty(t, seekers)
	require.Empty(t, providers)
}

func TestApplySettlementClearsLockedAndCreditsUnlocked(t *testing.T) {
	p := newTestPool(t)
	acc := newTestAccount(t)
	tx := p.NewTx()
	require.NoError(t, p.ApplyDeposit(tx, acc.id, 1000, []byte("out")))

	result := stability.SettleResult{
		SeekerPayouts: []stability.Position{{Account: acc.id, Value: 300}},
	}
	require.NoError(t, applySettlement(tx, result))

	bal, err := p.Account(tx, acc.id)
	require.NoError(t, err)
	require.Equal(t, msat.Amount(1300), bal.Unlocked)
	require.True(t, bal.Locked.None())
}
