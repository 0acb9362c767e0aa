package pool

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/stabilitypool/action"
)

func TestProposeActionRejectsBadSignature(t *testing.T) {
	p := newTestPool(t)
	acc := newTestAccount(t)

	proposed := acc.sign(t, 2, 1, action.SeekerLock{Amount: 100})
	proposed.Action.Body = action.SeekerLock{Amount: 999}

	tx := p.NewTx()
	err := p.ProposeAction(tx, 0, proposed)
	require.Error(t, err)
	var bad ErrBadRequest
	require.ErrorAs(t, err, &bad)
}

func TestProposeActionRejectsWrongEpoch(t *testing.T) {
	p := newTestPool(t)
	acc := newTestAccount(t)

	proposed := acc.sign(t, 1, 1, action.SeekerLock{Amount: 100})
	tx := p.NewTx()
	err := p.ProposeAction(tx, 0, proposed)
	require.Error(t, err)
	var bad ErrBadRequest
	require.ErrorAs(t, err, &bad)
}

func TestProposeActionRejectsNonIncreasingSequence(t *testing.T) {
	p := newTestPool(t)
	acc := newTestAccount(t)

	tx := p.NewTx()
	require.NoError(t, p.ProposeAction(tx, 0, acc.sign(t, 2, 5, action.SeekerLock{Amount: 100})))
	err := p.ProposeAction(tx, 0, acc.sign(t, 2, 5, action.SeekerLock{Amount: 200}))
	require.Error(t, err)
	err = p.ProposeAction(tx, 0, acc.sign(t, 2, 4, action.SeekerLock{Amount: 200}))
	require.Error(t, err)

	require.NoError(t, p.ProposeAction(tx, 0, acc.sign(t, 2, 6, action.SeekerLock{Amount: 300})))
}

func TestContributeActionsReturnsPendingAndProcessClearsThem(t *testing.T) {
	p := newTestPool(t)
	acc := newTestAccount(t)

	tx := p.NewTx()
	proposed := acc.sign(t, 2, 1, action.SeekerLock{Amount: 100})
	require.NoError(t, p.ProposeAction(tx, 0, proposed))

	contributed := p.ContributeActions()
	require.Len(t, contributed, 1)

	outcome := p.ProcessActionProposed(tx, 0, proposed)
	require.Equal(t, "applied", outcome.Verdict.String())
	require.Empty(t, p.ContributeActions())

	staged, ok, err := p.StagedAction(tx, acc.id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(1), staged.Sequence)
}

func TestProcessActionProposedBansBadSignature(t *testing.T) {
	p := newTestPool(t)
	acc := newTestAccount(t)

	proposed := acc.sign(t, 2, 1, action.SeekerLock{Amount: 100})
	proposed.Action.Body = action.SeekerLock{Amount: 999}

	tx := p.NewTx()
	outcome := p.ProcessActionProposed(tx, 0, proposed)
	require.Equal(t, "banned", outcome.Verdict.String())
}

func TestProcessActionProposedIgnoresWrongEpoch(t *testing.T) {
	p := newTestPool(t)
	acc := newTestAccount(t)

	proposed := acc.sign(t, 99, 1, action.SeekerLock{Amount: 100})
	tx := p.NewTx()
	outcome := p.ProcessActionProposed(tx, 0, proposed)
	require.Equal(t, "ignored", outcome.Verdict.String())
}

func TestProcessActionProposedIgnoresSupersededSequence(t *testing.T) {
	p := newTestPool(t)
	acc := newTestAccount(t)

	tx := p.NewTx()
	first := acc.sign(t, 2, 5, action.SeekerLock{Amount: 100})
	require.Equal(t, "applied", p.ProcessActionProposed(tx, 0, first).Verdict.String())

	stale := acc.sign(t, 2, 3, action.SeekerLock{Amount: 200})
	outcome := p.ProcessActionProposed(tx, 0, stale)
	require.Equal(t, "ignored", outcome.Verdict.String())
}
