package action

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/stabilitypool/msat"
	"github.com/luxfi/stabilitypool/pubkey"
)

func newSignedAction(t *testing.T, epochID, seq uint64, body Body) Proposed {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	var accountID pubkey.XOnly
	copy(accountID[:], schnorr.SerializePubKey(priv.PubKey()))

	a := Action{EpochID: epochID, Sequence: seq, AccountID: accountID, Body: body}
	hash := a.SigningHash()

	rawSig, err := schnorr.Sign(priv, hash[:])
	require.NoError(t, err)
	sig, err := pubkey.SignatureFromBytes(rawSig.Serialize())
	require.NoError(t, err)

	return Proposed{Signature: sig, Action: a}
}

func TestActionRoundTrip(t *testing.T) {
	bodies := []Body{
		SeekerLock{Amount: 500},
		SeekerUnlock{Amount: 250},
		ProviderBid{MaxAmount: 1000, MinFeerate: 120},
	}
	for _, body := range bodies {
		p := newSignedAction(t, 7, 3, body)
		decoded, err := DecodeAction(p.Action.CanonicalEncoding())
		require.NoError(t, err)
		require.Equal(t, p.Action, decoded)
	}
}

func TestVerifySignatureSucceedsAndFailsOnTamper(t *testing.T) {
	p := newSignedAction(t, 1, 1, SeekerLock{Amount: 1})
	require.NoError(t, p.VerifySignature())

	tampered := p
	tampered.Action.Body = SeekerLock{Amount: 2}
	require.ErrorIs(t, tampered.VerifySignature(), ErrBadSignature)
}

func TestStagedRoundTrip(t *testing.T) {
	p := newSignedAction(t, 4, 9, ProviderBid{MaxAmount: 800, MinFeerate: 50})
	staged := FromProposed(p)
	decoded, err := DecodeStaged(staged.Encode())
	require.NoError(t, err)
	require.Equal(t, staged, decoded)
}

func TestTagString(t *testing.T) {
	require.Equal(t, "seeker_lock", TagSeekerLock.String())
	require.Equal(t, "seeker_unlock", TagSeekerUnlock.String())
	require.Equal(t, "provider_bid", TagProviderBid.String())
}

func TestCanonicalEncodingDeterministic(t *testing.T) {
	var acc pubkey.XOnly
	acc[0] = 1
	a := Action{EpochID: 2, Sequence: 3, AccountID: acc, Body: SeekerLock{Amount: msat.Amount(9)}}
	require.Equal(t, a.CanonicalEncoding(), a.CanonicalEncoding())
}
