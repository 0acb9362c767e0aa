package pool

import (
	"context"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/stabilitypool/action"
	"github.com/luxfi/stabilitypool/config"
	"github.com/luxfi/stabilitypool/logging"
	"github.com/luxfi/stabilitypool/pubkey"
	"github.com/luxfi/stabilitypool/stability"
	"github.com/luxfi/stabilitypool/store"
)

// stubOracle is a fixed-price oracle.Client used in tests so finalization
// never makes a network call.
type stubOracle struct {
	price uint64
	err   error
}

func (s stubOracle) PriceNow(ctx context.Context) (uint64, error) {
	if s.err != nil {
		return 0, s.err
	}
	return s.price, nil
}

func testConfig() config.Config {
	return config.Config{
		StartEpochAt:    0,
		EpochLength:     60,
		PriceThreshold:  2,
		MaxFeeratePPM:   1_000_000,
		CollateralRatio: stability.DefaultCollateralRatio,
		Oracle:          config.OracleConfig{Kind: config.OracleMock, URL: "http://unused"},
	}
}

func newTestPool(t *testing.T) *StabilityPool {
	t.Helper()
	return New(store.NewMemory(), testConfig(), stubOracle{price: 50_000}, logging.NoOp())
}

type testAccount struct {
	priv *btcec.PrivateKey
	id   pubkey.XOnly
}

func newTestAccount(t *testing.T) testAccount {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	var id pubkey.XOnly
	copy(id[:], schnorr.SerializePubKey(priv.PubKey()))
	return testAccount{priv: priv, id: id}
}

func (a testAccount) sign(t *testing.T, epochID, seq uint64, body action.Body) action.Proposed {
	t.Helper()
	act := action.Action{EpochID: epochID, Sequence: seq, AccountID: a.id, Body: body}
	hash := act.SigningHash()
	rawSig, err := schnorr.Sign(a.priv, hash[:])
	require.NoError(t, err)
	sig, err := pubkey.SignatureFromBytes(rawSig.Serialize())
	require.NoError(t, err)
	return action.Proposed{Signature: sig, Action: act}
}
