package account

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/stabilitypool/msat"
	"github.com/luxfi/stabilitypool/pubkey"
)

func TestBalanceRoundTrip(t *testing.T) {
	cases := []Balance{
		Zero,
		{Unlocked: 500},
		{Unlocked: 100, Locked: Locked{Side: SideSeeker, Amount: 250}},
		{Unlocked: 0, Locked: Locked{Side: SideProvider, Amount: 9000}},
	}
	for _, bal := range cases {
		decoded, err := Decode(bal.Encode())
		require.NoError(t, err)
		require.Equal(t, bal, decoded)
	}
}

func TestCanAddUnlockedRejectsOverflow(t *testing.T) {
	bal := Balance{Unlocked: ^msat.Amount(0) - 5}
	require.False(t, bal.CanAddUnlocked(10))
	require.True(t, bal.CanAddUnlocked(5))
}

func TestLockedNone(t *testing.T) {
	require.True(t, Locked{}.None())
	require.False(t, Locked{Side: SideSeeker, Amount: 1}.None())
}

func TestDecodeRejectsTrailingBytes(t *testing.T) {
	encoded := Balance{Unlocked: 1}.Encode()
	_, err := Decode(append(encoded, 0xff))
	require.Error(t, err)
}

func TestAccountPairsIDAndBalance(t *testing.T) {
	var id pubkey.XOnly
	id[0] = 0x42
	a := Account{ID: id, Balance: Balance{Unlocked: 10}}
	require.Equal(t, id, a.ID)
	require.Equal(t, msat.Amount(10), a.Balance.Unlocked)
}
