package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"mintvault/crypto"
	"mintvault/native/codes"
	"mintvault/native/phase"
	"mintvault/native/sale"
	"mintvault/native/tiers"
	"mintvault/native/treasury"
	"mintvault/storage"
)

func newManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(storage.NewMemDB())
}

func addr(fill byte) [20]byte {
	var out [20]byte
	for i := range out {
		out[i] = fill
	}
	return out
}

func TestTransfer(t *testing.T) {
	m := newManager(t)
	alice := addr(0x01)
	bob := addr(0x02)
	require.NoError(t, m.Credit(alice, big.NewInt(500)))

	require.NoError(t, m.Transfer(alice, bob, big.NewInt(200)))

	balance, err := m.BalanceOf(alice)
	require.NoError(t, err)
	require.Equal(t, int64(300), balance.Int64())
	balance, err = m.BalanceOf(bob)
	require.NoError(t, err)
	require.Equal(t, int64(200), balance.Int64())

	err = m.Transfer(alice, bob, big.NewInt(301))
	require.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestAuthorizedTransfer(t *testing.T) {
	m := newManager(t)
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	from := [20]byte(key.PubKey().Address())
	to := addr(0x02)
	require.NoError(t, m.Credit(from, big.NewInt(1000)))

	now := int64(1_700_000_000)
	auth := &sale.TransferAuthorization{
		From:        from,
		To:          to,
		Value:       big.NewInt(400),
		ValidAfter:  now - 10,
		ValidBefore: now + 600,
		Nonce:       [32]byte{0xAB},
	}
	digest := auth.Digest()
	auth.Signature, err = key.Sign(digest[:])
	require.NoError(t, err)

	require.NoError(t, m.AuthorizedTransfer(auth, now))
	balance, err := m.BalanceOf(to)
	require.NoError(t, err)
	require.Equal(t, int64(400), balance.Int64())

	err = m.AuthorizedTransfer(auth, now)
	require.ErrorIs(t, err, ErrAuthorizationReplayed)

	auth.Nonce = [32]byte{0xCD}
	digest = auth.Digest()
	auth.Signature, err = key.Sign(digest[:])
	require.NoError(t, err)
	err = m.AuthorizedTransfer(auth, auth.ValidBefore+1)
	require.ErrorIs(t, err, ErrAuthorizationWindow)

	// A signature from a different key must not spend the from account.
	otherKey, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	digest = auth.Digest()
	auth.Signature, err = otherKey.Sign(digest[:])
	require.NoError(t, err)
	err = m.AuthorizedTransfer(auth, now)
	require.ErrorIs(t, err, ErrAuthorizationSignature)
}

func TestMintInventoryEnforcesCap(t *testing.T) {
	m := newManager(t)
	owner := addr(0x03)
	require.NoError(t, m.SetTierInfo(tiers.ClassMythic, tiers.Info{Cap: 3, RewardWeight: 6}))

	require.NoError(t, m.MintInventory(owner, tiers.ClassMythic, 2))
	err := m.MintInventory(owner, tiers.ClassMythic, 2)
	require.ErrorIs(t, err, ErrTierCapExceeded)

	info, err := m.TierInfo(tiers.ClassMythic)
	require.NoError(t, err)
	require.Equal(t, uint64(2), info.Minted)
	require.Equal(t, uint64(1), info.Remaining())

	held, err := m.Holdings(owner)
	require.NoError(t, err)
	require.Equal(t, uint64(2), held[tiers.ClassMythic])
}

func TestPhaseRoundTrip(t *testing.T) {
	m := newManager(t)
	id, err := m.PhaseNextID()
	require.NoError(t, err)
	require.Equal(t, uint64(1), id)

	stored := &phase.Phase{ID: id, CreatedAt: 42}
	for i := range stored.Prices {
		stored.Prices[i] = big.NewInt(int64(70 + i))
		stored.Caps[i] = 100
	}
	require.NoError(t, m.PhasePut(stored))

	current, ok, err := m.PhaseCurrent()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(1), current.ID)
	require.Equal(t, int64(70), current.Prices[0].Int64())

	byID, ok, err := m.PhaseByID(1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, current.Caps, byID.Caps)
}

func TestCodeRoundTrip(t *testing.T) {
	m := newManager(t)
	record := &codes.Record{
		Kind: codes.KindAmbassador,
		Ambassador: &codes.AmbassadorCode{
			Code:                   "REF",
			Owner:                  addr(0x04),
			DiscountRate:           10,
			TotalEarned:            big.NewInt(150),
			TotalRaisedForTreasury: big.NewInt(800),
		},
	}
	require.NoError(t, m.CodePut(record))

	loaded, ok, err := m.CodeGet("REF")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, codes.KindAmbassador, loaded.Kind)
	require.Equal(t, int64(800), loaded.Ambassador.TotalRaisedForTreasury.Int64())

	_, ok, err = m.CodeGet("MISSING")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestWithdrawalRoundTrip(t *testing.T) {
	m := newManager(t)
	id, err := m.WithdrawalNextID()
	require.NoError(t, err)

	request := &treasury.WithdrawalRequest{
		ID:          id,
		Amount:      big.NewInt(900),
		Recipient:   addr(0x05),
		RequestedAt: 42,
		Approvals:   [][20]byte{addr(0x01)},
	}
	require.NoError(t, m.WithdrawalPut(request))

	loaded, ok, err := m.WithdrawalGet(id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, loaded.Approvals, 1)

	request.Executed = true
	request.Blocked = true
	require.Error(t, m.WithdrawalPut(request))
}

func TestRolesAndPauses(t *testing.T) {
	m := newManager(t)
	admin := addr(0x06)
	require.False(t, m.HasRole(RoleSaleAdmin, admin[:]))
	require.NoError(t, m.GrantRole(RoleSaleAdmin, admin))
	require.True(t, m.HasRole(RoleSaleAdmin, admin[:]))

	require.False(t, m.IsPaused("sale"))
	require.NoError(t, m.SetPaused("sale", true))
	require.True(t, m.IsPaused("sale"))
	require.NoError(t, m.SetPaused("sale", false))
	require.False(t, m.IsPaused("sale"))
}
