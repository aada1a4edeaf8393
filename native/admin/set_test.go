package admin

import (
	"testing"

	"github.com/stretchr/testify/require"

	coreerrors "lendcore/core/errors"
	"lendcore/core/events"
	"lendcore/crypto"
)

type memoryState struct {
	admins []crypto.Address
	set    bool
}

func (m *memoryState) LendingAdmins() ([]crypto.Address, bool, error) {
	if !m.set {
		return nil, false, nil
	}
	return append([]crypto.Address(nil), m.admins...), true, nil
}

func (m *memoryState) PutLendingAdmins(admins []crypto.Address) error {
	m.admins = append([]crypto.Address(nil), admins...)
	m.set = true
	return nil
}

func addr(b byte) crypto.Address {
	raw := make([]byte, 20)
	raw[0] = b
	return crypto.NewAddress(crypto.AccountPrefix, raw)
}

func TestUninitialisedSet(t *testing.T) {
	r := require.New(t)
	set := NewSet(&memoryState{})
	r.ErrorIs(set.RequireAdmin(addr(1)), coreerrors.ErrAdminNotSet)
	ok, err := set.IsAdmin(addr(1))
	r.NoError(err)
	r.False(ok)
}

func TestInitializeOnce(t *testing.T) {
	r := require.New(t)
	recorder := events.NewRecorder(0)
	set := NewSet(&memoryState{})
	set.SetEmitter(recorder)
	r.NoError(set.Initialize(addr(1)))
	r.ErrorIs(set.Initialize(addr(2)), coreerrors.ErrAlreadyInitialized)
	r.ErrorIs(NewSet(&memoryState{}).Initialize(crypto.Address{}), coreerrors.ErrInvalidAddress)
	r.Equal([]string{events.TypeAdminInitialized}, recorder.Types())
}

func TestAddAndRemove(t *testing.T) {
	r := require.New(t)
	set := NewSet(&memoryState{})
	r.NoError(set.Initialize(addr(1)))

	r.ErrorIs(set.AddAdmin(addr(9), addr(2)), coreerrors.ErrUnauthorized)
	r.NoError(set.AddAdmin(addr(1), addr(2)))
	r.ErrorIs(set.AddAdmin(addr(1), addr(2)), coreerrors.ErrAlreadyExists)

	admins, err := set.Admins()
	r.NoError(err)
	r.Len(admins, 2)

	r.ErrorIs(set.RemoveAdmin(addr(1), addr(3)), coreerrors.ErrNotFound)
	r.NoError(set.RemoveAdmin(addr(2), addr(1)))
	r.ErrorIs(set.RemoveAdmin(addr(2), addr(2)), coreerrors.ErrInvalidOperation)

	admins, err = set.Admins()
	r.NoError(err)
	r.Len(admins, 1)
	r.True(admins[0].Equal(addr(2)))
}

func TestTransferReplacesInPlace(t *testing.T) {
	r := require.New(t)
	set := NewSet(&memoryState{})
	r.NoError(set.Initialize(addr(1)))
	r.NoError(set.AddAdmin(addr(1), addr(2)))

	r.ErrorIs(set.TransferAdmin(addr(1), addr(2)), coreerrors.ErrAlreadyExists)
	r.ErrorIs(set.TransferAdmin(addr(7), addr(8)), coreerrors.ErrUnauthorized)
	r.NoError(set.TransferAdmin(addr(1), addr(3)))

	admins, err := set.Admins()
	r.NoError(err)
	r.Len(admins, 2)
	r.True(admins[0].Equal(addr(3)))
	r.True(admins[1].Equal(addr(2)))
	ok, _ := set.IsAdmin(addr(1))
	r.False(ok)
}
