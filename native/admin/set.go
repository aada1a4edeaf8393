package admin

import (
	"log/slog"

	coreerrors "lendcore/core/errors"
	"lendcore/core/events"
	"lendcore/crypto"
)

type setState interface {
	LendingAdmins() ([]crypto.Address, bool, error)
	PutLendingAdmins(admins []crypto.Address) error
}

// Set is the multi-admin authorization list gating privileged operations. It
// never becomes empty once initialised.
type Set struct {
	st      setState
	emitter events.Emitter
	logger  *slog.Logger
}

// NewSet creates an admin set backed by the provided state.
func NewSet(st setState) *Set {
	return &Set{st: st, emitter: events.NoopEmitter{}, logger: slog.Default()}
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op
// implementation.
func (s *Set) SetEmitter(emitter events.Emitter) {
	if s == nil {
		return
	}
	if emitter == nil {
		s.emitter = events.NoopEmitter{}
		return
	}
	s.emitter = emitter
}

func (s *Set) SetLogger(logger *slog.Logger) {
	if s == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	s.logger = logger.With(slog.String("module", "admin"))
}

func (s *Set) load() ([]crypto.Address, error) {
	admins, ok, err := s.st.LendingAdmins()
	if err != nil {
		return nil, err
	}
	if !ok || len(admins) == 0 {
		return nil, coreerrors.ErrAdminNotSet
	}
	return admins, nil
}

func indexOf(admins []crypto.Address, addr crypto.Address) int {
	for i, admin := range admins {
		if admin.Equal(addr) {
			return i
		}
	}
	return -1
}

func validate(addr crypto.Address) error {
	if err := addr.Validate(); err != nil {
		return coreerrors.Wrap(coreerrors.ErrInvalidAddress, "admin: %v", err)
	}
	return nil
}

func (s *Set) emit(typ string, caller, target crypto.Address) {
	evt := events.AdminChanged{Type: typ, Target: target.String()}
	if !caller.IsZero() {
		evt.Caller = caller.String()
	}
	s.emitter.Emit(evt)
	s.logger.Info("admin set updated",
		slog.String("event", typ),
		slog.String("caller", evt.Caller),
		slog.String("target", evt.Target))
}

// Initialize installs the first admin. It succeeds only once.
func (s *Set) Initialize(admin crypto.Address) error {
	if err := validate(admin); err != nil {
		return err
	}
	if _, ok, err := s.st.LendingAdmins(); err != nil {
		return err
	} else if ok {
		return coreerrors.Wrap(coreerrors.ErrAlreadyInitialized, "admin: set already initialised")
	}
	if err := s.st.PutLendingAdmins([]crypto.Address{admin}); err != nil {
		return err
	}
	s.emit(events.TypeAdminInitialized, crypto.Address{}, admin)
	return nil
}

// Admins returns the admin addresses in insertion order.
func (s *Set) Admins() ([]crypto.Address, error) {
	admins, err := s.load()
	if err != nil {
		return nil, err
	}
	return append([]crypto.Address(nil), admins...), nil
}

// IsAdmin reports whether addr belongs to the set. An uninitialised set has
// no admins.
func (s *Set) IsAdmin(addr crypto.Address) (bool, error) {
	admins, ok, err := s.st.LendingAdmins()
	if err != nil || !ok {
		return false, err
	}
	return indexOf(admins, addr) >= 0, nil
}

// RequireAdmin fails with ErrUnauthorized unless caller is an admin.
func (s *Set) RequireAdmin(caller crypto.Address) error {
	admins, err := s.load()
	if err != nil {
		return err
	}
	if indexOf(admins, caller) < 0 {
		return coreerrors.Wrap(coreerrors.ErrUnauthorized, "admin: %s is not an admin", caller)
	}
	return nil
}

// AddAdmin grants admin rights to target.
func (s *Set) AddAdmin(caller, target crypto.Address) error {
	if err := s.RequireAdmin(caller); err != nil {
		return err
	}
	if err := validate(target); err != nil {
		return err
	}
	admins, err := s.load()
	if err != nil {
		return err
	}
	if indexOf(admins, target) >= 0 {
		return coreerrors.Wrap(coreerrors.ErrAlreadyExists, "admin: %s", target)
	}
	next := append(append([]crypto.Address(nil), admins...), target)
	if err := s.st.PutLendingAdmins(next); err != nil {
		return err
	}
	s.emit(events.TypeAdminAdded, caller, target)
	return nil
}

// RemoveAdmin revokes target. The last admin cannot be removed.
func (s *Set) RemoveAdmin(caller, target crypto.Address) error {
	if err := s.RequireAdmin(caller); err != nil {
		return err
	}
	admins, err := s.load()
	if err != nil {
		return err
	}
	idx := indexOf(admins, target)
	if idx < 0 {
		return coreerrors.Wrap(coreerrors.ErrNotFound, "admin: %s", target)
	}
	if len(admins) == 1 {
		return coreerrors.Wrap(coreerrors.ErrInvalidOperation, "admin: cannot remove the sole admin")
	}
	next := make([]crypto.Address, 0, len(admins)-1)
	next = append(next, admins[:idx]...)
	next = append(next, admins[idx+1:]...)
	if err := s.st.PutLendingAdmins(next); err != nil {
		return err
	}
	s.emit(events.TypeAdminRemoved, caller, target)
	return nil
}

// TransferAdmin replaces caller with newAdmin in place.
func (s *Set) TransferAdmin(caller, newAdmin crypto.Address) error {
	if err := s.RequireAdmin(caller); err != nil {
		return err
	}
	if err := validate(newAdmin); err != nil {
		return err
	}
	admins, err := s.load()
	if err != nil {
		return err
	}
	if indexOf(admins, newAdmin) >= 0 {
		return coreerrors.Wrap(coreerrors.ErrAlreadyExists, "admin: %s", newAdmin)
	}
	next := append([]crypto.Address(nil), admins...)
	next[indexOf(next, caller)] = newAdmin
	if err := s.st.PutLendingAdmins(next); err != nil {
		return err
	}
	s.emit(events.TypeAdminTransferred, caller, newAdmin)
	return nil
}
