package common

import (
	"errors"
	"sync/atomic"
)

var (
	ErrModulePaused = errors.New("module paused")
	ErrReentrant    = errors.New("reentrant call rejected")
)

type PauseView interface {
	IsPaused(module string) bool
}

func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// StaticPauses is a PauseView backed by a fixed set of paused module names.
type StaticPauses map[string]bool

// IsPaused implements PauseView.
func (s StaticPauses) IsPaused(module string) bool {
	return s[module]
}

// ReentrancyGuard rejects nested entry into guarded operations. The lock is
// released by the function returned from Enter, which callers defer so every
// exit path (including panics) clears it.
type ReentrancyGuard struct {
	locked atomic.Bool
}

// Enter acquires the guard. It fails with ErrReentrant while another guarded
// scope is active.
func (g *ReentrancyGuard) Enter() (func(), error) {
	if g == nil {
		return func() {}, nil
	}
	if !g.locked.CompareAndSwap(false, true) {
		return nil, ErrReentrant
	}
	var once atomic.Bool
	return func() {
		if once.CompareAndSwap(false, true) {
			g.locked.Store(false)
		}
	}, nil
}

// Locked reports whether a guarded scope is currently active.
func (g *ReentrancyGuard) Locked() bool {
	if g == nil {
		return false
	}
	return g.locked.Load()
}
