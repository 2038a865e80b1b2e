package common

import (
	"errors"
	"sync"
)

// ErrModulePaused is returned when a state-changing operation is attempted
// against a paused module.
var ErrModulePaused = errors.New("module paused")

// PauseView reports whether a named module currently rejects new
// state-changing actions.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects the call when the module is paused. A nil view or empty
// module name never blocks.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// Switchboard is a mutable PauseView. The oracle engine owns one so the
// privileged pause/unpause operations have somewhere to record their state;
// node wiring may share it across modules.
type Switchboard struct {
	mu     sync.RWMutex
	paused map[string]bool
}

func NewSwitchboard() *Switchboard {
	return &Switchboard{paused: make(map[string]bool)}
}

// SetPaused toggles the pause flag for the module.
func (s *Switchboard) SetPaused(module string, paused bool) {
	if s == nil || module == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused[module] = paused
}

// IsPaused implements PauseView.
func (s *Switchboard) IsPaused(module string) bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.paused[module]
}
