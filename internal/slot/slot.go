// Package slot tracks the game clients that make up a seat: which
// process backs each slot, which window it owns and its lifecycle state.
package slot

import (
	"context"
	"time"

	"github.com/1broseidon/multiboxer/internal/acquire"
	"github.com/1broseidon/multiboxer/internal/claim"
	"github.com/1broseidon/multiboxer/internal/platform"
	"github.com/1broseidon/multiboxer/internal/process"
)

// State is the lifecycle state of a slot.
type State int

const (
	StateEmpty State = iota
	StateStarting
	StateRunning
	StateForeground
	StateMinimized
	StateExited
	StateError
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateForeground:
		return "foreground"
	case StateMinimized:
		return "minimized"
	case StateExited:
		return "exited"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// HasWindow reports whether a slot in this state owns a window.
func (s State) HasWindow() bool {
	return s == StateRunning || s == StateForeground || s == StateMinimized
}

// Profile is how a slot's client is started and recognised.
type Profile struct {
	Name     string
	Spec     process.Spec
	Criteria acquire.Criteria
}

// Slot is one client of the seat. A slot owns at most one window; the
// claim is released before the handle changes or the slot is disposed.
type Slot struct {
	ID        int
	Profile   Profile
	State     State
	PID       int
	StartedAt time.Time
	LastError string

	claim *claim.Claim
	// gen identifies the current acquisition; a result carrying an older
	// generation is discarded.
	gen    uint64
	cancel context.CancelFunc
}

// Window returns the owned window handle, or 0.
func (s *Slot) Window() platform.WindowID {
	return s.claim.Handle()
}

// Info is a copy of a slot's public state.
type Info struct {
	ID        int
	Profile   string
	State     State
	PID       int
	Window    platform.WindowID
	StartedAt time.Time
	LastError string
}

func (s *Slot) info() Info {
	return Info{
		ID:        s.ID,
		Profile:   s.Profile.Name,
		State:     s.State,
		PID:       s.PID,
		Window:    s.Window(),
		StartedAt: s.StartedAt,
		LastError: s.LastError,
	}
}

// bind makes c the slot's claim, releasing any previous one first.
func (s *Slot) bind(c *claim.Claim, pid int) {
	if s.claim != nil && s.claim.Handle() != c.Handle() {
		s.claim.Release()
	}
	s.claim = c
	s.PID = pid
}

// unbind releases the owned window.
func (s *Slot) unbind() {
	s.claim.Release()
	s.claim = nil
}

// abandon cancels any acquisition in flight and invalidates its result.
func (s *Slot) abandon() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
}
