package seat

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// savedState maps slot ids to the process that owned them, so a restarted
// daemon can re-attach clients that are still running.
type savedState struct {
	Slots   map[int]int `json:"slots"`
	SavedAt time.Time   `json:"saved_at"`
}

func (s *Seat) saveState() {
	s.mu.Lock()
	path := s.statePath
	s.mu.Unlock()
	if path == "" {
		return
	}

	st := savedState{Slots: make(map[int]int), SavedAt: time.Now()}
	for _, info := range s.slots.Snapshot() {
		if info.State.HasWindow() && info.PID > 0 {
			st.Slots[info.ID] = info.PID
		}
	}
	if err := writeState(path, st); err != nil {
		s.logger.Warn("failed to save seat state", "path", path, "error", err)
	}
}

func writeState(path string, st savedState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func readState(path string) (savedState, error) {
	var st savedState
	data, err := os.ReadFile(path)
	if err != nil {
		return st, err
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return st, fmt.Errorf("%s: %w", path, err)
	}
	return st, nil
}

// Resume re-attaches slots recorded by a previous daemon whose processes
// are still alive. The acquisitions run under ctx, which should outlive
// the call. It returns the slots being re-attached.
func (s *Seat) Resume(ctx context.Context) ([]int, error) {
	s.mu.Lock()
	path := s.statePath
	s.mu.Unlock()
	if path == "" {
		return nil, nil
	}

	st, err := readState(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	ids := make([]int, 0, len(st.Slots))
	for id := range st.Slots {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var resumed []int
	for _, id := range ids {
		pid := st.Slots[id]
		if s.liveness != nil && !s.liveness.Alive(pid) {
			continue
		}
		if _, ok := s.slots.Get(id); !ok {
			continue
		}
		if err := s.slots.Attach(ctx, id, pid); err != nil {
			s.logger.Warn("resume failed", "slot", id, "pid", pid, "error", err)
			continue
		}
		resumed = append(resumed, id)
	}
	return resumed, nil
}
