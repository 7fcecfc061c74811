package seat

import (
	"fmt"
	"sort"

	"github.com/1broseidon/multiboxer/internal/acquire"
	"github.com/1broseidon/multiboxer/internal/config"
	"github.com/1broseidon/multiboxer/internal/process"
	"github.com/1broseidon/multiboxer/internal/slot"
)

// ProfileFromConfig turns a configured profile into a launchable one.
func ProfileFromConfig(name string, p config.Profile) (slot.Profile, error) {
	criteria, err := acquire.NewCriteria(p.WindowClass, p.TitlePattern, p.Executables)
	if err != nil {
		return slot.Profile{}, fmt.Errorf("profile %q: %w", name, err)
	}
	return slot.Profile{
		Name: name,
		Spec: process.Spec{
			Command: p.Command,
			Args:    append([]string(nil), p.Args...),
			Dir:     p.Dir,
			Env:     p.Env,
		},
		Criteria: criteria,
	}, nil
}

// Reconfigure applies a loaded configuration: options, slot profiles and
// the active template. Slots no longer configured are disposed of. Swap
// timings are fixed at start-up.
func (s *Seat) Reconfigure(cfg *config.Config) error {
	profiles := make(map[int]slot.Profile, len(cfg.Slots))
	for _, sc := range cfg.Slots {
		p, ok := cfg.Profiles[sc.Profile]
		if !ok {
			return fmt.Errorf("slot %d: unknown profile %q", sc.ID, sc.Profile)
		}
		prof, err := ProfileFromConfig(sc.Profile, p)
		if err != nil {
			return err
		}
		profiles[sc.ID] = prof
	}

	s.mu.Lock()
	s.templates = cfg
	s.mu.Unlock()
	s.engine.SetOptions(cfg.Layout.Options)

	ids := make([]int, 0, len(profiles))
	for id := range profiles {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		if err := s.slots.Configure(id, profiles[id]); err != nil {
			return err
		}
	}
	for _, id := range s.slots.ConfiguredSlots() {
		if _, keep := profiles[id]; keep {
			continue
		}
		if w, ok := s.slots.Window(id); ok {
			s.engine.Forget(w)
		}
		s.previews.Forget(id)
		s.slots.Remove(id)
		s.logger.Info("slot removed", "slot", id)
	}

	return s.SetTemplate(cfg.Layout.Template)
}
