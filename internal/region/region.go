// Package region holds the fore/back region model: templates of
// per-position rectangles and the live map that binds them to slots.
package region

import (
	"fmt"
	"sort"

	"github.com/1broseidon/multiboxer/internal/platform"
)

// MaxSlots is the highest slot id.
const MaxSlots = 40

// SlotRegion is the pair of rectangles a slot occupies when it is focused
// (Fore) and when it is not (Back). Coordinates are relative to the
// origin of the display the layout runs on.
type SlotRegion struct {
	SlotID int           `json:"slot_id" yaml:"slot_id"`
	Fore   platform.Rect `json:"fore" yaml:"fore"`
	Back   platform.Rect `json:"back" yaml:"back"`
}

// Template is an ordered list of regions keyed by position. The SlotID of
// a template entry is informational; positions bind to active slots in
// ascending id order.
type Template struct {
	Name    string       `json:"name" yaml:"name"`
	Regions []SlotRegion `json:"regions" yaml:"regions"`
}

// Len returns the template capacity.
func (t Template) Len() int {
	return len(t.Regions)
}

// Empty reports whether the template has no regions at all.
func (t Template) Empty() bool {
	return len(t.Regions) == 0
}

// HasEnoughSlotsForTemplate reports whether active slots fill every
// template position.
func (t Template) HasEnoughSlotsForTemplate(active int) bool {
	return active >= len(t.Regions)
}

// Validate rejects templates whose fore regions cannot be applied.
func (t Template) Validate() error {
	for i, r := range t.Regions {
		if !r.Fore.Valid() {
			return fmt.Errorf("region %d: fore must have positive width and height", i)
		}
		if r.Back.Width < 0 || r.Back.Height < 0 {
			return fmt.Errorf("region %d: back must not have negative size", i)
		}
	}
	return nil
}

// Map is the live slot id -> region binding. It is rebuilt, never edited.
type Map struct {
	bySlot map[int]SlotRegion
	order  []int
}

// Remap zips the template (position order) with the active slot ids
// (ascending). Extra slots or extra positions stay unbound, so the result
// holds min(T, A) entries.
func Remap(t Template, activeSlots []int) Map {
	ids := append([]int(nil), activeSlots...)
	sort.Ints(ids)

	n := min(len(ids), len(t.Regions))
	m := Map{
		bySlot: make(map[int]SlotRegion, n),
		order:  make([]int, 0, n),
	}
	for i := 0; i < n; i++ {
		r := t.Regions[i]
		r.SlotID = ids[i]
		m.bySlot[ids[i]] = r
		m.order = append(m.order, ids[i])
	}
	return m
}

// Get returns the region bound to slot.
func (m Map) Get(slot int) (SlotRegion, bool) {
	r, ok := m.bySlot[slot]
	return r, ok
}

// Len returns the number of bound slots.
func (m Map) Len() int {
	return len(m.order)
}

// Slots returns the bound slot ids in ascending order.
func (m Map) Slots() []int {
	return append([]int(nil), m.order...)
}

// Regions returns the bound regions in slot order.
func (m Map) Regions() []SlotRegion {
	out := make([]SlotRegion, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.bySlot[id])
	}
	return out
}
