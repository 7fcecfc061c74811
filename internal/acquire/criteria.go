package acquire

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/1broseidon/multiboxer/internal/platform"
)

// Criteria selects which windows of a tracked process may bind to a slot.
type Criteria struct {
	// WindowClass must equal the WM_CLASS class when set.
	WindowClass string
	// TitlePattern must match the title when set.
	TitlePattern *regexp.Regexp
	// Executables are process names searched when the launcher hands off to
	// another process.
	Executables []string
}

// NewCriteria compiles a title pattern; an empty pattern matches anything.
func NewCriteria(class, titlePattern string, executables []string) (Criteria, error) {
	c := Criteria{WindowClass: strings.TrimSpace(class), Executables: executables}
	if titlePattern != "" {
		re, err := regexp.Compile(titlePattern)
		if err != nil {
			return Criteria{}, fmt.Errorf("invalid title pattern: %w", err)
		}
		c.TitlePattern = re
	}
	return c, nil
}

// Matches applies the criteria. Without class or title constraints any
// visible window with a non-empty title is accepted.
func (c Criteria) Matches(w platform.Window) bool {
	if c.WindowClass == "" && c.TitlePattern == nil {
		return w.Visible && strings.TrimSpace(w.Title) != ""
	}
	if c.WindowClass != "" && w.AppID != c.WindowClass {
		return false
	}
	if c.TitlePattern != nil && !c.TitlePattern.MatchString(w.Title) {
		return false
	}
	return true
}
