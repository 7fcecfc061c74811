package seat

import (
	"fmt"
	"strings"

	"github.com/1broseidon/multiboxer/internal/platform"
)

// Action is what an input asks the seat to do.
type Action string

const (
	ActionFocus    Action = "focus"
	ActionNext     Action = "next"
	ActionPrevious Action = "previous"
	ActionRelayout Action = "relayout"
	ActionReset    Action = "reset"
	// ActionActivate reports a window that became active outside the seat,
	// e.g. a click on a client.
	ActionActivate Action = "activate"
)

// Source names where an input came from. It only affects policy: hotkey
// focus honours swap_on_hotkey_focus.
type Source string

const (
	SourceHotkey  Source = "hotkey"
	SourceIPC     Source = "ipc"
	SourcePreview Source = "preview"
	SourceWindow  Source = "window"
)

// Input is a single request delivered to the control path.
type Input struct {
	SlotID *int
	Action Action
	Source Source
	Window platform.WindowID
}

// Focus returns an input focusing slot id.
func Focus(id int, src Source) Input {
	return Input{SlotID: &id, Action: ActionFocus, Source: src}
}

// Do returns a slot-less input.
func Do(action Action, src Source) Input {
	return Input{Action: action, Source: src}
}

func (in Input) String() string {
	if in.SlotID != nil {
		return fmt.Sprintf("%s(%d) from %s", in.Action, *in.SlotID, in.Source)
	}
	return fmt.Sprintf("%s from %s", in.Action, in.Source)
}

// ParseAction maps a user-facing name to an action. "prev" is accepted for
// previous.
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "focus":
		return ActionFocus, nil
	case "next":
		return ActionNext, nil
	case "previous", "prev":
		return ActionPrevious, nil
	case "relayout":
		return ActionRelayout, nil
	case "reset":
		return ActionReset, nil
	default:
		return "", fmt.Errorf("unknown action %q", s)
	}
}
