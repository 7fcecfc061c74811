package mcp

// FocusSlotInput is the input for the focus_slot tool.
type FocusSlotInput struct {
	Slot int `json:"slot" jsonschema:"required,Slot id to bring to the foreground"`
}

// FocusSlotOutput is the output for the focus_slot tool.
type FocusSlotOutput struct {
	Slot      int  `json:"slot"`
	Requested bool `json:"requested"`
}

// CycleSlotsInput is the input for the cycle_slots tool.
type CycleSlotsInput struct {
	Direction string `json:"direction,omitempty" jsonschema:"next or previous (default: next)"`
}

// CycleSlotsOutput is the output for the cycle_slots tool.
type CycleSlotsOutput struct {
	Direction string `json:"direction"`
}

// ListSlotsInput is the input for the list_slots tool.
type ListSlotsInput struct{}

// SlotInfo describes a single slot.
type SlotInfo struct {
	Slot       int    `json:"slot"`
	Profile    string `json:"profile"`
	State      string `json:"state"`
	PID        int    `json:"pid,omitempty"`
	Window     uint32 `json:"window,omitempty"`
	Foreground bool   `json:"foreground"`
	Uptime     string `json:"uptime,omitempty"`
	LastError  string `json:"last_error,omitempty"`
}

// ListSlotsOutput is the output for the list_slots tool.
type ListSlotsOutput struct {
	Template   string     `json:"template"`
	SwapState  string     `json:"swap_state"`
	Foreground int        `json:"foreground"`
	Deferred   bool       `json:"deferred"`
	Slots      []SlotInfo `json:"slots"`
}

// LaunchSlotsInput is the input for the launch_slots tool.
type LaunchSlotsInput struct {
	Slots []int `json:"slots,omitempty" jsonschema:"Slot ids to launch (default: every configured slot)"`
}

// LaunchSlotsOutput is the output for the launch_slots tool.
type LaunchSlotsOutput struct {
	Launching []int `json:"launching"`
}

// SetTemplateInput is the input for the set_template tool.
type SetTemplateInput struct {
	Template string `json:"template" jsonschema:"required,Template name as listed by the daemon"`
	Persist  bool   `json:"persist,omitempty" jsonschema:"When true, also write the template to the config file"`
}

// SetTemplateOutput is the output for the set_template tool.
type SetTemplateOutput struct {
	Template  string   `json:"template"`
	Available []string `json:"available"`
}
