package mcp

import (
	"context"
	"fmt"
	"sort"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

func (s *Server) handleFocusSlot(_ context.Context, _ *mcpsdk.CallToolRequest, args FocusSlotInput) (*mcpsdk.CallToolResult, FocusSlotOutput, error) {
	if args.Slot <= 0 {
		return nil, FocusSlotOutput{}, fmt.Errorf("slot must be a positive slot id")
	}
	if err := s.daemon.Focus(args.Slot); err != nil {
		return nil, FocusSlotOutput{}, fmt.Errorf("focus slot %d: %w", args.Slot, err)
	}
	return nil, FocusSlotOutput{Slot: args.Slot, Requested: true}, nil
}

func (s *Server) handleCycleSlots(_ context.Context, _ *mcpsdk.CallToolRequest, args CycleSlotsInput) (*mcpsdk.CallToolResult, CycleSlotsOutput, error) {
	direction := strings.ToLower(strings.TrimSpace(args.Direction))
	switch direction {
	case "", "next":
		direction = "next"
	case "previous", "prev":
		direction = "previous"
	default:
		return nil, CycleSlotsOutput{}, fmt.Errorf("direction must be next or previous, got %q", args.Direction)
	}
	if err := s.daemon.Cycle(direction); err != nil {
		return nil, CycleSlotsOutput{}, err
	}
	return nil, CycleSlotsOutput{Direction: direction}, nil
}

func (s *Server) handleListSlots(_ context.Context, _ *mcpsdk.CallToolRequest, _ ListSlotsInput) (*mcpsdk.CallToolResult, ListSlotsOutput, error) {
	status, err := s.daemon.GetStatus()
	if err != nil {
		return nil, ListSlotsOutput{}, err
	}

	out := ListSlotsOutput{
		Template:   status.Template,
		SwapState:  status.SwapState,
		Foreground: status.Foreground,
		Deferred:   status.Deferred,
		Slots:      make([]SlotInfo, 0, len(status.Slots)),
	}
	for _, sl := range status.Slots {
		out.Slots = append(out.Slots, SlotInfo{
			Slot:       sl.ID,
			Profile:    sl.Profile,
			State:      sl.State,
			PID:        sl.PID,
			Window:     sl.Window,
			Foreground: sl.Foreground,
			Uptime:     sl.Uptime,
			LastError:  sl.LastError,
		})
	}
	// Sort by slot for deterministic output.
	sort.Slice(out.Slots, func(i, j int) bool {
		return out.Slots[i].Slot < out.Slots[j].Slot
	})
	return nil, out, nil
}

func (s *Server) handleLaunchSlots(_ context.Context, _ *mcpsdk.CallToolRequest, args LaunchSlotsInput) (*mcpsdk.CallToolResult, LaunchSlotsOutput, error) {
	for _, id := range args.Slots {
		if id <= 0 {
			return nil, LaunchSlotsOutput{}, fmt.Errorf("slots contains invalid id %d", id)
		}
	}
	ids, err := s.daemon.Launch(args.Slots)
	if err != nil {
		return nil, LaunchSlotsOutput{}, err
	}
	return nil, LaunchSlotsOutput{Launching: ids}, nil
}

func (s *Server) handleSetTemplate(_ context.Context, _ *mcpsdk.CallToolRequest, args SetTemplateInput) (*mcpsdk.CallToolResult, SetTemplateOutput, error) {
	name := strings.TrimSpace(args.Template)
	if name == "" {
		return nil, SetTemplateOutput{}, fmt.Errorf("template is required")
	}

	available, err := s.daemon.ListTemplates()
	if err != nil {
		return nil, SetTemplateOutput{}, err
	}
	found := false
	for _, t := range available.Templates {
		if t == name {
			found = true
			break
		}
	}
	if !found {
		return nil, SetTemplateOutput{}, fmt.Errorf("unknown template %q (available: %s)", name, strings.Join(available.Templates, ", "))
	}

	if err := s.daemon.SetTemplate(name, args.Persist); err != nil {
		return nil, SetTemplateOutput{}, err
	}
	return nil, SetTemplateOutput{Template: name, Available: available.Templates}, nil
}
