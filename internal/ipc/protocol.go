package ipc

import (
	"encoding/json"
	"fmt"

	"github.com/1broseidon/multiboxer/internal/seat"
)

// CommandType represents different IPC command types
type CommandType string

const (
	CommandReload        CommandType = "RELOAD"
	CommandGetStatus     CommandType = "GET_STATUS"
	CommandGetMonitors   CommandType = "GET_MONITORS"
	CommandFocus         CommandType = "FOCUS"
	CommandCycle         CommandType = "CYCLE"
	CommandRelayout      CommandType = "RELAYOUT"
	CommandLaunch        CommandType = "LAUNCH"
	CommandAttach        CommandType = "ATTACH"
	CommandRelease       CommandType = "RELEASE"
	CommandListTemplates CommandType = "LIST_TEMPLATES"
	CommandSetTemplate   CommandType = "SET_TEMPLATE"
	CommandRecovery      CommandType = "RECOVERY"
	CommandForceReset    CommandType = "FORCE_RESET"
)

// Request represents an IPC request from client to server
type Request struct {
	Command CommandType     `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response represents an IPC response from server to client
type Response struct {
	Status string          `json:"status"` // "OK" or "ERROR"
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// StatusData is the GET_STATUS reply.
type StatusData struct {
	seat.Status
	DaemonRunning bool `json:"daemon_running"`
}

// MonitorInfo represents information about a single monitor
type MonitorInfo struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	X       int    `json:"x"`
	Y       int    `json:"y"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	UsableX int    `json:"usable_x"`
	UsableY int    `json:"usable_y"`
	UsableW int    `json:"usable_width"`
	UsableH int    `json:"usable_height"`
	Primary bool   `json:"primary"`
}

// MonitorsData represents the data returned by GET_MONITORS
type MonitorsData struct {
	Monitors []MonitorInfo `json:"monitors"`
}

type SlotPayload struct {
	Slot int `json:"slot"`
}

type CyclePayload struct {
	Direction string `json:"direction"` // "next" or "previous"
}

type LaunchPayload struct {
	Slots []int `json:"slots,omitempty"`
}

type LaunchData struct {
	Slots []int `json:"slots"`
}

type AttachPayload struct {
	Slot int `json:"slot"`
	PID  int `json:"pid"`
}

type TemplatesData struct {
	Templates []string `json:"templates"`
	Active    string   `json:"active"`
}

type SetTemplatePayload struct {
	Template string `json:"template"`
	// Persist writes the choice back to the config file.
	Persist bool `json:"persist,omitempty"`
}

type RecoveryPayload struct {
	Enter  bool   `json:"enter"`
	Reason string `json:"reason,omitempty"`
	// OK is the outcome passed to ExitRecovery when Enter is false.
	OK bool `json:"ok,omitempty"`
}

// NewOKResponse creates a successful response with optional data
func NewOKResponse(data interface{}) (*Response, error) {
	var dataBytes json.RawMessage
	if data != nil {
		bytes, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response data: %w", err)
		}
		dataBytes = bytes
	}

	return &Response{
		Status: "OK",
		Data:   dataBytes,
	}, nil
}

// NewErrorResponse creates an error response with a message
func NewErrorResponse(errMsg string) *Response {
	return &Response{
		Status: "ERROR",
		Error:  errMsg,
	}
}

// ParseRequest parses a request from JSON bytes
func ParseRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	return &req, nil
}

// Marshal converts a response to JSON bytes
func (r *Response) Marshal() ([]byte, error) {
	return json.Marshal(r)
}
