package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/1broseidon/multiboxer/internal/runtimepath"
)

// Client handles IPC communication with the daemon
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a new IPC client
func NewClient() *Client {
	socketPath, err := runtimepath.SocketPath()
	if err != nil {
		// Keep constructor non-failing; sendRequest surfaces connection errors.
		socketPath = ""
	}

	return &Client{
		socketPath: socketPath,
		timeout:    5 * time.Second,
	}
}

// sendRequest sends a request and waits for a response
func (c *Client) sendRequest(req *Request) (*Response, error) {
	// Connect to socket
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w (is the daemon running?)", err)
	}
	defer conn.Close()

	// Set deadline
	conn.SetDeadline(time.Now().Add(c.timeout))

	// Marshal request
	reqData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	// Send request
	reqData = append(reqData, '\n')
	if _, err := conn.Write(reqData); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	// Read response
	reader := bufio.NewReader(conn)
	respData, err := reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	// Parse response
	var resp Response
	if err := json.Unmarshal(respData, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	// Check for error response
	if resp.Status == "ERROR" {
		return nil, fmt.Errorf("daemon error: %s", resp.Error)
	}

	return &resp, nil
}

// Reload sends a RELOAD command to the daemon
func (c *Client) Reload() error {
	_, err := c.call(CommandReload, nil)
	return err
}

// GetStatus retrieves daemon status
func (c *Client) GetStatus() (*StatusData, error) {
	resp, err := c.call(CommandGetStatus, nil)
	if err != nil {
		return nil, err
	}

	var status StatusData
	if err := json.Unmarshal(resp.Data, &status); err != nil {
		return nil, fmt.Errorf("failed to parse status data: %w", err)
	}

	return &status, nil
}

// GetMonitors retrieves monitor information
func (c *Client) GetMonitors() (*MonitorsData, error) {
	resp, err := c.call(CommandGetMonitors, nil)
	if err != nil {
		return nil, err
	}

	var monitors MonitorsData
	if err := json.Unmarshal(resp.Data, &monitors); err != nil {
		return nil, fmt.Errorf("failed to parse monitors data: %w", err)
	}

	return &monitors, nil
}

// Focus asks the daemon to bring a slot to the foreground.
func (c *Client) Focus(slot int) error {
	_, err := c.call(CommandFocus, SlotPayload{Slot: slot})
	return err
}

// Cycle moves the foreground to the next or previous active slot.
func (c *Client) Cycle(direction string) error {
	_, err := c.call(CommandCycle, CyclePayload{Direction: direction})
	return err
}

// Relayout re-applies the active template around the current foreground.
func (c *Client) Relayout() error {
	_, err := c.call(CommandRelayout, nil)
	return err
}

// ForceReset clears layout caches and re-applies everything from scratch.
func (c *Client) ForceReset() error {
	_, err := c.call(CommandForceReset, nil)
	return err
}

// Launch starts the given slots, or every configured slot when empty.
func (c *Client) Launch(slots []int) ([]int, error) {
	resp, err := c.call(CommandLaunch, LaunchPayload{Slots: slots})
	if err != nil {
		return nil, err
	}

	var data LaunchData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse launch data: %w", err)
	}
	return data.Slots, nil
}

// Attach binds an already running process to a slot.
func (c *Client) Attach(slot, pid int) error {
	_, err := c.call(CommandAttach, AttachPayload{Slot: slot, PID: pid})
	return err
}

// Release unbinds a slot without terminating its process.
func (c *Client) Release(slot int) error {
	_, err := c.call(CommandRelease, SlotPayload{Slot: slot})
	return err
}

// ListTemplates retrieves available templates and the active one.
func (c *Client) ListTemplates() (*TemplatesData, error) {
	resp, err := c.call(CommandListTemplates, nil)
	if err != nil {
		return nil, err
	}

	var data TemplatesData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse templates data: %w", err)
	}

	return &data, nil
}

// SetTemplate switches the active template, optionally saving it to config.
func (c *Client) SetTemplate(name string, persist bool) error {
	_, err := c.call(CommandSetTemplate, SetTemplatePayload{Template: name, Persist: persist})
	return err
}

// EnterRecovery forces the swap machine into recovery.
func (c *Client) EnterRecovery(reason string) error {
	_, err := c.call(CommandRecovery, RecoveryPayload{Enter: true, Reason: reason})
	return err
}

// ExitRecovery leaves recovery; ok=false keeps the pending request dropped.
func (c *Client) ExitRecovery(ok bool) error {
	_, err := c.call(CommandRecovery, RecoveryPayload{OK: ok})
	return err
}

// Ping checks if the daemon is responding
func (c *Client) Ping() error {
	_, err := c.GetStatus()
	return err
}

func (c *Client) call(cmd CommandType, payload interface{}) (*Response, error) {
	req := &Request{Command: cmd}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s payload: %w", cmd, err)
		}
		req.Payload = data
	}
	return c.sendRequest(req)
}
