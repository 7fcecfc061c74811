package mcp

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/multiboxer/internal/ipc"
)

const (
	ServerName    = "multiboxer"
	ServerVersion = "0.1.0"
)

// Daemon is the IPC surface the tools drive. *ipc.Client implements it.
type Daemon interface {
	GetStatus() (*ipc.StatusData, error)
	Focus(slot int) error
	Cycle(direction string) error
	Launch(slots []int) ([]int, error)
	ListTemplates() (*ipc.TemplatesData, error)
	SetTemplate(name string, persist bool) error
}

// Server exposes the running seat to MCP clients.
type Server struct {
	mcpServer *mcpsdk.Server
	daemon    Daemon
}

// NewServer creates a new MCP server talking to the daemon over d.
func NewServer(d Daemon) *Server {
	if d == nil {
		d = ipc.NewClient()
	}
	s := &Server{daemon: d}

	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    ServerName,
			Version: ServerVersion,
		},
		nil,
	)

	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport, blocking until done.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "focus_slot",
		Description: "Bring a slot's client window to the foreground region. Other active slots move to their back regions. Fails if the slot has no window.",
	}, s.handleFocusSlot)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "cycle_slots",
		Description: "Move the foreground to the next or previous active slot, wrapping around.",
	}, s.handleCycleSlots)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_slots",
		Description: "List every configured slot with its state, process id, window and whether it is in the foreground, plus the swap machine state.",
	}, s.handleListSlots)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "launch_slots",
		Description: "Start the client process for the given slots (all configured slots when empty). Windows are acquired in the background; poll list_slots to see them come up.",
	}, s.handleLaunchSlots)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "set_template",
		Description: "Switch the active region template and re-apply the layout. Pass persist to save the choice to the config file.",
	}, s.handleSetTemplate)
}
