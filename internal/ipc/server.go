package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"sync"

	"github.com/1broseidon/multiboxer/internal/config"
	"github.com/1broseidon/multiboxer/internal/platform"
	"github.com/1broseidon/multiboxer/internal/runtimepath"
	"github.com/1broseidon/multiboxer/internal/seat"
)

// Controller is the daemon-side surface the server drives. *seat.Seat
// implements it.
type Controller interface {
	Submit(in seat.Input) error
	Status() seat.Status
	Launch(ids []int) ([]int, error)
	Attach(id, pid int) error
	Release(id int) error
	SetTemplate(name string) error
	TemplateName() string
	TemplateNames() []string
	EnterRecovery(reason string)
	ExitRecovery(ok bool) error
}

// Server handles IPC requests from clients
type Server struct {
	socketPath   string
	listener     net.Listener
	cfg          *config.Config
	cfgPath      string
	cfgMu        sync.RWMutex
	ctrl         Controller
	topology     platform.Topology
	reloadChan   chan struct{}
	shuttingDown bool
	shutdownMu   sync.Mutex
}

// NewServer creates a new IPC server. cfgPath is the file RELOAD and
// persisted SET_TEMPLATE use; empty means the default location.
func NewServer(cfg *config.Config, cfgPath string, ctrl Controller, topology platform.Topology, reloadChan chan struct{}) (*Server, error) {
	socketPath, err := runtimepath.SocketPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve IPC socket path: %w", err)
	}

	// Remove existing socket if present
	os.Remove(socketPath)

	return &Server{
		socketPath: socketPath,
		cfg:        cfg,
		cfgPath:    cfgPath,
		ctrl:       ctrl,
		topology:   topology,
		reloadChan: reloadChan,
	}, nil
}

// Start begins listening for IPC connections
func (s *Server) Start() error {
	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create IPC socket: %w", err)
	}
	s.listener = listener

	// Set socket permissions
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	log.Printf("IPC server listening on %s", s.socketPath)

	go s.acceptLoop()

	return nil
}

// acceptLoop accepts incoming connections
func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.shutdownMu.Lock()
			if s.shuttingDown {
				s.shutdownMu.Unlock()
				return
			}
			s.shutdownMu.Unlock()
			log.Printf("IPC accept error: %v", err)
			continue
		}

		go s.handleConnection(conn)
	}
}

// handleConnection handles a single IPC connection
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)

	// Read the request (expect JSON on a single line)
	data, err := reader.ReadBytes('\n')
	if err != nil && err != io.EOF {
		log.Printf("IPC read error: %v", err)
		return
	}

	req, err := ParseRequest(data)
	if err != nil {
		s.sendError(conn, fmt.Sprintf("Invalid request: %v", err))
		return
	}

	resp := s.handleCommand(req)

	respData, err := resp.Marshal()
	if err != nil {
		log.Printf("Failed to marshal response: %v", err)
		return
	}

	respData = append(respData, '\n')
	if _, err := conn.Write(respData); err != nil {
		log.Printf("Failed to send response: %v", err)
	}
}

// handleCommand processes an IPC command and returns a response
func (s *Server) handleCommand(req *Request) *Response {
	switch req.Command {
	case CommandReload:
		return s.handleReload()
	case CommandGetStatus:
		return ok(StatusData{Status: s.ctrl.Status(), DaemonRunning: true})
	case CommandGetMonitors:
		return s.handleGetMonitors()
	case CommandFocus:
		return s.handleFocus(req.Payload)
	case CommandCycle:
		return s.handleCycle(req.Payload)
	case CommandRelayout:
		return s.submit(seat.Do(seat.ActionRelayout, seat.SourceIPC))
	case CommandForceReset:
		return s.submit(seat.Do(seat.ActionReset, seat.SourceIPC))
	case CommandLaunch:
		return s.handleLaunch(req.Payload)
	case CommandAttach:
		return s.handleAttach(req.Payload)
	case CommandRelease:
		return s.handleRelease(req.Payload)
	case CommandListTemplates:
		return ok(TemplatesData{Templates: s.ctrl.TemplateNames(), Active: s.ctrl.TemplateName()})
	case CommandSetTemplate:
		return s.handleSetTemplate(req.Payload)
	case CommandRecovery:
		return s.handleRecovery(req.Payload)
	default:
		return NewErrorResponse(fmt.Sprintf("Unknown command: %s", req.Command))
	}
}

// handleReload reloads the configuration
func (s *Server) handleReload() *Response {
	log.Println("IPC: Received RELOAD command")

	newCfg, err := s.loadConfig()
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to reload config: %v", err))
	}

	s.cfgMu.Lock()
	s.cfg = newCfg
	s.cfgMu.Unlock()

	// Notify the main daemon via channel (non-blocking)
	select {
	case s.reloadChan <- struct{}{}:
	default:
	}

	log.Println("IPC: Config reloaded successfully")
	return ok(nil)
}

func (s *Server) loadConfig() (*config.Config, error) {
	if s.cfgPath == "" {
		return config.Load()
	}
	res, err := config.LoadFromPath(s.cfgPath)
	if err != nil {
		return nil, err
	}
	return res.Config, nil
}

// handleGetMonitors returns information about all monitors
func (s *Server) handleGetMonitors() *Response {
	if s.topology == nil {
		return NewErrorResponse("monitor topology unavailable")
	}
	displays, err := s.topology.Displays()
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to get monitors: %v", err))
	}

	infos := make([]MonitorInfo, len(displays))
	for i, d := range displays {
		infos[i] = MonitorInfo{
			ID:      d.ID,
			Name:    d.Name,
			X:       d.Bounds.X,
			Y:       d.Bounds.Y,
			Width:   d.Bounds.Width,
			Height:  d.Bounds.Height,
			UsableX: d.Usable.X,
			UsableY: d.Usable.Y,
			UsableW: d.Usable.Width,
			UsableH: d.Usable.Height,
			Primary: d.Primary,
		}
	}
	return ok(MonitorsData{Monitors: infos})
}

func (s *Server) handleFocus(payload json.RawMessage) *Response {
	var req SlotPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return NewErrorResponse(fmt.Sprintf("Invalid focus payload: %v", err))
	}
	if req.Slot <= 0 {
		return NewErrorResponse("slot is required")
	}
	return s.submit(seat.Focus(req.Slot, seat.SourceIPC))
}

func (s *Server) handleCycle(payload json.RawMessage) *Response {
	var req CyclePayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			return NewErrorResponse(fmt.Sprintf("Invalid cycle payload: %v", err))
		}
	}
	if req.Direction == "" {
		req.Direction = "next"
	}
	action, err := seat.ParseAction(req.Direction)
	if err != nil || (action != seat.ActionNext && action != seat.ActionPrevious) {
		return NewErrorResponse(fmt.Sprintf("direction must be next or previous, got %q", req.Direction))
	}
	return s.submit(seat.Do(action, seat.SourceIPC))
}

func (s *Server) handleLaunch(payload json.RawMessage) *Response {
	var req LaunchPayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			return NewErrorResponse(fmt.Sprintf("Invalid launch payload: %v", err))
		}
	}
	ids, err := s.ctrl.Launch(req.Slots)
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to launch: %v", err))
	}
	log.Printf("IPC: Launching slots %v", ids)
	return ok(LaunchData{Slots: ids})
}

func (s *Server) handleAttach(payload json.RawMessage) *Response {
	var req AttachPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return NewErrorResponse(fmt.Sprintf("Invalid attach payload: %v", err))
	}
	if req.Slot <= 0 || req.PID <= 0 {
		return NewErrorResponse("slot and pid are required")
	}
	if err := s.ctrl.Attach(req.Slot, req.PID); err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to attach: %v", err))
	}
	return ok(nil)
}

func (s *Server) handleRelease(payload json.RawMessage) *Response {
	var req SlotPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return NewErrorResponse(fmt.Sprintf("Invalid release payload: %v", err))
	}
	if err := s.ctrl.Release(req.Slot); err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to release: %v", err))
	}
	return ok(nil)
}

func (s *Server) handleSetTemplate(payload json.RawMessage) *Response {
	var req SetTemplatePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return NewErrorResponse(fmt.Sprintf("Invalid set template payload: %v", err))
	}
	if err := s.ctrl.SetTemplate(req.Template); err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to set template: %v", err))
	}

	if req.Persist {
		s.cfgMu.Lock()
		s.cfg.Layout.Template = req.Template
		var err error
		if s.cfgPath == "" {
			err = s.cfg.Save()
		} else {
			err = s.cfg.SaveTo(s.cfgPath)
		}
		s.cfgMu.Unlock()
		if err != nil {
			return NewErrorResponse(fmt.Sprintf("Failed to save config: %v", err))
		}
	}
	return ok(nil)
}

func (s *Server) handleRecovery(payload json.RawMessage) *Response {
	var req RecoveryPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return NewErrorResponse(fmt.Sprintf("Invalid recovery payload: %v", err))
	}
	if req.Enter {
		reason := req.Reason
		if reason == "" {
			reason = "requested over IPC"
		}
		s.ctrl.EnterRecovery(reason)
		return ok(nil)
	}
	if err := s.ctrl.ExitRecovery(req.OK); err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to exit recovery: %v", err))
	}
	return ok(nil)
}

func (s *Server) submit(in seat.Input) *Response {
	if err := s.ctrl.Submit(in); err != nil {
		return NewErrorResponse(err.Error())
	}
	return ok(nil)
}

func ok(data interface{}) *Response {
	resp, err := NewOKResponse(data)
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return resp
}

// sendError sends an error response
func (s *Server) sendError(conn net.Conn, errMsg string) {
	resp := NewErrorResponse(errMsg)
	data, _ := resp.Marshal()
	data = append(data, '\n')
	conn.Write(data)
}

// Stop gracefully shuts down the IPC server
func (s *Server) Stop() {
	s.shutdownMu.Lock()
	s.shuttingDown = true
	s.shutdownMu.Unlock()

	if s.listener != nil {
		s.listener.Close()
	}
	os.Remove(s.socketPath)
}

// GetConfig returns the current config (thread-safe)
func (s *Server) GetConfig() *config.Config {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg
}

// UpdateConfig updates the config (thread-safe)
func (s *Server) UpdateConfig(cfg *config.Config) {
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()
	s.cfg = cfg
}
