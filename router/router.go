package router

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"shop-scraper/utils"
)

// Request is an in-process message from a client to whichever server claims
// its action. Parameters carry the action arguments, Context optional caller
// metadata.
type Request struct {
	ID         string
	Timestamp  time.Time
	Source     string
	Action     string
	Parameters map[string]any
	Context    map[string]any
}

// NewRequest builds a Request with a fresh id and timestamp.
func NewRequest(source, action string, params map[string]any) *Request {
	return &Request{
		ID:         uuid.NewString(),
		Timestamp:  time.Now(),
		Source:     source,
		Action:     action,
		Parameters: params,
	}
}

// Response statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Response is the outcome of a routed request. Exactly one of Data and Error
// is meaningful, selected by Status.
type Response struct {
	RequestID string
	Timestamp time.Time
	Status    string
	Data      map[string]any
	Error     string
}

func successResponse(req *Request, data map[string]any) Response {
	return Response{
		RequestID: req.ID,
		Timestamp: time.Now(),
		Status:    StatusSuccess,
		Data:      data,
	}
}

func errorResponse(req *Request, message string) Response {
	return Response{
		RequestID: req.ID,
		Timestamp: time.Now(),
		Status:    StatusError,
		Error:     message,
	}
}

// Server handles requests it claims via CanHandle.
type Server interface {
	Name() string
	CanHandle(req *Request) bool
	Handle(req *Request) Response
}

// ProcessFunc executes one action. An error return or a panic becomes an
// error Response at the server boundary, never a crash.
type ProcessFunc func(req *Request) (map[string]any, error)

// PermissionServer is the common base for concrete servers: a permission
// table mapping a request source to its allowed actions, checked before the
// action runs, and fault containment around the action itself.
type PermissionServer struct {
	name        string
	logger      *utils.Logger
	mu          sync.RWMutex
	permissions map[string][]string
	actions     map[string]ProcessFunc
	order       []string
}

// NewPermissionServer creates a server base with the given permission table.
// A source missing from the table is allowed nothing.
func NewPermissionServer(name string, permissions map[string][]string, logger *utils.Logger) *PermissionServer {
	if permissions == nil {
		permissions = make(map[string][]string)
	}
	return &PermissionServer{
		name:        name,
		logger:      logger.WithPrefix(name),
		permissions: permissions,
		actions:     make(map[string]ProcessFunc),
	}
}

func (s *PermissionServer) Name() string { return s.name }

// RegisterAction binds an action name to its processor.
func (s *PermissionServer) RegisterAction(action string, fn ProcessFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.actions[action]; !exists {
		s.order = append(s.order, action)
	}
	s.actions[action] = fn
}

// Actions returns the registered action names in registration order.
func (s *PermissionServer) Actions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

// CanHandle reports whether the request's action is registered here.
// Permissions are NOT consulted: a denied request must still land on this
// server so the denial is this server's answer.
func (s *PermissionServer) CanHandle(req *Request) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.actions[req.Action]
	return ok
}

// SetPermission replaces the allowed actions for a source.
func (s *PermissionServer) SetPermission(source string, actions []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.permissions[source] = actions
}

func (s *PermissionServer) allowed(source, action string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.permissions[source] {
		if a == action || a == "*" {
			return true
		}
	}
	return false
}

// Handle checks permissions, then runs the action with error and panic
// containment. The permission check happens before any action code runs, so
// a denied request has no side effects.
func (s *PermissionServer) Handle(req *Request) (resp Response) {
	if !s.allowed(req.Source, req.Action) {
		s.logger.Warn("denied %q from %q", req.Action, req.Source)
		return errorResponse(req, "Permission denied")
	}

	s.mu.RLock()
	fn := s.actions[req.Action]
	s.mu.RUnlock()
	if fn == nil {
		return errorResponse(req, fmt.Sprintf("unknown action: %s", req.Action))
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("action %q panicked: %v", req.Action, r)
			resp = errorResponse(req, fmt.Sprintf("internal error: %v", r))
		}
	}()

	data, err := fn(req)
	if err != nil {
		s.logger.Error("action %q failed: %v", req.Action, err)
		return errorResponse(req, err.Error())
	}
	return successResponse(req, data)
}

// Host routes requests between registered clients and servers.
type Host struct {
	logger  *utils.Logger
	mu      sync.RWMutex
	servers []Server
	clients map[string]*Client
}

// NewHost creates an empty Host.
func NewHost(logger *utils.Logger) *Host {
	return &Host{
		logger:  logger.WithPrefix("host"),
		clients: make(map[string]*Client),
	}
}

// RegisterServer appends a server. Registration order is dispatch order.
func (h *Host) RegisterServer(s Server) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.servers = append(h.servers, s)
	h.logger.Info("registered server %q", s.Name())
}

// RegisterClient creates and returns a client bound to this host.
func (h *Host) RegisterClient(name string) *Client {
	h.mu.Lock()
	defer h.mu.Unlock()
	c := &Client{name: name, host: h}
	h.clients[name] = c
	h.logger.Info("registered client %q", name)
	return c
}

// Route sends the request to the first registered server whose CanHandle
// returns true. Every request is logged whether or not a server claims it.
func (h *Host) Route(req *Request) Response {
	h.logger.Info("request %s: %q from %q", req.ID, req.Action, req.Source)

	h.mu.RLock()
	servers := append([]Server(nil), h.servers...)
	h.mu.RUnlock()

	for _, s := range servers {
		if s.CanHandle(req) {
			resp := s.Handle(req)
			h.logger.Info("request %s handled by %q: %s", req.ID, s.Name(), resp.Status)
			return resp
		}
	}

	h.logger.Warn("request %s: no server for action %q", req.ID, req.Action)
	return errorResponse(req, "No server available to handle request")
}

// Client issues requests through its host under its registered name.
type Client struct {
	name string
	host *Host
}

func (c *Client) Name() string { return c.name }

// MakeRequest builds and routes a request in one call.
func (c *Client) MakeRequest(action string, params map[string]any) Response {
	return c.host.Route(NewRequest(c.name, action, params))
}
