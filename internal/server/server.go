package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/peerreview/peerreview/internal/audit"
	"github.com/peerreview/peerreview/internal/config"
	"github.com/peerreview/peerreview/internal/review"
)

// Options configures the MCP server.
type Options struct {
	Config          *config.Config
	ConfigPath      string // Expanded path for hot-reload watching (empty = no watching)
	Stdin           io.Reader
	Stdout          io.Writer
	Audit           audit.Sink     // defaults to audit.Nop
	Reviewer        Reviewer       // defaults to a review.Client built from Config
	Logger          *logrus.Logger // operational logging; defaults to the standard logger
	ServerName      string
	ServerVersion   string
	ProtocolVersion string
}

// Server is an MCP server exposing the ai_peer_review tool over a
// newline-delimited JSON-RPC stream, normally stdin/stdout.
type Server struct {
	opts Options
	log  *logrus.Logger
	sink audit.Sink

	// Protocol state
	initialized bool
	mu          sync.RWMutex

	// rev is swapped on config reload; guarded by mu.
	rev Reviewer

	// IO
	reader  *bufio.Reader
	writer  io.Writer
	writeMu sync.Mutex

	// Hot-reload
	reloadCh chan *config.Config // Serializes reload with request handling
}

// New creates a new MCP server.
func New(opts Options) (*Server, error) {
	if opts.Config == nil && opts.Reviewer == nil {
		return nil, fmt.Errorf("either Config or Reviewer is required")
	}

	s := &Server{
		opts:     opts,
		log:      opts.Logger,
		sink:     opts.Audit,
		rev:      opts.Reviewer,
		reader:   bufio.NewReader(opts.Stdin),
		writer:   opts.Stdout,
		reloadCh: make(chan *config.Config, 1), // Buffered to avoid blocking watcher
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	if s.sink == nil {
		s.sink = audit.Nop{}
	}
	if s.rev == nil {
		g := opts.Config.Gemini
		s.rev = review.NewClient(g.APIKey, g.Model, g.BaseURL)
	}
	return s, nil
}

func (s *Server) reviewer() Reviewer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rev
}

// readResult holds a line read from stdin and any error.
type readResult struct {
	line []byte
	err  error
}

// Run starts the server and processes requests until the context is
// cancelled or the client closes the stream. Requests on one stream are
// served sequentially; the only suspension point is the outbound review
// call.
func (s *Server) Run(ctx context.Context) error {
	s.sink.Append(audit.Entry{Message: "Starting AI Peer Review MCP Server"})

	// Start config file watcher if ConfigPath is set
	if s.opts.ConfigPath != "" {
		go s.watchConfig(ctx, s.opts.ConfigPath)
	}

	// Start a goroutine to read lines from stdin
	lines := make(chan readResult)
	go func() {
		defer close(lines)
		for {
			line, err := s.reader.ReadBytes('\n')
			if len(line) > 0 {
				// ReadBytes buffer is only valid until the next read, so clone it.
				line = append([]byte(nil), line...)
			}
			select {
			case lines <- readResult{line, err}:
				if err != nil {
					return // Stop reading on error (including EOF)
				}
			case <-ctx.Done():
				return // Stop reading when context is cancelled
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case newCfg := <-s.reloadCh:
			s.applyReload(newCfg)

		case r, ok := <-lines:
			if !ok {
				// Channel closed, reader goroutine exited
				return nil
			}

			// Process any data we got, even if there's an error (e.g., EOF without newline)
			line := bytes.TrimSpace(r.line)
			if len(line) > 0 {
				s.handleMessage(ctx, line)
			}

			// Handle the read error
			if r.err != nil {
				if r.err == io.EOF {
					s.log.Info("Client closed connection (EOF)")
					return nil
				}
				return fmt.Errorf("read request: %w", r.err)
			}
		}
	}
}

// handleMessage parses and routes a JSON-RPC message.
func (s *Server) handleMessage(ctx context.Context, data []byte) {
	s.log.Debugf("Recv: %s", string(data))

	var msg rpcMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		// Malformed lines are rejected at the protocol layer and never
		// reach the tool pipeline.
		s.sink.Append(audit.Entry{
			Message: "Failed to decode JSON from stdin",
			Data:    map[string]any{"line": truncate(string(data), 200)},
		})
		s.sendError(nil, ErrParseError(err.Error()))
		return
	}

	// Check if it's a notification (no ID)
	if msg.ID == nil {
		s.handleNotification(msg.Method, msg.Params)
		return
	}

	// It's a request - handle and respond
	result, rpcErr := s.handleRequest(ctx, msg.Method, msg.Params)
	if rpcErr != nil {
		s.sendError(msg.ID, rpcErr)
	} else {
		s.sendResult(msg.ID, result)
	}
}

// handleRequest processes a JSON-RPC request and returns a result or error.
func (s *Server) handleRequest(ctx context.Context, method string, params json.RawMessage) (any, *RPCError) {
	switch method {
	case "initialize":
		return s.handleInitialize(params)
	case "ping":
		return s.handlePing()
	case "tools/list":
		return s.handleToolsList()
	case "tools/call":
		return s.handleToolsCall(ctx, params)
	default:
		return nil, ErrMethodNotFound(method)
	}
}

// handleNotification processes a JSON-RPC notification.
func (s *Server) handleNotification(method string, params json.RawMessage) {
	switch method {
	case "notifications/initialized":
		s.log.Debug("Client sent initialized notification")
	case "notifications/cancelled":
		// In-flight reviews run to completion; there is no abort path.
		s.log.Debugf("Received cancellation notification: %s", string(params))
	default:
		s.log.Debugf("Unknown notification: %s", method)
	}
}

// handleInitialize handles the initialize request.
func (s *Server) handleInitialize(params json.RawMessage) (any, *RPCError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil, ErrInvalidRequest("already initialized")
	}

	var req initializeRequest
	if params != nil {
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, ErrInvalidParams(err.Error())
		}
	}

	s.log.Infof("Initialize request from %s %s (protocol: %s)",
		req.ClientInfo.Name, req.ClientInfo.Version, req.ProtocolVersion)

	s.initialized = true

	return initializeResult{
		ProtocolVersion: s.opts.ProtocolVersion,
		ServerInfo: serverInfo{
			Name:    s.opts.ServerName,
			Version: s.opts.ServerVersion,
		},
		Capabilities: capabilities{
			Tools: &toolsCapability{},
		},
	}, nil
}

// handlePing handles the ping request.
func (s *Server) handlePing() (any, *RPCError) {
	return struct{}{}, nil
}

// handleToolsList handles the tools/list request. It always succeeds
// and always returns the single peer-review tool.
func (s *Server) handleToolsList() (any, *RPCError) {
	s.mu.RLock()
	initialized := s.initialized
	s.mu.RUnlock()
	if !initialized {
		return nil, ErrInvalidRequest("not initialized")
	}

	return toolsListResult{Tools: []Tool{peerReviewTool()}}, nil
}

// handleToolsCall handles the tools/call request.
func (s *Server) handleToolsCall(ctx context.Context, params json.RawMessage) (any, *RPCError) {
	s.mu.RLock()
	initialized := s.initialized
	s.mu.RUnlock()
	if !initialized {
		return nil, ErrInvalidRequest("not initialized")
	}

	var req toolsCallRequest
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, ErrInvalidParams(err.Error())
	}

	reqID := uuid.NewString()
	s.sink.Append(audit.Entry{
		Message: "Tool call received",
		Data:    map[string]any{"request_id": reqID, "name": req.Name, "args": req.Arguments},
	})

	result := s.runPeerReview(ctx, reqID, req.Name, req.Arguments)

	s.sink.Append(audit.Entry{
		Message: "Sending result back to host",
		Data:    map[string]any{"request_id": reqID, "isError": result.IsError},
	})
	return result, nil
}

// applyReload swaps the review client for one built from the new
// config. Called from the Run goroutine, so it is serialized with
// request handling.
func (s *Server) applyReload(newCfg *config.Config) {
	g := newCfg.Gemini
	s.mu.Lock()
	s.rev = review.NewClient(g.APIKey, g.Model, g.BaseURL)
	s.mu.Unlock()
	s.log.Infof("Config reload applied (model=%s)", g.Model)
}

// watchConfig watches the config file for changes and sends new config
// to reloadCh. It watches the parent directory (not the file) to handle
// atomic renames.
func (s *Server) watchConfig(ctx context.Context, configPath string) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		s.log.Warnf("Failed to create config watcher: %v", err)
		return
	}
	defer watcher.Close()

	dir := filepath.Dir(configPath)
	filename := filepath.Base(configPath)

	if err := watcher.Add(dir); err != nil {
		s.log.Warnf("Failed to watch config directory %s: %v", dir, err)
		return
	}

	s.log.Debugf("Watching config file: %s", configPath)

	// Debounce timer
	const debounceDelay = 150 * time.Millisecond
	var debounceTimer *time.Timer
	var debounceMu sync.Mutex

	triggerReload := func() {
		debounceMu.Lock()
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
		debounceTimer = time.AfterFunc(debounceDelay, func() {
			newCfg, err := config.Load(configPath)
			if err != nil {
				s.log.Warnf("Failed to load config after change: %v (keeping current config)", err)
				return
			}
			select {
			case s.reloadCh <- newCfg:
			default:
				s.log.Debug("Config reload already pending, skipping")
			}
		})
		debounceMu.Unlock()
	}

	for {
		select {
		case <-ctx.Done():
			debounceMu.Lock()
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceMu.Unlock()
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}

			if filepath.Base(event.Name) != filename {
				continue
			}

			// Atomic writes show up as rename/create depending on OS/editor
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				s.log.Debugf("Config file event: %s (%s)", event.Name, event.Op)
				triggerReload()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.log.Warnf("Config watcher error: %v", err)
		}
	}
}

// sendResult sends a successful JSON-RPC response.
func (s *Server) sendResult(id json.RawMessage, result any) {
	resultJSON, _ := json.Marshal(result)
	resp := rpcResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result:  resultJSON,
	}
	s.send(resp)
}

// sendError sends a JSON-RPC error response.
func (s *Server) sendError(id json.RawMessage, rpcErr *RPCError) {
	resp := rpcResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   rpcErr,
	}
	s.send(resp)
}

// send writes a JSON-RPC message to the output stream.
func (s *Server) send(msg any) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	data, err := json.Marshal(msg)
	if err != nil {
		s.log.Errorf("Failed to marshal response: %v", err)
		return
	}

	s.log.Debugf("Send: %s", string(data))

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}

// JSON-RPC message types

type rpcMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

type initializeRequest struct {
	ProtocolVersion string     `json:"protocolVersion"`
	Capabilities    any        `json:"capabilities"`
	ClientInfo      clientInfo `json:"clientInfo"`
}

type clientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type initializeResult struct {
	ProtocolVersion string       `json:"protocolVersion"`
	ServerInfo      serverInfo   `json:"serverInfo"`
	Capabilities    capabilities `json:"capabilities"`
}

type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type capabilities struct {
	Tools *toolsCapability `json:"tools,omitempty"`
}

type toolsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

type toolsListResult struct {
	Tools []Tool `json:"tools"`
}

type toolsCallRequest struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}
