package mcpserver

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/mnemotree/mnemocore/internal/logging"
	"github.com/mnemotree/mnemocore/internal/mnemo"
)

const (
	ProtocolVersion = "2024-11-05"
	ServerName      = "mnemocore"
	ServerVersion   = "0.1.0"
)

// Server implements an MCP server over stdio, backed by a
// mnemo.Service.
type Server struct {
	svc *mnemo.Service
	log *logging.Logger

	stdin  io.Reader
	stdout io.Writer

	mu          sync.Mutex
	initialized bool
}

// NewServer builds a Server around svc, reading requests from stdin
// and writing responses to stdout.
func NewServer(svc *mnemo.Service) *Server {
	return &Server{
		svc:    svc,
		log:    logging.GetLogger("mcpserver"),
		stdin:  os.Stdin,
		stdout: os.Stdout,
	}
}

// Run reads newline-delimited JSON-RPC requests from stdin until ctx
// is cancelled or stdin closes.
func (s *Server) Run(ctx context.Context) error {
	s.log.Info("starting MCP server main loop")
	scanner := bufio.NewScanner(s.stdin)
	scanner.Buffer(make([]byte, 1024*1024), 10*1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			s.log.Info("context cancelled, shutting down")
			return ctx.Err()
		default:
		}

		line := scanner.Text()
		if line == "" {
			continue
		}

		if response := s.handleRequest(ctx, line); response != nil {
			s.sendResponse(response)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}
	s.log.Info("MCP server shutdown complete")
	return nil
}

func (s *Server) sendResponse(resp *Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.log.Error("failed to marshal response", "err", err)
		return
	}
	fmt.Fprintln(s.stdout, string(data))
}

func (s *Server) handleRequest(ctx context.Context, line string) *Response {
	var req Request
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		return &Response{JSONRPC: "2.0", Error: &RPCError{Code: ParseError, Message: "Parse error", Data: err.Error()}}
	}

	if req.JSONRPC != "2.0" {
		return &Response{JSONRPC: "2.0", ID: req.ID, Error: &RPCError{Code: InvalidRequest, Message: "Invalid Request", Data: "jsonrpc must be '2.0'"}}
	}

	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "initialized":
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	case "ping":
		return &Response{JSONRPC: "2.0", ID: req.ID, Result: map[string]interface{}{}}
	default:
		return &Response{JSONRPC: "2.0", ID: req.ID, Error: &RPCError{Code: MethodNotFound, Message: "Method not found", Data: req.Method}}
	}
}

func (s *Server) handleInitialize(req Request) *Response {
	s.mu.Lock()
	s.initialized = true
	s.mu.Unlock()

	return &Response{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: InitializeResult{
			ProtocolVersion: ProtocolVersion,
			Capabilities:    ServerCapabilities{Tools: &ToolsCapability{ListChanged: false}},
			ServerInfo: ServerInfo{
				Name:        ServerName,
				Version:     ServerVersion,
				Description: "Long-term memory service for conversational agents",
			},
		},
	}
}

func (s *Server) handleToolsList(req Request) *Response {
	return &Response{JSONRPC: "2.0", ID: req.ID, Result: ToolsListResult{Tools: toolDefinitions()}}
}

func (s *Server) handleToolsCall(ctx context.Context, req Request) *Response {
	var params CallToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return &Response{JSONRPC: "2.0", ID: req.ID, Error: &RPCError{Code: InvalidParams, Message: "Invalid params", Data: err.Error()}}
	}

	argsJSON, err := json.Marshal(params.Arguments)
	if err != nil {
		return &Response{JSONRPC: "2.0", ID: req.ID, Error: &RPCError{Code: InvalidParams, Message: "Invalid params", Data: err.Error()}}
	}

	start := time.Now()
	text, callErr := s.callTool(ctx, params.Name, argsJSON)
	duration := time.Since(start)

	if callErr != nil {
		s.log.LogError("tool_call", callErr, "tool", params.Name, "duration_ms", duration.Seconds()*1000)
		return &Response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result: CallToolResult{
				Content: []ContentBlock{{Type: "text", Text: fmt.Sprintf("error: %v", callErr)}},
				IsError: true,
			},
		}
	}

	s.log.LogResponse("tools/call", duration.Seconds()*1000, "tool", params.Name)
	return &Response{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  CallToolResult{Content: []ContentBlock{{Type: "text", Text: text}}},
	}
}
