// ABOUTME: MCP method routing shared by the stream and HTTP transports.
// ABOUTME: Handles the protocol handshake, capability discovery and tool dispatch.

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/uavcrew/compliance-gateway/internal/auth"
	"github.com/uavcrew/compliance-gateway/internal/dispatch"
)

// ProtocolVersion is the MCP protocol version advertised by initialize.
const ProtocolVersion = "2025-11-25"

// MaxRequestBodySize is the default limit for one request body (1MB).
const MaxRequestBodySize = 1 << 20

// ToolInfo is an MCP tool definition.
type ToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// ListToolsResult is the result for tools/list.
type ListToolsResult struct {
	Tools []ToolInfo `json:"tools"`
}

// CallToolResult is the result for tools/call.
type CallToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

// Content is one content block of a tool result.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Config holds configuration for the MCP server.
type Config struct {
	Dispatcher *dispatch.Dispatcher
	// Gate guards the HTTP transport. A nil Gate rejects every HTTP request.
	Gate         *auth.Gate
	Logger       *slog.Logger
	Name         string
	Version      string
	MaxBodyBytes int64
}

// Server routes MCP methods to the dispatcher and serves both transports.
type Server struct {
	dispatcher   *dispatch.Dispatcher
	gate         *auth.Gate
	logger       *slog.Logger
	name         string
	version      string
	maxBodyBytes int64
}

// NewServer creates a new MCP server with the given configuration.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	name := cfg.Name
	if name == "" {
		name = "compliance-gateway"
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = MaxRequestBodySize
	}

	return &Server{
		dispatcher:   cfg.Dispatcher,
		gate:         cfg.Gate,
		logger:       logger.With("component", "mcp"),
		name:         name,
		version:      version,
		maxBodyBytes: maxBody,
	}, nil
}

// Handle routes one decoded request. Protocol methods are answered here;
// any other method is dispatched as a tool name.
func (s *Server) Handle(ctx context.Context, req *Request) dispatch.Result {
	switch req.Method {
	case "initialize":
		return dispatch.Success(s.initializeResult())
	case "ping":
		return dispatch.Success(map[string]any{})
	case "tools/list":
		return dispatch.Success(s.listTools())
	case "tools/call":
		return s.callTool(ctx, req.Params)
	default:
		return s.dispatcher.Invoke(ctx, req.Method, req.Params)
	}
}

// respond decodes data, handles it and encodes the reply. It returns nil for
// notifications, which get no reply.
func (s *Server) respond(ctx context.Context, data []byte) []byte {
	req, err := Decode(data)
	if err != nil {
		var pe *ParseError
		if !errors.As(err, &pe) {
			pe = &ParseError{Reason: err.Error()}
		}
		s.logger.Debug("rejecting malformed request", "reason", pe.Reason)
		return EncodeError(pe.ID, dispatch.CodeParseError, "Parse error: "+pe.Reason)
	}

	if req.IsNotification() {
		if strings.HasPrefix(req.Method, "notifications/") {
			s.logger.Debug("accepted MCP notification", "method", req.Method)
			return nil
		}
		// Executed for side effects; the outcome has nowhere to go
		r := s.Handle(ctx, req)
		s.logger.Debug("notification dispatched", "method", req.Method, "failed", r.Failed())
		return nil
	}

	result := s.Handle(ctx, req)
	out, err := Encode(req.ID, result)
	if err != nil {
		s.logger.Error("failed to encode JSON-RPC response", "method", req.Method, "error", err)
		return EncodeError(req.ID, dispatch.CodeInternalError, "Internal error: result could not be encoded")
	}
	return out
}

func (s *Server) initializeResult() map[string]any {
	return map[string]any{
		"protocolVersion": ProtocolVersion,
		"capabilities": map[string]any{
			"tools": map[string]any{},
		},
		"serverInfo": map[string]any{
			"name":    s.name,
			"version": s.version,
		},
	}
}

func (s *Server) listTools() ListToolsResult {
	reg := s.dispatcher.Registry()
	result := ListToolsResult{Tools: make([]ToolInfo, 0, reg.Len())}
	for tool := range reg.List() {
		result.Tools = append(result.Tools, ToolInfo{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.InputSchema(),
		})
	}
	return result
}

// callTool handles tools/call. Successful payloads are wrapped as MCP text
// content holding the payload's indented JSON.
func (s *Server) callTool(ctx context.Context, params map[string]any) dispatch.Result {
	name, _ := params["name"].(string)
	if name == "" {
		return dispatch.Fail(dispatch.CodeInvalidParams, "name: tool name is required")
	}

	var args map[string]any
	switch a := params["arguments"].(type) {
	case nil:
	case map[string]any:
		args = a
	default:
		return dispatch.Fail(dispatch.CodeInvalidParams, "arguments: expected object")
	}

	result := s.dispatcher.Invoke(ctx, name, args)
	if result.Failed() {
		return result
	}

	text, err := json.MarshalIndent(result.Payload(), "", "  ")
	if err != nil {
		s.logger.Error("failed to encode tool payload", "tool_name", name, "error", err)
		return dispatch.Fail(dispatch.CodeInternalError, "Internal error: result could not be encoded")
	}
	return dispatch.Success(CallToolResult{
		Content: []Content{{Type: "text", Text: string(text)}},
	})
}
