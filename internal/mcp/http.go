// ABOUTME: HTTP transport: chi router exposing health, JSON-RPC and plain tool endpoints.
// ABOUTME: Every /mcp route sits behind the auth gate.

package mcp

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/uavcrew/compliance-gateway/internal/auth"
	"github.com/uavcrew/compliance-gateway/internal/dispatch"
)

// HTTPHandler returns the root handler for the HTTP transport.
func (s *Server) HTTPHandler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Route("/mcp", func(r chi.Router) {
		r.Use(s.authenticate)
		r.Post("/", s.handleRPC)
		r.Get("/tools", s.handleListTools)
		r.Post("/tools/call", s.handleToolCall)
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
			"remote", r.RemoteAddr,
		)
	})
}

// authenticate runs the gate and attaches the AuthContext. Without a gate
// every request is rejected.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.gate == nil {
			s.logger.Warn("rejecting request: no auth gate configured", "remote", r.RemoteAddr)
			writeUnauthorized(w)
			return
		}
		ac, err := s.gate.Authenticate(r)
		if err != nil {
			writeUnauthorized(w)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithAuth(r.Context(), ac)))
	})
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="compliance-gateway"`)
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write(EncodeError(nil, dispatch.CodeUnauthorized, "Unauthorized: invalid or missing API key"))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": s.name,
		"version": s.version,
	})
}

// handleRPC serves one JSON-RPC envelope per POST body.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.logger.Warn("request body too large", "limit", tooLarge.Limit, "remote", r.RemoteAddr)
			writeRaw(w, http.StatusOK, EncodeError(nil, dispatch.CodeInvalidRequest, "Invalid request: body too large"))
			return
		}
		writeRaw(w, http.StatusOK, EncodeError(nil, dispatch.CodeParseError, "Parse error: failed to read request body"))
		return
	}

	reply := s.respond(r.Context(), body)
	if reply == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	writeRaw(w, http.StatusOK, reply)
}

func (s *Server) handleListTools(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.listTools())
}

// ToolCallRequest is the body of POST /mcp/tools/call.
type ToolCallRequest struct {
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
}

type toolCallFailure struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// handleToolCall is the plain HTTP/JSON tool interface. It answers with the
// raw payload on success and {success: false, error} otherwise.
func (s *Server) handleToolCall(w http.ResponseWriter, r *http.Request) {
	var req ToolCallRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, toolCallFailure{Error: "invalid request body"})
		return
	}
	if req.Tool == "" {
		writeJSON(w, http.StatusBadRequest, toolCallFailure{Error: "Missing required field: tool"})
		return
	}

	result := s.dispatcher.Invoke(r.Context(), req.Tool, req.Arguments)
	if f := result.Failure(); f != nil {
		msg := f.Message
		if f.Code == dispatch.CodeMethodNotFound {
			msg = "Unknown tool: " + req.Tool
		}
		writeJSON(w, http.StatusOK, toolCallFailure{Error: msg})
		return
	}
	writeJSON(w, http.StatusOK, result.Payload())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeRaw(w, status, data)
}

func writeRaw(w http.ResponseWriter, status int, data []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
