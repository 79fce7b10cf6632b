package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"askbridge/internal/logging"
	"askbridge/internal/protocol"
)

const maxLoggedFrame = 200

// Questioner is the question/answer service the tools delegate to.
type Questioner interface {
	Ask(ctx context.Context, text string) (string, error)
	Notify(ctx context.Context, text string) error
	SendFile(ctx context.Context, path string) error
}

// ServerOptions for running the stdio MCP server.
type ServerOptions struct {
	Service Questioner
	Version string
	// ProjectDir is the default zip_project directory and the base for
	// relative send_file paths.
	ProjectDir      string
	Excludes        []string
	MaxArchiveBytes int64
	MaxUploadBytes  int64
	Logger          *slog.Logger
}

// Server reads newline-delimited JSON-RPC requests and writes one response
// line per request. Every request runs on its own goroutine, so a pending
// ask_user never stalls intake.
type Server struct {
	opts  ServerOptions
	tools map[string]toolDefinition
	log   *slog.Logger

	writeMu sync.Mutex
	out     io.Writer

	inflight sync.WaitGroup
}

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`

	// Set only when the peer sent a response frame.
	Result json.RawMessage `json:"result,omitempty"`
	Error  json.RawMessage `json:"error,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type initializeParams struct {
	ProtocolVersion string `json:"protocolVersion"`
}

func NewServer(opts ServerOptions) *Server {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	s := &Server{
		opts: opts,
		log:  log.With("component", "mcp"),
	}
	s.tools = s.buildToolRegistry()
	return s
}

// Serve processes frames from in until in is exhausted or ctx ends. It does
// not wait for in-flight requests; call Wait for that.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	s.out = out

	type frameResult struct {
		frame []byte
		err   error
	}
	frames := make(chan frameResult)
	go func() {
		reader := bufio.NewReader(in)
		for {
			line, err := reader.ReadBytes('\n')
			if len(line) > 0 {
				select {
				case frames <- frameResult{frame: line}:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				select {
				case frames <- frameResult{err: err}:
				case <-ctx.Done():
				}
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fr := <-frames:
			if fr.err != nil {
				if errors.Is(fr.err, io.EOF) {
					s.log.Info("input closed")
					return nil
				}
				return fmt.Errorf("read frame: %w", fr.err)
			}
			s.handleFrame(ctx, fr.frame)
		}
	}
}

// Wait blocks until all in-flight requests have written their responses or
// ctx ends.
func (s *Server) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) handleFrame(ctx context.Context, frame []byte) {
	frame = trimFrame(frame)
	if len(frame) == 0 {
		return
	}

	var req rpcRequest
	if err := json.Unmarshal(frame, &req); err != nil {
		s.log.Warn("dropping malformed frame", "error", err, "frame", truncate(string(frame), maxLoggedFrame))
		return
	}
	if isNotification(req.ID) {
		s.handleNotification(req)
		return
	}
	if req.Method == "" {
		if len(req.Result) > 0 || len(req.Error) > 0 {
			s.log.Debug("ignoring response frame", "id", string(req.ID))
			return
		}
		s.log.Warn("request without method", "id", string(req.ID))
		s.writeResponse(rpcResponse{
			JSONRPC: protocol.JSONRPCVersion,
			ID:      req.ID,
			Error:   &rpcError{Code: protocol.ErrCodeInvalidRequest, Message: "invalid request: method is required"},
		})
		return
	}

	reqCtx := logging.WithFields(ctx, logging.Fields{RPCID: string(req.ID), Method: req.Method})
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		s.handleRequest(reqCtx, req)
	}()
}

func (s *Server) handleNotification(req rpcRequest) {
	switch req.Method {
	case protocol.MethodInitialized:
		s.log.Debug("client initialized")
	default:
		s.log.Debug("ignoring notification", "method", req.Method)
	}
}

func (s *Server) handleRequest(ctx context.Context, req rpcRequest) {
	defer func() {
		if r := recover(); r != nil {
			s.log.ErrorContext(ctx, "request handler panicked", "panic", r)
			s.writeResponse(rpcResponse{
				JSONRPC: protocol.JSONRPCVersion,
				ID:      req.ID,
				Error:   &rpcError{Code: protocol.ErrCodeToolFailure, Message: fmt.Sprintf("internal error: %v", r)},
			})
		}
	}()

	result, rpcErr := s.dispatch(ctx, req)
	resp := rpcResponse{JSONRPC: protocol.JSONRPCVersion, ID: req.ID}
	if rpcErr != nil {
		resp.Error = rpcErr
	} else {
		resp.Result = result
	}
	s.writeResponse(resp)
}

func (s *Server) dispatch(ctx context.Context, req rpcRequest) (interface{}, *rpcError) {
	switch req.Method {
	case protocol.MethodInitialize:
		return s.initializeResult(req.Params), nil
	case protocol.MethodPing:
		return struct{}{}, nil
	case protocol.MethodToolsList:
		return map[string]interface{}{"tools": s.toolList()}, nil
	case protocol.MethodToolsCall:
		return s.processToolsCall(ctx, req.Params)
	default:
		return nil, &rpcError{
			Code:    protocol.ErrCodeMethodNotFound,
			Message: "method not found: " + req.Method,
		}
	}
}

func (s *Server) initializeResult(raw json.RawMessage) map[string]interface{} {
	version := protocol.DefaultProtocolVersion
	if len(raw) > 0 {
		var params initializeParams
		if err := json.Unmarshal(raw, &params); err == nil && params.ProtocolVersion != "" {
			version = params.ProtocolVersion
		}
	}
	return map[string]interface{}{
		"protocolVersion": version,
		"serverInfo": map[string]interface{}{
			"name":    protocol.ServerName,
			"version": s.opts.Version,
		},
		"capabilities": map[string]interface{}{
			"tools": map[string]interface{}{},
		},
	}
}

func (s *Server) writeResponse(resp rpcResponse) {
	payload, err := json.Marshal(resp)
	if err != nil {
		s.log.Error("marshal response", "error", err, "id", string(resp.ID))
		return
	}
	payload = append(payload, '\n')

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.out == nil {
		return
	}
	if _, err := s.out.Write(payload); err != nil {
		s.log.Error("write response", "error", err, "id", string(resp.ID))
	}
}

func isNotification(id json.RawMessage) bool {
	return len(id) == 0 || string(id) == "null"
}

func trimFrame(frame []byte) []byte {
	for len(frame) > 0 {
		switch frame[len(frame)-1] {
		case '\n', '\r', ' ', '\t':
			frame = frame[:len(frame)-1]
			continue
		}
		break
	}
	for len(frame) > 0 && (frame[0] == ' ' || frame[0] == '\t') {
		frame = frame[1:]
	}
	return frame
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func elapsedMillis(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
