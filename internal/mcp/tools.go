package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/invopop/jsonschema"

	"askbridge/internal/archive"
	"askbridge/internal/logging"
	"askbridge/internal/model"
	"askbridge/internal/protocol"
)

var toolOrder = []string{
	protocol.ToolNameAskUser,
	protocol.ToolNameNotifyUser,
	protocol.ToolNameSendFile,
	protocol.ToolNameZipProject,
}

type toolHandler func(context.Context, json.RawMessage) (string, error)

type toolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
	handler     toolHandler     `json:"-"`
}

type toolsCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

type toolCallResult struct {
	Content []toolContentItem `json:"content"`
}

type toolContentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type askUserArgs struct {
	Question string `json:"question" jsonschema:"description=The question to send to the user. Blocks until the user replies."`
}

type notifyUserArgs struct {
	Message string `json:"message" jsonschema:"description=Message to send to the user. Does not wait for a reply."`
}

type sendFileArgs struct {
	FilePath string `json:"filePath" jsonschema:"description=Path of the file to send. Relative paths resolve against the project directory."`
}

type zipProjectArgs struct {
	Directory string `json:"directory,omitempty" jsonschema:"description=Directory to archive. Defaults to the project directory."`
}

func (s *Server) buildToolRegistry() map[string]toolDefinition {
	return map[string]toolDefinition{
		protocol.ToolNameAskUser: {
			Name:        protocol.ToolNameAskUser,
			Description: "Ask the user a question over chat and wait for the answer.",
			InputSchema: generateSchema[askUserArgs](),
			handler:     s.handleAskUser,
		},
		protocol.ToolNameNotifyUser: {
			Name:        protocol.ToolNameNotifyUser,
			Description: "Send the user a chat message without waiting for a reply.",
			InputSchema: generateSchema[notifyUserArgs](),
			handler:     s.handleNotifyUser,
		},
		protocol.ToolNameSendFile: {
			Name:        protocol.ToolNameSendFile,
			Description: "Send a file to the user as a chat document.",
			InputSchema: generateSchema[sendFileArgs](),
			handler:     s.handleSendFile,
		},
		protocol.ToolNameZipProject: {
			Name:        protocol.ToolNameZipProject,
			Description: "Zip a project directory and send the archive to the user.",
			InputSchema: generateSchema[zipProjectArgs](),
			handler:     s.handleZipProject,
		},
	}
}

func (s *Server) toolList() []toolDefinition {
	tools := make([]toolDefinition, 0, len(s.tools))
	for _, name := range toolOrder {
		if tool, ok := s.tools[name]; ok {
			tools = append(tools, tool)
		}
	}
	return tools
}

func (s *Server) processToolsCall(ctx context.Context, rawParams json.RawMessage) (interface{}, *rpcError) {
	params, err := parseToolsCallParams(rawParams)
	if err != nil {
		return nil, &rpcError{Code: protocol.ErrCodeInvalidParams, Message: err.Error()}
	}

	tool, ok := s.tools[params.Name]
	if !ok {
		return nil, &rpcError{
			Code:    protocol.ErrCodeToolFailure,
			Message: fmt.Sprintf("unknown tool: %s", params.Name),
		}
	}

	ctx = logging.WithFields(ctx, logging.Fields{Tool: params.Name})
	start := time.Now()
	text, err := tool.handler(ctx, params.Arguments)
	if err != nil {
		s.log.WarnContext(ctx, "tool failed", "error", err, "elapsed_ms", elapsedMillis(start))
		return nil, &rpcError{Code: protocol.ErrCodeToolFailure, Message: err.Error()}
	}
	s.log.InfoContext(ctx, "tool completed", "elapsed_ms", elapsedMillis(start))

	return toolCallResult{Content: []toolContentItem{{Type: "text", Text: text}}}, nil
}

func parseToolsCallParams(raw json.RawMessage) (toolsCallParams, error) {
	if len(raw) == 0 {
		return toolsCallParams{}, errors.New("params is required")
	}

	var params toolsCallParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return toolsCallParams{}, errors.New("invalid tools/call params")
	}

	params.Name = strings.TrimSpace(params.Name)
	if params.Name == "" {
		return toolsCallParams{}, errors.New("tools/call params.name is required")
	}
	if len(params.Arguments) == 0 || string(params.Arguments) == "null" {
		params.Arguments = json.RawMessage(`{}`)
	}
	return params, nil
}

func decodeArgs[T any](tool string, raw json.RawMessage) (T, error) {
	var args T
	if err := json.Unmarshal(raw, &args); err != nil {
		return args, &model.ToolError{Tool: tool, Message: "invalid arguments", Cause: err}
	}
	return args, nil
}

func (s *Server) handleAskUser(ctx context.Context, raw json.RawMessage) (string, error) {
	args, err := decodeArgs[askUserArgs](protocol.ToolNameAskUser, raw)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(args.Question) == "" {
		return "", &model.ToolError{Tool: protocol.ToolNameAskUser, Message: "question is required"}
	}
	answer, err := s.opts.Service.Ask(ctx, args.Question)
	if err != nil {
		return "", &model.ToolError{Tool: protocol.ToolNameAskUser, Cause: err}
	}
	return answer, nil
}

func (s *Server) handleNotifyUser(ctx context.Context, raw json.RawMessage) (string, error) {
	args, err := decodeArgs[notifyUserArgs](protocol.ToolNameNotifyUser, raw)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(args.Message) == "" {
		return "", &model.ToolError{Tool: protocol.ToolNameNotifyUser, Message: "message is required"}
	}
	if err := s.opts.Service.Notify(ctx, args.Message); err != nil {
		return "", &model.ToolError{Tool: protocol.ToolNameNotifyUser, Cause: err}
	}
	return "Message sent.", nil
}

func (s *Server) handleSendFile(ctx context.Context, raw json.RawMessage) (string, error) {
	args, err := decodeArgs[sendFileArgs](protocol.ToolNameSendFile, raw)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(args.FilePath) == "" {
		return "", &model.ToolError{Tool: protocol.ToolNameSendFile, Message: "filePath is required"}
	}

	path := s.resolvePath(args.FilePath)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", &model.ToolError{Tool: protocol.ToolNameSendFile, Message: "file not found: " + path}
		}
		return "", &model.ToolError{Tool: protocol.ToolNameSendFile, Message: "stat " + path, Cause: err}
	}
	if !info.Mode().IsRegular() {
		return "", &model.ToolError{Tool: protocol.ToolNameSendFile, Message: "not a regular file: " + path}
	}
	if s.opts.MaxUploadBytes > 0 && info.Size() > s.opts.MaxUploadBytes {
		msg := fmt.Sprintf("file too large: %s exceeds limit %s",
			humanize.Bytes(uint64(info.Size())), humanize.Bytes(uint64(s.opts.MaxUploadBytes)))
		return "", &model.ToolError{Tool: protocol.ToolNameSendFile, Message: msg}
	}

	if err := s.opts.Service.SendFile(ctx, path); err != nil {
		return "", &model.ToolError{Tool: protocol.ToolNameSendFile, Cause: err}
	}
	return fmt.Sprintf("Sent %s (%s).", filepath.Base(path), humanize.Bytes(uint64(info.Size()))), nil
}

func (s *Server) handleZipProject(ctx context.Context, raw json.RawMessage) (string, error) {
	args, err := decodeArgs[zipProjectArgs](protocol.ToolNameZipProject, raw)
	if err != nil {
		return "", err
	}
	dir := s.opts.ProjectDir
	if strings.TrimSpace(args.Directory) != "" {
		dir = s.resolvePath(args.Directory)
	}
	if dir == "" {
		dir = "."
	}

	res, err := archive.ZipDir(dir, archive.Options{
		Excludes: s.opts.Excludes,
		MaxBytes: s.opts.MaxArchiveBytes,
	})
	if err != nil {
		return "", &model.ToolError{Tool: protocol.ToolNameZipProject, Cause: err}
	}
	defer func() {
		if rmErr := os.Remove(res.Path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			s.log.WarnContext(ctx, "remove archive", "path", res.Path, "error", rmErr)
		}
	}()

	if err := s.opts.Service.SendFile(ctx, res.Path); err != nil {
		return "", &model.ToolError{Tool: protocol.ToolNameZipProject, Cause: err}
	}
	return "Sent " + res.String() + ".", nil
}

func (s *Server) resolvePath(p string) string {
	p = strings.TrimSpace(p)
	if filepath.IsAbs(p) || s.opts.ProjectDir == "" {
		return filepath.Clean(p)
	}
	return filepath.Join(s.opts.ProjectDir, p)
}

// generateSchema reflects a tool's argument struct into an inline JSON
// schema. Fields without omitempty are required.
func generateSchema[T any]() json.RawMessage {
	reflector := &jsonschema.Reflector{
		Anonymous:      true,
		DoNotReference: true,
		ExpandedStruct: true,
	}

	var zero T
	schema := reflector.Reflect(zero)
	schema.Version = ""

	data, err := json.Marshal(schema)
	if err != nil {
		panic(fmt.Sprintf("generate schema for %T: %v", zero, err))
	}
	return json.RawMessage(data)
}
