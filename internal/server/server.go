package server

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/triage-ai/deskgate/internal/audit"
	"github.com/triage-ai/deskgate/internal/protocol"
	"github.com/triage-ai/deskgate/internal/providers"
	"github.com/triage-ai/deskgate/internal/registry"
	"github.com/triage-ai/deskgate/internal/safety"
)

// State tracks the dispatcher lifecycle.
type State int32

const (
	StateUninitialized State = iota
	StateReady
	StateServingRequest
	StateShuttingDown
)

// maxLineBytes bounds a single inbound envelope. Screenshots travel the
// other way, so requests stay small.
const maxLineBytes = 10 * 1024 * 1024

const protocolVersion = "2024-11-05"

// Config carries the server identity reported in the initialize handshake.
type Config struct {
	Name    string
	Version string
}

// Server is the protocol dispatcher: it owns the request lifecycle, holds
// non-owning references to the provider bundle, and never constructs
// providers itself.
type Server struct {
	registry  *registry.Registry
	validator *safety.Validator
	bundle    *providers.Bundle
	writer    audit.EventWriter
	logger    *zap.Logger
	cfg       Config
	state     atomic.Int32
}

// New creates a Server with all collaborators injected. Test doubles go in
// here; nothing downstream branches on a test flag.
func New(
	reg *registry.Registry,
	validator *safety.Validator,
	bundle *providers.Bundle,
	writer audit.EventWriter,
	logger *zap.Logger,
	cfg Config,
) *Server {
	if cfg.Name == "" {
		cfg.Name = "deskgate"
	}
	if cfg.Version == "" {
		cfg.Version = "1.0.0"
	}
	return &Server{
		registry:  reg,
		validator: validator,
		bundle:    bundle,
		writer:    writer,
		logger:    logger,
		cfg:       cfg,
	}
}

// CurrentState returns the dispatcher state.
func (s *Server) CurrentState() State {
	return State(s.state.Load())
}

// Serve reads one JSON envelope per line from r and writes one response per
// request to w, strictly in arrival order. The loop ends when r reaches EOF
// or ctx is cancelled; no request error ever ends it. A transport closed
// mid-wait cancels the in-flight handler via the derived context.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The reader goroutine feeds a buffered channel so it can observe EOF
	// (and cancel the in-flight request) even while a handler is blocking.
	lines := make(chan []byte, 64)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
		for scanner.Scan() {
			line := make([]byte, len(scanner.Bytes()))
			copy(line, scanner.Bytes())
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		cancel()
	}()

	process := func(line []byte) error {
		if len(line) == 0 {
			return nil
		}
		resp := s.Handle(ctx, line)
		if resp == nil {
			return nil
		}
		if err := writeResponse(w, resp); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
		return nil
	}

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				s.state.Store(int32(StateShuttingDown))
				s.logger.Info("transport closed, shutting down")
				return nil
			}
			if err := process(line); err != nil {
				s.state.Store(int32(StateShuttingDown))
				return err
			}
		case <-ctx.Done():
			// Requests already queued when the transport closed still get
			// answered before the loop exits; their handlers see the
			// cancelled context, so none of them can block shutdown.
			for {
				select {
				case line, ok := <-lines:
					if !ok {
						s.state.Store(int32(StateShuttingDown))
						s.logger.Info("transport closed, shutting down")
						return nil
					}
					if err := process(line); err != nil {
						s.state.Store(int32(StateShuttingDown))
						return err
					}
				default:
					s.state.Store(int32(StateShuttingDown))
					s.logger.Info("context cancelled, shutting down")
					return nil
				}
			}
		}
	}
}

func writeResponse(w io.Writer, resp *protocol.Response) error {
	data, err := protocol.Marshal(resp)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err = w.Write([]byte("\n"))
	return err
}

// rawEnvelope distinguishes an absent id from an explicit null one.
type rawEnvelope struct {
	JSONRPC string              `json:"jsonrpc"`
	ID      protocol.RawMessage `json:"id"`
	Method  string              `json:"method"`
	Params  protocol.RawMessage `json:"params"`
}

// Handle processes one raw envelope and returns the response, or nil for
// notifications. Exported so tests can drive the dispatcher without a
// transport. It must never panic: malformed input is a ProtocolError, a
// handler panic is an ExecutionError.
func (s *Server) Handle(ctx context.Context, raw []byte) *protocol.Response {
	var env rawEnvelope
	if err := protocol.Unmarshal(raw, &env); err != nil {
		s.logger.Warn("malformed envelope", zap.Error(err))
		return protocol.ErrResponse(nil, protocol.CodeParseError, protocol.ErrProtocol,
			"parse error: invalid JSON envelope")
	}

	if env.JSONRPC != protocol.Version {
		return protocol.ErrResponse(nil, protocol.CodeInvalidRequest, protocol.ErrProtocol,
			fmt.Sprintf("unsupported jsonrpc version %q", env.JSONRPC))
	}
	if env.Method == "" {
		return protocol.ErrResponse(decodeID(env.ID), protocol.CodeInvalidRequest, protocol.ErrProtocol,
			"missing method")
	}

	// No id at all: a notification. Processed for side effects only, never
	// answered. Raw-message decoding collapses an explicit null to an empty
	// value, so absence is settled by the envelope keys, not the bytes.
	if len(env.ID) == 0 || string(env.ID) == "null" {
		if !envelopeHasID(raw) {
			s.handleNotification(env.Method)
			return nil
		}
		return protocol.ErrResponse(nil, protocol.CodeInvalidRequest, protocol.ErrProtocol,
			"request id must not be null")
	}
	id := decodeID(env.ID)

	switch env.Method {
	case "initialize":
		return s.handleInitialize(id)
	case "tools/list":
		if resp := s.requireReady(id); resp != nil {
			return resp
		}
		return protocol.OKResponse(id, protocol.ListToolsResult{Tools: s.registry.ToolInfos()})
	case "tools/call":
		if resp := s.requireReady(id); resp != nil {
			return resp
		}
		s.state.Store(int32(StateServingRequest))
		defer s.state.Store(int32(StateReady))
		return s.handleToolCall(ctx, id, env.Params)
	default:
		return protocol.ErrResponse(id, protocol.CodeMethodNotFound, protocol.ErrProtocol,
			fmt.Sprintf("unknown method %q", env.Method))
	}
}

func envelopeHasID(raw []byte) bool {
	var fields map[string]protocol.RawMessage
	if err := protocol.Unmarshal(raw, &fields); err != nil {
		return false
	}
	_, ok := fields["id"]
	return ok
}

func decodeID(raw protocol.RawMessage) any {
	var id any
	if err := protocol.Unmarshal(raw, &id); err != nil {
		return nil
	}
	return id
}

func (s *Server) handleNotification(method string) {
	// The MCP handshake sends notifications/initialized after initialize;
	// nothing to do for it or any other notification.
	s.logger.Debug("notification received", zap.String("method", method))
}

func (s *Server) handleInitialize(id any) *protocol.Response {
	s.state.CompareAndSwap(int32(StateUninitialized), int32(StateReady))
	return protocol.OKResponse(id, protocol.InitializeResult{
		ProtocolVersion: protocolVersion,
		Capabilities:    map[string]any{"tools": map[string]any{}},
		ServerInfo: protocol.ServerInfo{
			Name:    s.cfg.Name,
			Version: s.cfg.Version,
		},
	})
}

func (s *Server) requireReady(id any) *protocol.Response {
	switch s.CurrentState() {
	case StateReady, StateServingRequest:
		return nil
	default:
		return protocol.ErrResponse(id, protocol.CodeInvalidRequest, protocol.ErrProtocol,
			"server not initialized")
	}
}

// SafetyNote reports a Redact verdict attached to a successful result.
type SafetyNote struct {
	Field       string `json:"field"`
	Category    string `json:"category"`
	RuleID      string `json:"rule_id"`
	Explanation string `json:"explanation"`
}

// ToolError is the structured error inside a failed ToolResult.
type ToolError struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category,omitempty"`
	RuleID   string `json:"rule_id,omitempty"`
	Field    string `json:"field,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

// ToolResult is the tools/call result envelope. Created per request, never
// reused.
type ToolResult struct {
	Success bool         `json:"success"`
	Payload any          `json:"payload,omitempty"`
	Safety  []SafetyNote `json:"safety_notes,omitempty"`
	Error   *ToolError   `json:"error,omitempty"`
}

func (s *Server) handleToolCall(ctx context.Context, id any, params protocol.RawMessage) *protocol.Response {
	start := time.Now()

	if len(params) == 0 {
		return protocol.ErrResponse(id, protocol.CodeInvalidParams, protocol.ErrProtocol,
			"missing params for tools/call")
	}
	var call protocol.CallParams
	if err := protocol.Unmarshal(params, &call); err != nil {
		return protocol.ErrResponse(id, protocol.CodeInvalidParams, protocol.ErrProtocol,
			"params must be an object with name and arguments")
	}
	if call.Name == "" {
		return protocol.ErrResponse(id, protocol.CodeInvalidParams, protocol.ErrProtocol,
			"missing tool name")
	}

	tool := s.registry.Get(call.Name)
	if tool == nil {
		return protocol.ErrResponse(id, protocol.CodeMethodNotFound, protocol.ErrToolNotFound,
			fmt.Sprintf("unknown tool %q", call.Name))
	}

	event := &audit.ToolCallEvent{
		RequestID: uuid.New().String(),
		Timestamp: start,
		ToolName:  tool.Name,
		ArgsHash:  audit.HashPayload(string(call.Arguments)),
	}

	result := s.dispatch(ctx, tool, call.Arguments, event)

	event.Success = result.Success
	event.LatencyMs = float32(float64(time.Since(start)) / float64(time.Millisecond))
	if result.Error != nil {
		event.ErrorCode = result.Error.Code
	}
	// Argument text is only previewed for clean allow verdicts; blocked or
	// redacted payloads are represented by their hash alone.
	if event.Verdict == "" {
		event.Verdict = safety.OutcomeAllow.String()
		event.ArgsPreview = audit.SanitizePreview(string(call.Arguments))
	}
	s.writer.Write(event)

	return protocol.OKResponse(id, result)
}

// dispatch runs the per-request flow: schema validation, strict binding,
// safety evaluation of sensitive arguments, then the provider call. The
// Block outcome is terminal: no provider is invoked after it.
func (s *Server) dispatch(ctx context.Context, tool *registry.Tool, rawArgs protocol.RawMessage, event *audit.ToolCallEvent) *ToolResult {
	if !s.bundle.Has(tool.Capability) {
		return &ToolResult{Error: &ToolError{
			Code: protocol.ErrCapabilityUnavailable,
			Message: fmt.Sprintf("tool %q requires the %s capability, which is unavailable on this host",
				tool.Name, tool.Capability),
		}}
	}

	if err := tool.ValidateArguments(rawArgs); err != nil {
		return &ToolResult{Error: &ToolError{
			Code:    protocol.ErrValidation,
			Message: err.Error(),
		}}
	}

	raw := map[string]any{}
	if len(rawArgs) > 0 {
		if err := protocol.Unmarshal(rawArgs, &raw); err != nil {
			return &ToolResult{Error: &ToolError{
				Code:    protocol.ErrValidation,
				Message: "arguments must be an object",
			}}
		}
	}

	args, bindErr := registry.Bind(tool.Specs, raw)
	if bindErr != nil {
		return &ToolResult{Error: &ToolError{
			Code:    protocol.ErrValidation,
			Message: bindErr.Error(),
			Field:   bindErr.Field,
		}}
	}
	if tool.Check != nil {
		if err := tool.Check(args); err != nil {
			return &ToolResult{Error: &ToolError{
				Code:    protocol.ErrValidation,
				Message: err.Error(),
			}}
		}
	}

	var notes []SafetyNote
	for i := range tool.Specs {
		spec := &tool.Specs[i]
		if !spec.Sensitive {
			continue
		}
		text := args.String(spec.Name)
		if text == "" {
			continue
		}
		verdict := s.validator.Evaluate(text, spec.Hint)
		switch verdict.Outcome {
		case safety.OutcomeBlock:
			event.Verdict = verdict.Outcome.String()
			event.Category = verdict.Category.String()
			event.RuleID = verdict.RuleID
			s.logger.Warn("tool call blocked",
				zap.String("tool", tool.Name),
				zap.String("field", spec.Name),
				zap.String("category", verdict.Category.String()),
				zap.String("rule_id", verdict.RuleID),
			)
			return &ToolResult{Error: &ToolError{
				Code:     protocol.ErrSafetyViolation,
				Message:  verdict.Explanation,
				Category: verdict.Category.String(),
				RuleID:   verdict.RuleID,
				Field:    spec.Name,
			}}
		case safety.OutcomeRedact:
			event.Verdict = verdict.Outcome.String()
			event.Category = verdict.Category.String()
			event.RuleID = verdict.RuleID
			notes = append(notes, SafetyNote{
				Field:       spec.Name,
				Category:    verdict.Category.String(),
				RuleID:      verdict.RuleID,
				Explanation: verdict.Explanation,
			})
		}
	}

	payload, err := s.invoke(ctx, tool, args)
	if err != nil {
		return &ToolResult{
			Safety: notes,
			Error: &ToolError{
				Code:    protocol.ErrExecution,
				Message: fmt.Sprintf("tool %q failed", tool.Name),
				Detail:  err.Error(),
			},
		}
	}

	return &ToolResult{Success: true, Payload: payload, Safety: notes}
}

// invoke runs the handler with panic isolation: a panicking provider must
// not take down the serving loop.
func (s *Server) invoke(ctx context.Context, tool *registry.Tool, args registry.Args) (payload any, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("tool handler panicked",
				zap.String("tool", tool.Name),
				zap.Any("panic", r),
			)
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return tool.Handler(ctx, s.bundle, args)
}
