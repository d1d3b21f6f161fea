package protocol

// JSON-RPC 2.0 envelope types for the stdio transport. One JSON object per
// line in each direction, matched by the caller-supplied id.

const Version = "2.0"

// Standard JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Domain error codes carried in the error/result data so callers can branch
// without parsing messages.
const (
	ErrProtocol              = "ProtocolError"
	ErrToolNotFound          = "ToolNotFound"
	ErrValidation            = "ValidationError"
	ErrSafetyViolation       = "SafetyViolation"
	ErrCapabilityUnavailable = "CapabilityUnavailable"
	ErrExecution             = "ExecutionError"
)

// Request is an inbound JSON-RPC request. A request without an id is a
// notification and receives no response.
type Request struct {
	JSONRPC string     `json:"jsonrpc"`
	ID      any        `json:"id,omitempty"`
	Method  string     `json:"method"`
	Params  RawMessage `json:"params,omitempty"`
}

// Response is an outbound JSON-RPC response. Exactly one of Result or Error
// is set.
type Response struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *RPCError `json:"error,omitempty"`
}

// RPCError is the JSON-RPC error object. Data carries the domain error code.
type RPCError struct {
	Code    int        `json:"code"`
	Message string     `json:"message"`
	Data    *ErrorData `json:"data,omitempty"`
}

// ErrorData is the structured payload attached to protocol-level errors.
type ErrorData struct {
	Code string `json:"code"`
}

// CallParams is the params shape for tools/call.
type CallParams struct {
	Name      string     `json:"name"`
	Arguments RawMessage `json:"arguments"`
}

// ToolInfo is one entry of the tools/list result.
type ToolInfo struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// ListToolsResult is the tools/list result envelope.
type ListToolsResult struct {
	Tools []ToolInfo `json:"tools"`
}

// InitializeResult is the initialize result envelope.
type InitializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      ServerInfo     `json:"serverInfo"`
}

// ServerInfo identifies the server in the initialize handshake.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// OKResponse builds a success response for the given id.
func OKResponse(id, result any) *Response {
	return &Response{JSONRPC: Version, ID: id, Result: result}
}

// ErrResponse builds an error response for the given id. domainCode is one of
// the Err* constants.
func ErrResponse(id any, rpcCode int, domainCode, message string) *Response {
	return &Response{
		JSONRPC: Version,
		ID:      id,
		Error: &RPCError{
			Code:    rpcCode,
			Message: message,
			Data:    &ErrorData{Code: domainCode},
		},
	}
}
