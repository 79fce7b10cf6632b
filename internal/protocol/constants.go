package protocol

const (
	ToolNameAskUser    = "ask_user"
	ToolNameNotifyUser = "notify_user"
	ToolNameSendFile   = "send_file"
	ToolNameZipProject = "zip_project"
)

const (
	MethodInitialize  = "initialize"
	MethodPing        = "ping"
	MethodToolsList   = "tools/list"
	MethodToolsCall   = "tools/call"
	MethodInitialized = "notifications/initialized"
)

// JSON-RPC error codes.
const (
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeToolFailure    = -32000
)

const (
	DefaultProtocolVersion = "2024-11-05"
	ServerName             = "askbridge"
	JSONRPCVersion         = "2.0"
)
