// Package lsp implements the JSON-RPC surface a gemcheck client talks
// to: message framing, the sorbet/* and textDocument/* method dispatch
// table, and the initialize capabilities payload (spec.md §6-§7).
package lsp

// Message is a JSON-RPC 2.0 message, request, response, or
// notification.
type Message struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id,omitempty"`
	Method  string      `json:"method,omitempty"`
	Params  interface{} `json:"params,omitempty"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

// RPCError is a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *RPCError) Error() string { return e.Message }

// Standard JSON-RPC error codes, plus LSP's RequestCancelled (spec.md
// §7, "canceled requests respond with -32800").
const (
	ParseError         = -32700
	InvalidRequest     = -32600
	MethodNotFound     = -32601
	InvalidParams      = -32602
	InternalError      = -32603
	RequestCancelled   = -32800
	ContentModified    = -32801
)

// NewErrorMessage builds an error response.
func NewErrorMessage(id interface{}, code int, message string, data interface{}) *Message {
	return &Message{JSONRPC: "2.0", ID: id, Error: &RPCError{Code: code, Message: message, Data: data}}
}

// NewResultMessage builds a success response.
func NewResultMessage(id interface{}, result interface{}) *Message {
	return &Message{JSONRPC: "2.0", ID: id, Result: result}
}

// NewNotificationMessage builds a notification (no id, no response
// expected).
func NewNotificationMessage(method string, params interface{}) *Message {
	return &Message{JSONRPC: "2.0", Method: method, Params: params}
}

// IsRequest reports whether m expects a response.
func (m *Message) IsRequest() bool { return m.Method != "" && m.ID != nil }

// IsNotification reports whether m is fire-and-forget.
func (m *Message) IsNotification() bool { return m.Method != "" && m.ID == nil }

// IsResponse reports whether m is a reply to one of our own requests.
func (m *Message) IsResponse() bool { return m.ID != nil && (m.Result != nil || m.Error != nil) }

// Methods gemcheck's LSP surface dispatches (spec.md §6).
const (
	MethodInitialize     = "initialize"
	MethodInitialized    = "initialized"
	MethodShutdown       = "shutdown"
	MethodExit           = "exit"
	MethodCancelRequest  = "$/cancelRequest"

	MethodWorkspaceSymbol       = "workspace/symbol"
	MethodDefinition            = "textDocument/definition"
	MethodTypeDefinition        = "textDocument/typeDefinition"
	MethodHover                 = "textDocument/hover"
	MethodCompletion            = "textDocument/completion"
	MethodCodeAction            = "textDocument/codeAction"
	MethodSignatureHelp         = "textDocument/signatureHelp"
	MethodReferences            = "textDocument/references"
	MethodDocumentHighlight     = "textDocument/documentHighlight"
	MethodDocumentSymbol        = "textDocument/documentSymbol"
	MethodDidChangeWorkspace    = "workspace/didChangeWatchedFiles"
	MethodWorkspaceEdit         = "workspaceEdit"

	// sorbet/* extensions (spec.md §6, "Sorbet-specific extensions").
	MethodSorbetReadFile = "sorbet/readFile"
	MethodSorbetFence    = "sorbet/fence"
	MethodSorbetError    = "sorbet/error"
)

// ServerCapabilities is the payload returned from initialize (spec.md
// §6, "capabilities negotiated at initialize").
type ServerCapabilities struct {
	TextDocumentSync   TextDocumentSyncKind `json:"textDocumentSync"`
	HoverProvider      bool                 `json:"hoverProvider"`
	DefinitionProvider bool                 `json:"definitionProvider"`
	TypeDefinitionProvider bool             `json:"typeDefinitionProvider"`
	ReferencesProvider bool                 `json:"referencesProvider"`
	DocumentHighlightProvider bool          `json:"documentHighlightProvider"`
	DocumentSymbolProvider    bool          `json:"documentSymbolProvider"`
	WorkspaceSymbolProvider   bool          `json:"workspaceSymbolProvider"`
	CodeActionProvider        bool          `json:"codeActionProvider"`
	CompletionProvider        *CompletionOptions `json:"completionProvider,omitempty"`
	SignatureHelpProvider     *SignatureHelpOptions `json:"signatureHelpProvider,omitempty"`
}

// TextDocumentSyncKind mirrors the LSP enum; gemcheck only ever
// negotiates Full (spec.md §6, "no incremental sync").
type TextDocumentSyncKind int

const (
	SyncNone        TextDocumentSyncKind = 0
	SyncFull        TextDocumentSyncKind = 1
	SyncIncremental TextDocumentSyncKind = 2
)

// CompletionOptions declares the trigger characters completion fires
// on.
type CompletionOptions struct {
	TriggerCharacters []string `json:"triggerCharacters,omitempty"`
}

// SignatureHelpOptions declares the trigger characters signature help
// fires on.
type SignatureHelpOptions struct {
	TriggerCharacters []string `json:"triggerCharacters,omitempty"`
}

// DefaultCapabilities is the capabilities payload gemcheck advertises
// on initialize (spec.md §6): full-document sync, `.` triggers
// completion, `(` and `,` trigger signature help.
func DefaultCapabilities() ServerCapabilities {
	return ServerCapabilities{
		TextDocumentSync:          SyncFull,
		HoverProvider:             true,
		DefinitionProvider:        true,
		TypeDefinitionProvider:    true,
		ReferencesProvider:        true,
		DocumentHighlightProvider: true,
		DocumentSymbolProvider:    true,
		WorkspaceSymbolProvider:   true,
		CodeActionProvider:        true,
		CompletionProvider:        &CompletionOptions{TriggerCharacters: []string{"."}},
		SignatureHelpProvider:     &SignatureHelpOptions{TriggerCharacters: []string{"(", ","}},
	}
}
