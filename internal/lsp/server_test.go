package lsp

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"gemcheck/internal/ast"
	"gemcheck/internal/commit"
	"gemcheck/internal/coordinator"
	"gemcheck/internal/index"
	"gemcheck/internal/logging"
)

type stubIndexer struct{}

func (stubIndexer) Index(ctx context.Context, files []index.FileSource) []index.Result {
	results := make([]index.Result, len(files))
	for i, f := range files {
		results[i] = index.Result{Path: f.Path, Tree: &ast.ClassDef{Name: "A", ClassKind: ast.Class, Body: []ast.Expr{
			&ast.MethodDef{Name: f.Source, Body: &ast.Empty{}},
		}}}
	}
	return results
}

func testLogger() *logging.Logger {
	return logging.NewLogger(logging.Config{Level: logging.ErrorLevel})
}

func newTestServer(t *testing.T) (*Server, *bytes.Buffer) {
	t.Helper()
	coord := coordinator.New(struct{}{}, testLogger(), coordinator.DefaultConfig())
	coord.Start()
	t.Cleanup(coord.Stop)

	committer := commit.New(stubIndexer{}, 1)
	var out bytes.Buffer
	transport := NewTransport(nil, &out)
	return New(transport, coord, committer, testLogger()), &out
}

func TestServer_InitializeReturnsCapabilities(t *testing.T) {
	s, _ := newTestServer(t)
	resp := s.handleMessage(context.Background(), &Message{JSONRPC: "2.0", ID: 1, Method: MethodInitialize})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
	caps, ok := resp.Result.(ServerCapabilities)
	if !ok {
		t.Fatalf("expected ServerCapabilities result, got %T", resp.Result)
	}
	if caps.TextDocumentSync != SyncFull {
		t.Errorf("expected SyncFull, got %v", caps.TextDocumentSync)
	}
	if len(caps.CompletionProvider.TriggerCharacters) != 1 || caps.CompletionProvider.TriggerCharacters[0] != "." {
		t.Errorf("expected completion trigger '.', got %v", caps.CompletionProvider.TriggerCharacters)
	}
}

func TestServer_UnknownMethodReturnsMethodNotFound(t *testing.T) {
	s, _ := newTestServer(t)
	resp := s.handleMessage(context.Background(), &Message{JSONRPC: "2.0", ID: 1, Method: "bogus/method"})
	if resp.Error == nil || resp.Error.Code != MethodNotFound {
		t.Fatalf("expected MethodNotFound, got %+v", resp.Error)
	}
}

func TestServer_CanceledRequestReturnsRequestCancelled(t *testing.T) {
	s, _ := newTestServer(t)
	s.handleNotification(context.Background(), &Message{JSONRPC: "2.0", Method: MethodCancelRequest, Params: map[string]interface{}{"id": float64(5)}})

	resp := s.handleMessage(context.Background(), &Message{JSONRPC: "2.0", ID: float64(5), Method: MethodInitialize})
	if resp.Error == nil || resp.Error.Code != RequestCancelled {
		t.Fatalf("expected RequestCancelled, got %+v", resp.Error)
	}
}

func TestServer_WorkspaceEditNewFileTakesSlowPath(t *testing.T) {
	s, _ := newTestServer(t)

	params, _ := json.Marshal(workspaceEditParams{
		Epoch:   1,
		Updates: []commit.FileUpdate{{Path: "x.rb", Source: "foo"}},
	})
	resp := s.handleMessage(context.Background(), &Message{JSONRPC: "2.0", ID: 1, Method: MethodWorkspaceEdit, Params: json.RawMessage(params)})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}

	update, ok := resp.Result.(*commit.LSPFileUpdates)
	if !ok {
		t.Fatalf("expected *commit.LSPFileUpdates, got %T", resp.Result)
	}
	if update.CanTakeFastPath {
		t.Error("first commit of a new file must not be fast-path")
	}
}

func TestServer_ShutdownThenExitStopsServe(t *testing.T) {
	s, _ := newTestServer(t)

	input := strings.NewReader(
		`{"jsonrpc":"2.0","id":1,"method":"shutdown"}` + "\n" +
			`{"jsonrpc":"2.0","method":"exit"}` + "\n",
	)
	var out bytes.Buffer
	s.Transport = NewTransport(input, &out)

	if err := s.Serve(context.Background()); err != nil {
		t.Fatalf("Serve() error = %v", err)
	}
	if !strings.Contains(out.String(), `"id":1`) || strings.Contains(out.String(), `"error"`) {
		t.Errorf("expected a successful shutdown response in output, got %q", out.String())
	}
}
