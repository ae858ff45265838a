package lsp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"gemcheck/internal/commit"
	"gemcheck/internal/coordinator"
	"gemcheck/internal/errors"
	"gemcheck/internal/logging"
	"gemcheck/internal/telemetry"
)

// HandlerFunc answers one request's params, returning either a result
// or an RPCError to send back.
type HandlerFunc func(ctx context.Context, params json.RawMessage) (interface{}, *RPCError)

// Typecheck runs one committed update on the typechecker thread and
// reports whether it was canceled mid-flight (spec.md §4.7,
// "typechecker.typecheck(update) returns a boolean canceled? flag").
// gemcheck ships no real analysis (spec.md §10, "no actual
// typechecking in the coordinator"); callers supply this to plug one
// in, or leave it nil to get a stub that only observes cancelation.
type Typecheck func(ctx context.Context, tc coordinator.Typechecker, update *commit.LSPFileUpdates) (canceled bool)

// Server dispatches JSON-RPC requests over Transport, running commits
// through Coordinator and Committer per spec.md §4.7's sync_run/
// async_run contract.
type Server struct {
	Transport   *Transport
	Coordinator *coordinator.Coordinator
	Committer   *commit.Committer
	Typecheck   Typecheck
	Logger      *logging.Logger
	Telemetry   telemetry.Sink

	handlers map[string]HandlerFunc

	mu        sync.Mutex
	canceled  map[interface{}]bool
	shutdown  bool
}

// New returns a Server with the built-in initialize/shutdown/
// workspaceEdit handlers registered; exit is handled by Serve itself.
func New(transport *Transport, coord *coordinator.Coordinator, committer *commit.Committer, logger *logging.Logger) *Server {
	s := &Server{
		Transport:   transport,
		Coordinator: coord,
		Committer:   committer,
		Logger:      logger,
		Telemetry:   telemetry.NoopSink{},
		handlers:    make(map[string]HandlerFunc),
		canceled:    make(map[interface{}]bool),
	}
	if committer != nil && coord != nil {
		committer.TryCancelSlowPath = func(epoch uint64) bool {
			ok := coord.TryCancelSlowPath(epoch)
			s.Telemetry.CancelAttempt(ok)
			return ok
		}
	}
	s.RegisterHandler(MethodInitialize, s.handleInitialize)
	s.RegisterHandler(MethodShutdown, s.handleShutdown)
	s.RegisterHandler(MethodWorkspaceEdit, s.handleWorkspaceEdit)
	return s
}

// RegisterHandler wires fn to handle method, overriding any built-in.
func (s *Server) RegisterHandler(method string, fn HandlerFunc) {
	s.handlers[method] = fn
}

// Serve reads and dispatches messages until the transport reaches EOF
// or ctx is canceled.
func (s *Server) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msg, err := s.Transport.ReadMessage()
		if err != nil {
			return err
		}

		resp := s.handleMessage(ctx, msg)
		if resp != nil {
			if err := s.Transport.WriteMessage(resp); err != nil {
				return err
			}
		}

		if s.shutdown && msg.Method == MethodExit {
			return nil
		}
	}
}

func (s *Server) handleMessage(ctx context.Context, msg *Message) *Message {
	switch {
	case msg.IsRequest():
		return s.handleRequest(ctx, msg)
	case msg.IsNotification():
		s.handleNotification(ctx, msg)
		return nil
	default:
		return NewErrorMessage(msg.ID, InvalidRequest, "not a request or notification", nil)
	}
}

func (s *Server) handleRequest(ctx context.Context, msg *Message) *Message {
	s.mu.Lock()
	if s.canceled[msg.ID] {
		delete(s.canceled, msg.ID)
		s.mu.Unlock()
		return NewErrorMessage(msg.ID, RequestCancelled, "request canceled before dispatch", nil)
	}
	s.mu.Unlock()

	handler, ok := s.handlers[msg.Method]
	if !ok {
		return NewErrorMessage(msg.ID, MethodNotFound, fmt.Sprintf("method not found: %s", msg.Method), nil)
	}

	params, err := json.Marshal(msg.Params)
	if err != nil {
		return NewErrorMessage(msg.ID, InvalidParams, err.Error(), nil)
	}

	// correlationID ties a request's entry/exit log lines together, the
	// same way ckb's api.RequestIDMiddleware stamps each HTTP request.
	correlationID := uuid.New().String()
	if s.Logger != nil {
		s.Logger.Debug("request received", map[string]interface{}{
			"method":        msg.Method,
			"correlationID": correlationID,
		})
	}

	result, rpcErr := handler(ctx, params)
	if rpcErr != nil {
		if s.Logger != nil {
			s.Logger.Debug("request failed", map[string]interface{}{
				"method":        msg.Method,
				"correlationID": correlationID,
				"code":          rpcErr.Code,
			})
		}
		return &Message{JSONRPC: "2.0", ID: msg.ID, Error: rpcErr}
	}
	if s.Logger != nil {
		s.Logger.Debug("request completed", map[string]interface{}{
			"method":        msg.Method,
			"correlationID": correlationID,
		})
	}
	return NewResultMessage(msg.ID, result)
}

func (s *Server) handleNotification(ctx context.Context, msg *Message) {
	switch msg.Method {
	case MethodCancelRequest:
		var params struct {
			ID interface{} `json:"id"`
		}
		if err := json.Unmarshal(mustMarshal(msg.Params), &params); err == nil {
			s.mu.Lock()
			s.canceled[params.ID] = true
			s.mu.Unlock()
		}
	case MethodInitialized:
		s.Logger.Info("client initialized", nil)
	case MethodExit:
		// handled by Serve's post-response check on the request path;
		// exit is technically a notification per the base protocol but
		// gemcheck's transport treats it the same as any other message.
	default:
		s.Logger.Debug("unhandled notification", map[string]interface{}{"method": msg.Method})
	}
}

func mustMarshal(v interface{}) []byte {
	data, _ := json.Marshal(v)
	return data
}

func (s *Server) handleInitialize(ctx context.Context, params json.RawMessage) (interface{}, *RPCError) {
	return DefaultCapabilities(), nil
}

func (s *Server) handleShutdown(ctx context.Context, params json.RawMessage) (interface{}, *RPCError) {
	s.shutdown = true
	return nil, nil
}

// workspaceEditParams is the proprietary batched-update payload
// (spec.md §6, "workspaceEdit (carries batched file updates)").
type workspaceEditParams struct {
	Epoch      uint64                `json:"epoch"`
	MergeCount uint32                `json:"mergeCount"`
	Updates    []commit.FileUpdate   `json:"updates"`
}

func (s *Server) handleWorkspaceEdit(ctx context.Context, raw json.RawMessage) (interface{}, *RPCError) {
	if s.Committer == nil {
		return nil, &RPCError{Code: InternalError, Message: "no committer configured"}
	}

	var params workspaceEditParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, &RPCError{Code: InvalidParams, Message: err.Error()}
	}

	update, err := s.Committer.Commit(ctx, commit.WorkspaceEdit{
		Epoch:      params.Epoch,
		MergeCount: params.MergeCount,
		Updates:    params.Updates,
	})
	if err != nil {
		return nil, &RPCError{Code: InternalError, Message: err.Error()}
	}

	s.dispatchTypecheck(update)
	return update, nil
}

// dispatchTypecheck runs update on the typechecker thread per spec.md
// §4.7: fast-path updates block the coordinator via sync_run, slow-path
// updates run in the background and remain cancelable.
func (s *Server) dispatchTypecheck(update *commit.LSPFileUpdates) {
	if s.Coordinator == nil {
		return
	}
	tc := s.typecheckFunc(update)

	if update.CanTakeFastPath {
		s.Telemetry.CommitFastPath()
		_ = s.Coordinator.SyncRun(context.Background(), func(t coordinator.Typechecker) {
			tc(context.Background(), t)
		})
		return
	}
	s.Telemetry.CommitSlowPath()
	s.Coordinator.RunSlowPath(update.Epoch, func(ctx context.Context, t coordinator.Typechecker) {
		tc(ctx, t)
	})
}

func (s *Server) typecheckFunc(update *commit.LSPFileUpdates) func(ctx context.Context, tc coordinator.Typechecker) bool {
	if s.Typecheck != nil {
		return func(ctx context.Context, tc coordinator.Typechecker) bool {
			return s.Typecheck(ctx, tc, update)
		}
	}
	return func(ctx context.Context, tc coordinator.Typechecker) bool {
		select {
		case <-ctx.Done():
			return true
		default:
			return false
		}
	}
}

// TaxonomyError maps a gemcheck error taxonomy code onto an RPCError
// (spec.md §7).
func TaxonomyError(id interface{}, code errors.ErrorCode, message string) *Message {
	return NewErrorMessage(id, errors.RPCCode(code), message, nil)
}
