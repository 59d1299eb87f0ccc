package session

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/meysamhadeli/codechat/backend/contracts"
	"github.com/meysamhadeli/codechat/backend/models"
	conversation "github.com/meysamhadeli/codechat/conversation/contracts"
	"github.com/meysamhadeli/codechat/stream"
	tokens "github.com/meysamhadeli/codechat/token_management/contracts"
	"github.com/pterm/pterm"
)

// FailureMessage replaces the assistant turn when the transport itself fails.
const FailureMessage = "Sorry, there was an error processing your request. Please try again."

// QueryState is the lifecycle of one query.
type QueryState int

const (
	QueryIdle QueryState = iota
	QuerySubmitting
	QueryStreaming
	QueryCompleted
	QueryFailed
	QueryCancelled
)

func (s QueryState) String() string {
	switch s {
	case QueryIdle:
		return "idle"
	case QuerySubmitting:
		return "submitting"
	case QueryStreaming:
		return "streaming"
	case QueryCompleted:
		return "completed"
	case QueryFailed:
		return "failed"
	case QueryCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("QueryState(%d)", int(s))
	}
}

// InFlight reports whether the query still owns the stream.
func (s QueryState) InFlight() bool {
	return s == QuerySubmitting || s == QueryStreaming
}

// Terminal reports whether the query has settled.
func (s QueryState) Terminal() bool {
	return s == QueryCompleted || s == QueryFailed || s == QueryCancelled
}

// QuerySession drives one streamed question and its answer turn.
//
// Events are applied under the query's lock, so once Cancel returns no
// further fragment reaches the conversation. Store subscribers run inside
// that lock and must not call Cancel.
type QuerySession struct {
	backend  contracts.IBackend
	store    conversation.IConversationStore
	tokens   tokens.ITokenManagement
	logger   *pterm.Logger
	request  models.QueryRequest
	followUp bool
	turnID   string

	mu     sync.Mutex
	state  QueryState
	err    error
	body   io.ReadCloser
	cancel context.CancelFunc
	done   chan struct{}
}

func newQuerySession(backend contracts.IBackend, store conversation.IConversationStore, tokenManager tokens.ITokenManagement,
	logger *pterm.Logger, request models.QueryRequest, followUp bool) *QuerySession {
	return &QuerySession{
		backend:  backend,
		store:    store,
		tokens:   tokenManager,
		logger:   logger,
		request:  request,
		followUp: followUp,
		state:    QueryIdle,
		done:     make(chan struct{}),
	}
}

// TurnID is the id of the assistant turn this query writes to.
func (qs *QuerySession) TurnID() string {
	return qs.turnID
}

func (qs *QuerySession) Mode() models.QueryMode {
	return qs.request.Mode
}

func (qs *QuerySession) State() QueryState {
	qs.mu.Lock()
	defer qs.mu.Unlock()
	return qs.state
}

// Err returns why the query failed, or nil.
func (qs *QuerySession) Err() error {
	qs.mu.Lock()
	defer qs.mu.Unlock()
	return qs.err
}

// Done is closed when the query's goroutine has returned, follow-up included.
func (qs *QuerySession) Done() <-chan struct{} {
	return qs.done
}

// Wait blocks until Done or ctx ends.
func (qs *QuerySession) Wait(ctx context.Context) error {
	select {
	case <-qs.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel abandons an in-flight query, keeping whatever content already arrived.
// After the turn has settled it leaves the state alone and only ends a
// relevant-files follow-up that may still be running.
func (qs *QuerySession) Cancel() {
	qs.mu.Lock()
	cancel := qs.cancel
	if !qs.state.InFlight() {
		qs.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		return
	}
	qs.state = QueryCancelled
	body := qs.body
	if err := qs.store.MarkComplete(qs.turnID); err != nil {
		qs.logger.Warn("could not settle cancelled turn", qs.logger.Args("error", err))
	}
	qs.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if body != nil {
		_ = body.Close()
	}
}

// begin moves Idle -> Submitting and binds the query to its turn.
func (qs *QuerySession) begin(turnID string, cancel context.CancelFunc) {
	qs.mu.Lock()
	defer qs.mu.Unlock()
	qs.turnID = turnID
	qs.cancel = cancel
	qs.state = QuerySubmitting
}

func (qs *QuerySession) run(ctx context.Context) {
	defer close(qs.done)
	defer qs.cancel()

	body, err := qs.backend.QueryStream(ctx, qs.request)
	if err != nil {
		qs.fail(ctx, err)
		return
	}
	defer body.Close()

	if !qs.attach(body) {
		return
	}

	for result := range stream.Decode(ctx, body, qs.logger) {
		if result.Err != nil {
			qs.fail(ctx, result.Err)
			return
		}
		if !qs.apply(result.Event) {
			break
		}
	}

	if qs.settle(ctx) && qs.followUp {
		qs.resolveRelevantFiles(ctx)
	}
}

// attach records the open transport and moves Submitting -> Streaming.
func (qs *QuerySession) attach(body io.ReadCloser) bool {
	qs.mu.Lock()
	defer qs.mu.Unlock()
	if qs.state != QuerySubmitting {
		return false
	}
	qs.body = body
	qs.state = QueryStreaming
	return true
}

// apply mutates the turn for one event and reports whether to keep consuming.
func (qs *QuerySession) apply(event stream.Event) bool {
	qs.mu.Lock()
	defer qs.mu.Unlock()

	if qs.state != QueryStreaming {
		return false
	}

	var err error
	switch event.Kind {
	case stream.EventContent:
		err = qs.store.ApplyFragment(qs.turnID, event.Text)
	case stream.EventRelevantFiles:
		err = qs.store.ApplyRelevantFiles(qs.turnID, event.Files)
	case stream.EventFailure:
		qs.state = QueryFailed
		qs.err = fmt.Errorf("backend reported: %s", event.Text)
		err = qs.store.MarkFailed(qs.turnID, event.Text)
	case stream.EventCompleted:
		qs.state = QueryCompleted
		err = qs.store.MarkComplete(qs.turnID)
	}
	if err != nil {
		qs.logger.Warn("could not apply stream event", qs.logger.Args("kind", event.Kind.String(), "error", err))
	}
	return qs.state == QueryStreaming
}

// settle finishes a stream that ended without a failure and reports whether it completed.
func (qs *QuerySession) settle(ctx context.Context) bool {
	qs.mu.Lock()
	defer qs.mu.Unlock()

	if qs.state == QueryStreaming {
		if ctx.Err() != nil {
			qs.state = QueryCancelled
		} else {
			qs.state = QueryCompleted
		}
		if err := qs.store.MarkComplete(qs.turnID); err != nil {
			qs.logger.Warn("could not settle turn", qs.logger.Args("error", err))
		}
	}
	return qs.state == QueryCompleted
}

// fail ends an in-flight query after a transport error. An error caused by the
// query's own context ending counts as a cancellation.
func (qs *QuerySession) fail(ctx context.Context, cause error) {
	qs.mu.Lock()
	defer qs.mu.Unlock()

	if !qs.state.InFlight() {
		return
	}
	if ctx.Err() != nil {
		qs.state = QueryCancelled
		if err := qs.store.MarkComplete(qs.turnID); err != nil {
			qs.logger.Warn("could not settle cancelled turn", qs.logger.Args("error", err))
		}
		return
	}

	qs.logger.Warn("query failed", qs.logger.Args("mode", string(qs.request.Mode), "error", cause))
	qs.state = QueryFailed
	qs.err = cause
	if err := qs.store.MarkFailed(qs.turnID, FailureMessage); err != nil {
		qs.logger.Warn("could not mark turn failed", qs.logger.Args("error", err))
	}
}

// resolveRelevantFiles asks the buffered endpoint the same question so the turn
// gets the backend's final relevant-file list. Failures only get logged.
func (qs *QuerySession) resolveRelevantFiles(ctx context.Context) {
	result, err := qs.backend.Query(ctx, qs.request)
	if err != nil {
		qs.logger.Debug("relevant files follow-up failed", qs.logger.Args("error", err))
		return
	}

	if qs.tokens != nil {
		qs.tokens.UsedTokens(result.PromptEvalCount, result.EvalCount)
	}
	if result.RelevantFiles == nil {
		return
	}
	if err := qs.store.ApplyRelevantFiles(qs.turnID, []string(result.RelevantFiles)); err != nil {
		qs.logger.Warn("could not apply relevant files", qs.logger.Args("error", err))
	}
}
