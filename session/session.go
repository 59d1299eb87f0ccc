// Package session owns one client session against the code-analysis backend:
// connecting to the model server, loading a codebase, polling its indexing to
// completion and running streamed queries against the conversation.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/meysamhadeli/codechat/backend/contracts"
	"github.com/meysamhadeli/codechat/backend/models"
	"github.com/meysamhadeli/codechat/conversation"
	conversationContracts "github.com/meysamhadeli/codechat/conversation/contracts"
	"github.com/meysamhadeli/codechat/file_cache"
	tokenContracts "github.com/meysamhadeli/codechat/token_management/contracts"
	"github.com/pterm/pterm"
	"github.com/sourcegraph/conc"
)

var (
	ErrNotConnected  = errors.New("model server connection has not been confirmed")
	ErrInvalidPhase  = errors.New("operation not allowed in the current phase")
	ErrNotReady      = errors.New("codebase is not indexed yet")
	ErrQueryInFlight = errors.New("another query is still streaming")
	ErrEmptyQuery    = errors.New("query is empty")
	ErrClosed        = errors.New("session is closed")
)

// Options configures a Session.
type Options struct {
	Backend      contracts.IBackend
	Logger       *pterm.Logger
	PollInterval time.Duration
	Tokens       tokenContracts.ITokenManagement
	Cache        *file_cache.CacheManager
	// DisableFollowUp skips the buffered relevant-files query after a completed stream.
	DisableFollowUp bool
}

// Session ties the backend, the conversation, the phase machine and the status poller together.
type Session struct {
	backend  contracts.IBackend
	store    *conversation.ConversationStore
	phases   *PhaseMachine
	poller   *StatusPoller
	cache    *file_cache.CacheManager
	tokens   tokenContracts.ITokenManagement
	logger   *pterm.Logger
	followUp bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     conc.WaitGroup

	loadMu   sync.Mutex
	submitMu sync.Mutex

	mu              sync.Mutex
	closed          bool
	connected       bool
	model           string
	source          string
	status          *models.IndexingStatus
	tree            *models.FileTreeNode
	lastFailure     string
	active          *QuerySession
	statusListeners []func(status *models.IndexingStatus)
}

// New builds a session in the SETUP phase.
func New(options Options) *Session {
	logger := options.Logger
	if logger == nil {
		logger = pterm.DefaultLogger.WithLevel(pterm.LogLevelWarn)
	}
	cache := options.Cache
	if cache == nil {
		cache = file_cache.NewCacheManager(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		backend:  options.Backend,
		store:    conversation.NewConversationStore(logger),
		phases:   NewPhaseMachine(),
		cache:    cache,
		tokens:   options.Tokens,
		logger:   logger,
		followUp: !options.DisableFollowUp,
		ctx:      ctx,
		cancel:   cancel,
	}
	s.poller = NewStatusPoller(options.Backend, options.PollInterval, PollerHooks{
		OnStatus: s.handleStatus,
		OnReady:  s.handleReady,
		OnFailed: s.handleIndexingFailed,
	}, logger)
	return s
}

// Conversation exposes the store for reading and subscribing.
func (s *Session) Conversation() conversationContracts.IConversationStore {
	return s.store
}

func (s *Session) Phase() Phase {
	return s.phases.Current()
}

// OnPhase registers a listener for phase transitions.
func (s *Session) OnPhase(listener func(from, to Phase)) {
	s.phases.Subscribe(listener)
}

// OnStatus registers a listener for every indexing status received while polling.
func (s *Session) OnStatus(listener func(status *models.IndexingStatus)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusListeners = append(append([]func(*models.IndexingStatus){}, s.statusListeners...), listener)
}

// Status returns the latest polled indexing status, or nil before the first poll.
func (s *Session) Status() *models.IndexingStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// FileTree returns the tree fetched when indexing completed. It is nil when the fetch failed.
func (s *Session) FileTree() *models.FileTreeNode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree
}

// Source describes the codebase that was loaded last.
func (s *Session) Source() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

// LastIndexingFailure returns the error of the last failed indexing run.
func (s *Session) LastIndexingFailure() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFailure
}

func (s *Session) Model() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model
}

func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *Session) Tokens() tokenContracts.ITokenManagement {
	return s.tokens
}

func (s *Session) Cache() *file_cache.CacheManager {
	return s.cache
}

// Connect tests the model server and records the connection when the backend confirms it.
func (s *Session) Connect(ctx context.Context, ollamaURL, model string) (*models.ConnectionResult, error) {
	result, err := s.backend.TestConnection(ctx, models.ConnectionRequest{BaseURL: ollamaURL, Model: model})
	if err != nil {
		return nil, fmt.Errorf("testing model server connection: %w", err)
	}

	s.mu.Lock()
	s.connected = result.Connected
	if result.Connected {
		s.model = model
	}
	s.mu.Unlock()

	if !result.Connected {
		s.logger.Warn("model server not reachable", s.logger.Args("url", ollamaURL, "message", result.Message))
	}
	return result, nil
}

// SetModel switches the backend's model.
func (s *Session) SetModel(ctx context.Context, model string) error {
	if err := s.backend.SetModel(ctx, model); err != nil {
		return fmt.Errorf("setting model %q: %w", model, err)
	}
	s.mu.Lock()
	s.model = model
	s.mu.Unlock()
	return nil
}

// LoadRepository asks the backend to clone and index a repository, then starts polling.
func (s *Session) LoadRepository(ctx context.Context, repoURL, authToken string) error {
	return s.load(ctx, repoURL, func() error {
		return s.backend.LoadRepository(ctx, models.LoadRepositoryRequest{RepoURL: repoURL, AuthToken: authToken})
	})
}

// LoadDirectory asks the backend to index a directory it can read, then starts polling.
func (s *Session) LoadDirectory(ctx context.Context, path string) error {
	return s.load(ctx, path, func() error {
		return s.backend.LoadDirectory(ctx, path)
	})
}

func (s *Session) load(ctx context.Context, source string, start func() error) error {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	s.mu.Lock()
	closed, connected := s.closed, s.connected
	s.mu.Unlock()

	if closed {
		return ErrClosed
	}
	if phase := s.phases.Current(); phase != PhaseSetup {
		return fmt.Errorf("load %s during %s: %w", source, phase, ErrInvalidPhase)
	}
	if !connected {
		return ErrNotConnected
	}

	if err := start(); err != nil {
		return fmt.Errorf("loading %s: %w", source, err)
	}

	s.mu.Lock()
	s.source = source
	s.status = nil
	s.tree = nil
	s.lastFailure = ""
	s.mu.Unlock()

	if err := s.phases.Transition(PhaseIndexing); err != nil {
		return err
	}
	if err := s.poller.Start(s.ctx); err != nil {
		return fmt.Errorf("starting status poller: %w", err)
	}
	s.logger.Info("indexing started", s.logger.Args("source", source))
	return nil
}

func (s *Session) handleStatus(status *models.IndexingStatus) {
	s.mu.Lock()
	s.status = status
	listeners := s.statusListeners
	s.mu.Unlock()

	for _, listener := range listeners {
		listener(status)
	}
}

func (s *Session) handleReady(tree *models.FileTreeNode) {
	s.mu.Lock()
	s.tree = tree
	s.mu.Unlock()

	s.cache.Clear()
	if err := s.phases.Transition(PhaseReady); err != nil {
		s.logger.Error("could not enter ready phase", s.logger.Args("error", err))
	}
}

func (s *Session) handleIndexingFailed(message string) {
	s.mu.Lock()
	s.lastFailure = message
	s.mu.Unlock()

	if err := s.phases.Transition(PhaseSetup); err != nil {
		s.logger.Error("could not return to setup phase", s.logger.Args("error", err))
	}
}

// Submit asks a question and streams the answer into the conversation.
func (s *Session) Submit(ctx context.Context, text string) (*QuerySession, error) {
	return s.startQuery(ctx, text, models.QueryAsk)
}

// Suggest asks for code changes; the answer streams exactly like Submit.
func (s *Session) Suggest(ctx context.Context, text string) (*QuerySession, error) {
	return s.startQuery(ctx, text, models.QuerySuggest)
}

// ActiveQuery returns the most recent query, if any.
func (s *Session) ActiveQuery() *QuerySession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *Session) startQuery(ctx context.Context, text string, mode models.QueryMode) (*QuerySession, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyQuery
	}
	if s.phases.Current() != PhaseReady {
		return nil, ErrNotReady
	}

	// submitMu spans the in-flight check and the append so two submits cannot both pass.
	s.submitMu.Lock()
	defer s.submitMu.Unlock()

	s.mu.Lock()
	closed, active := s.closed, s.active
	s.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}
	if active != nil && active.State().InFlight() {
		return nil, ErrQueryInFlight
	}

	qs := newQuerySession(s.backend, s.store, s.tokens, s.logger, models.QueryRequest{Query: text, Mode: mode}, s.followUp)
	queryCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	qs.begin(s.store.AppendExchange(text), func() {
		stop()
		cancel()
	})

	s.mu.Lock()
	s.active = qs
	s.mu.Unlock()

	s.wg.Go(func() {
		qs.run(queryCtx)
	})
	return qs, nil
}

// OpenFile returns a file's content, served from the cache when possible.
func (s *Session) OpenFile(ctx context.Context, path string) (*models.FileContent, error) {
	if err := s.requireReady(); err != nil {
		return nil, err
	}
	if content, ok := s.cache.GetFileContent(path); ok {
		return content, nil
	}

	content, err := s.backend.FileContent(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	s.cache.SetFileContent(path, content)
	return content, nil
}

func (s *Session) Search(ctx context.Context, term string) (models.SearchResults, error) {
	if err := s.requireReady(); err != nil {
		return nil, err
	}
	return s.backend.Search(ctx, term)
}

func (s *Session) RelatedFiles(ctx context.Context, path string) (*models.RelatedFiles, error) {
	if err := s.requireReady(); err != nil {
		return nil, err
	}
	return s.backend.RelatedFiles(ctx, path)
}

func (s *Session) CodebaseSummary(ctx context.Context) (*models.CodebaseSummary, error) {
	if err := s.requireReady(); err != nil {
		return nil, err
	}
	return s.backend.CodebaseSummary(ctx)
}

// AnalyzeCodebase runs the backend's whole-codebase analysis and records its token usage.
func (s *Session) AnalyzeCodebase(ctx context.Context) (*models.QueryResult, error) {
	if err := s.requireReady(); err != nil {
		return nil, err
	}
	result, err := s.backend.AnalyzeCodebase(ctx)
	if err != nil {
		return nil, err
	}
	if s.tokens != nil {
		s.tokens.UsedTokens(result.PromptEvalCount, result.EvalCount)
	}
	return result, nil
}

func (s *Session) requireReady() error {
	if s.phases.Current() != PhaseReady {
		return ErrNotReady
	}
	return nil
}

// Close stops polling, cancels the active query and waits for background work to finish.
func (s *Session) Close() {
	// submitMu keeps a query from being started once wg.Wait may be running.
	s.submitMu.Lock()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.submitMu.Unlock()
		return
	}
	s.closed = true
	active := s.active
	s.mu.Unlock()
	s.submitMu.Unlock()

	s.poller.Stop()
	if active != nil {
		active.Cancel()
	}
	s.cancel()

	s.wg.Wait()
	<-s.poller.Done()
}
