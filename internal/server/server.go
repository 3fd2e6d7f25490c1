// Package server implements the language server on top of glsp. The same
// handler backs the stdio server and the in-process bridge.
package server

import (
	"sync"
	"time"

	"orgls/internal/command"
	"orgls/internal/config"
	"orgls/internal/document"
	"orgls/internal/edit"
	"orgls/internal/env"
	"orgls/internal/index"
	"orgls/internal/manager"
	"orgls/internal/metrics"
	"orgls/internal/scheduler"
	"orgls/internal/srccheck"

	"github.com/tliron/commonlog"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"
)

var log = commonlog.GetLogger("orgls.server")

// Name is the server name reported to clients and used for glsp's logger.
const Name = "orgls"

// Options configures a Server.
type Options struct {
	// Config is the base configuration; initialization options and
	// configuration changes are merged over it.
	Config config.Config
	// Index is the optional headline index kept in sync with open
	// documents.
	Index *index.Index
	// Storage defaults to env.FileStorage.
	Storage env.Storage
	// Process defaults to env.ExecProcess.
	Process env.Process
	// Surface labels the request metrics, "lsp" when empty.
	Surface string
	// Inline runs editing commands on the request goroutine. Only hosts
	// that can answer workspace/applyEdit while a request is in flight
	// may set it; glsp's stdio loop cannot.
	Inline bool
	// Now overrides the clock of commands.
	Now func() time.Time
}

// Server holds the state shared by all requests of one connection.
type Server struct {
	handler   *protocol.Handler
	documents *manager.DocumentManager
	registry  *command.Registry
	checker   *srccheck.Checker
	index     *index.Index
	client    *client
	env       env.Env
	edits     *edit.Engine
	surface   string
	inline    bool
	now       func() time.Time

	mu     sync.Mutex
	config config.Config

	// tasks runs editing commands and workspace indexing in the
	// background, one at a time.
	tasks *scheduler.Scheduler
}

func New(opts Options) *Server {
	s := &Server{
		documents: manager.NewDocumentManager(),
		registry:  command.NewRegistry(),
		checker:   srccheck.NewChecker(4),
		tasks:     scheduler.New(64),
		index:     opts.Index,
		client:    &client{},
		surface:   opts.Surface,
		inline:    opts.Inline,
		now:       opts.Now,
		config:    opts.Config,
	}
	if s.surface == "" {
		s.surface = "lsp"
	}
	if s.config.TodoKeywords == nil && s.config.DoneKeywords == nil {
		s.config = config.Default()
	}
	s.documents.SetDefaultConfig(s.config.ParseConfig())

	storage := opts.Storage
	if storage == nil {
		storage = env.FileStorage{}
	}
	process := opts.Process
	if process == nil {
		process = env.ExecProcess{}
	}
	s.env = env.Env{Storage: storage, Process: process, Messaging: s.client}
	s.edits = edit.NewEngine(edit.NewClientApplier(s.client, storage, s.documents))

	s.handler = &protocol.Handler{
		Initialize:                      s.initialize,
		Initialized:                     s.initialized,
		Shutdown:                        s.shutdown,
		SetTrace:                        s.setTrace,
		WorkspaceDidChangeConfiguration: s.workspaceDidChangeConfiguration,
		WorkspaceExecuteCommand:         s.workspaceExecuteCommand,
		TextDocumentDidOpen:             s.textDocumentDidOpen,
		TextDocumentDidChange:           s.textDocumentDidChange,
		TextDocumentDidSave:             s.textDocumentDidSave,
		TextDocumentDidClose:            s.textDocumentDidClose,
		TextDocumentFoldingRange:        s.textDocumentFoldingRange,
		TextDocumentDocumentSymbol:      s.textDocumentDocumentSymbol,
		TextDocumentSemanticTokensFull:  s.textDocumentSemanticTokensFull,
		TextDocumentSemanticTokensRange: s.textDocumentSemanticTokensRange,
		TextDocumentCodeLens:            s.textDocumentCodeLens,
		CodeLensResolve:                 s.codeLensResolve,
		TextDocumentDocumentLink:        s.textDocumentDocumentLink,
		DocumentLinkResolve:             s.documentLinkResolve,
		TextDocumentReferences:          s.textDocumentReferences,
		TextDocumentFormatting:          s.textDocumentFormatting,
	}
	return s
}

// Handler returns the protocol handler, for hosts that drive requests
// themselves.
func (s *Server) Handler() *protocol.Handler { return s.handler }

// Documents returns the document store.
func (s *Server) Documents() *manager.DocumentManager { return s.documents }

// RunStdio serves the protocol on stdin and stdout until the client
// disconnects.
func (s *Server) RunStdio() error {
	defer s.Close()
	return server.NewServer(s.handler, Name, false).RunStdio()
}

// Wait blocks until queued background tasks are done.
func (s *Server) Wait() { s.tasks.Wait() }

// Close finishes queued background tasks and releases parsers and
// documents.
func (s *Server) Close() {
	s.tasks.Stop()
	s.checker.Close()
	s.documents.CloseAll()
}

// Config returns the current configuration.
func (s *Server) Config() config.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config
}

func (s *Server) setConfig(cfg config.Config) {
	s.mu.Lock()
	s.config = cfg
	s.mu.Unlock()
	s.documents.SetDefaultConfig(cfg.ParseConfig())
}

// dispatcher returns a dispatcher bound to the current configuration.
func (s *Server) dispatcher() *command.Dispatcher {
	opts := s.Config().FormatOptions()
	c := &command.Context{
		Documents: s.documents,
		Env:       s.env,
		Edits:     s.edits,
		Now:       s.now,
		Format:    &opts,
	}
	if s.index != nil {
		c.Index = s.index
	}
	return command.NewDispatcher(s.registry, c)
}

func (s *Server) count(method protocol.Method) {
	metrics.Requests.WithLabelValues(s.surface, string(method)).Inc()
}

func location(uri protocol.DocumentUri) document.Location {
	return document.Location(uri)
}
