// Package api serves commands over HTTP. POST /api/command runs one
// command, /ws streams edits and messages, /metrics exposes Prometheus
// metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"orgls/internal/command"
	"orgls/internal/config"
	"orgls/internal/edit"
	"orgls/internal/env"
	"orgls/internal/index"
	"orgls/internal/manager"
	"orgls/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("orgls.api")

// RequestIDHeader carries the request id set by the middleware.
const RequestIDHeader = "X-Request-ID"

// Options configures a Server.
type Options struct {
	Config config.Config
	// Index is optional.
	Index *index.Index
	// Storage defaults to env.FileStorage.
	Storage env.Storage
	// Process defaults to env.ExecProcess.
	Process env.Process
	// Watch reloads documents whose files change on disk.
	Watch bool
	Now   func() time.Time
}

// Server runs commands against its own store. Edits are written through
// storage.
type Server struct {
	documents  *manager.DocumentManager
	dispatcher *command.Dispatcher
	hub        *hub
	watcher    *watcher
	router     *gin.Engine
}

// CommandRequest is the body of POST /api/command.
type CommandRequest struct {
	Command  string          `json:"command" binding:"required"`
	Argument json.RawMessage `json:"argument"`
}

// ErrorResponse is the body of a failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

func New(opts Options) (*Server, error) {
	s := &Server{
		documents: manager.NewDocumentManager(),
		hub:       newHub(),
	}
	cfg := opts.Config
	if cfg.TodoKeywords == nil && cfg.DoneKeywords == nil {
		cfg = config.Default()
	}
	s.documents.SetDefaultConfig(cfg.ParseConfig())

	storage := opts.Storage
	if storage == nil {
		storage = env.FileStorage{}
	}
	process := opts.Process
	if process == nil {
		process = env.ExecProcess{}
	}
	format := cfg.FormatOptions()
	c := &command.Context{
		Documents: s.documents,
		Env:       env.Env{Storage: storage, Process: process, Messaging: s.hub},
		Edits: edit.NewEngine(broadcastingApplier{
			Applier: edit.NewBufferApplier(storage, s.documents),
			hub:     s.hub,
		}),
		Now:    opts.Now,
		Format: &format,
	}
	if opts.Index != nil {
		c.Index = opts.Index
	}
	s.dispatcher = command.NewDispatcher(command.NewRegistry(), c)

	if opts.Watch {
		w, err := newWatcher(s.documents, s.hub)
		if err != nil {
			return nil, err
		}
		s.watcher = w
	}

	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestID())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws", s.hub.serve(s.documents.Locations))
	router.POST("/api/command", s.handleCommand)
	return router
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler { return s.router }

// requestID tags every request and response with an id, reusing the
// caller's when it sent one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set("requestID", id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func (s *Server) handleCommand(c *gin.Context) {
	metrics.Requests.WithLabelValues("http", "/api/command").Inc()

	var req CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	ctx := c.Request.Context()
	// files can change between requests
	if loc, ok := command.Target(req.Argument); ok {
		s.dispatcher.Context.Reload(ctx, loc)
	}
	result, err := s.dispatcher.Run(ctx, req.Command, req.Argument)
	if err != nil {
		log.Errorf("request %s: command %s failed: %v", c.GetString("requestID"), req.Command, err)
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, env.ErrMalformedInput):
			status = http.StatusBadRequest
		case errors.Is(err, edit.ErrStale):
			status = http.StatusConflict
		}
		c.JSON(status, ErrorResponse{Error: err.Error()})
		return
	}
	if s.watcher != nil {
		s.watcher.sync()
	}
	c.JSON(http.StatusOK, result)
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router}

	if s.watcher != nil {
		go s.watcher.run(ctx)
		defer s.watcher.Close()
	}

	errs := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", addr)
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}
