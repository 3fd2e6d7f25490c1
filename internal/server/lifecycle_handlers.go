package server

import (
	contextpkg "context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"orgls/internal/config"
	"orgls/internal/document"
	"orgls/internal/env"
	"orgls/internal/feature"
	"orgls/internal/scanner"
	"orgls/internal/scheduler"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

func (s *Server) initialize(
	context *glsp.Context,
	params *protocol.InitializeParams,
) (any, error) {
	s.client.bind(context)
	s.count(protocol.MethodInitialize)

	// Config
	cfg, err := config.LoadOver(s.Config(), params.InitializationOptions)
	if err != nil {
		return nil, err
	}
	s.setConfig(cfg)
	log.Infof("config: %+v", cfg)

	// Root
	if params.RootURI != nil && s.index != nil {
		root := *params.RootURI
		s.tasks.Every(time.Duration(cfg.ReindexMinutes)*time.Minute, scheduler.Task{
			Name: "index " + root,
			Execute: func(ctx contextpkg.Context) error {
				return s.indexWorkspace(ctx, root)
			},
		})
	}

	capabilities := s.handler.CreateServerCapabilities()
	syncKind := protocol.TextDocumentSyncKindIncremental
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: &protocol.True,
		Change:    &syncKind,
		Save:      &protocol.SaveOptions{IncludeText: &protocol.True},
	}
	capabilities.SemanticTokensProvider = &protocol.SemanticTokensOptions{
		Legend: feature.Legend,
		Full:   true,
		Range:  true,
	}
	capabilities.CodeLensProvider = &protocol.CodeLensOptions{ResolveProvider: &protocol.True}
	capabilities.DocumentLinkProvider = &protocol.DocumentLinkOptions{ResolveProvider: &protocol.True}
	capabilities.ExecuteCommandProvider = &protocol.ExecuteCommandOptions{Commands: s.registry.Names()}

	version := Version
	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    Name,
			Version: &version,
		},
	}, nil
}

// Version is reported to clients; the build sets it with ldflags.
var Version = "(dev) v0.0.0"

func (s *Server) initialized(
	context *glsp.Context,
	params *protocol.InitializedParams,
) error {
	s.client.bind(context)
	log.Info("client initialized")
	return nil
}

// shutdown does not wait for queued tasks: they may be waiting for the
// client's answer, which cannot arrive while this handler runs. Close
// drains them.
func (s *Server) shutdown(context *glsp.Context) error {
	s.count(protocol.MethodShutdown)
	s.checker.Close()
	return nil
}

func (s *Server) setTrace(context *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

// workspaceDidChangeConfiguration merges the settings over the current
// configuration. Open documents keep the parse configuration they were
// opened with.
func (s *Server) workspaceDidChangeConfiguration(
	context *glsp.Context,
	params *protocol.DidChangeConfigurationParams,
) error {
	s.client.bind(context)
	s.count(protocol.MethodWorkspaceDidChangeConfiguration)

	settings := params.Settings
	if m, ok := settings.(map[string]any); ok {
		if nested, ok := m[Name]; ok {
			settings = nested
		}
	}
	cfg, err := config.LoadOver(s.Config(), settings)
	if err != nil {
		s.client.Show(contextpkg.Background(), env.LevelError, err.Error())
		return nil
	}
	s.setConfig(cfg)
	return nil
}

// indexWorkspace puts the headlines of every org file below root into
// the index and drops files that no longer exist.
func (s *Server) indexWorkspace(ctx contextpkg.Context, root protocol.DocumentUri) error {
	rootURL, err := url.Parse(root)
	if err != nil || rootURL.Scheme != "file" {
		log.Warningf("not indexing workspace %s", root)
		return nil
	}
	parseConfig := s.Config().ParseConfig()

	var (
		mu   sync.Mutex
		seen = make(map[document.Location]struct{})
	)
	callback := func(path string, data []byte) error {
		loc, err := env.FileLocation(path)
		if err != nil {
			return nil
		}
		mu.Lock()
		seen[loc] = struct{}{}
		mu.Unlock()
		if s.documents.Contains(loc) {
			return nil
		}
		if err := s.index.Sync(ctx, loc, document.New(string(data), parseConfig)); err != nil {
			log.Errorf("indexing %s: %v", path, err)
		}
		return nil
	}
	if err := scanner.Scan(ctx, rootURL.Path, 4, nil, callback); err != nil {
		return fmt.Errorf("scanning %s: %w", rootURL.Path, err)
	}

	prefix, err := env.FileLocation(rootURL.Path)
	if err != nil {
		return err
	}
	known, err := s.index.Locations(ctx)
	if err != nil {
		return fmt.Errorf("listing index: %w", err)
	}
	for _, loc := range known {
		if _, ok := seen[loc]; !ok && strings.HasPrefix(string(loc), string(prefix)+"/") {
			if err := s.index.Remove(ctx, loc); err != nil {
				log.Errorf("removing %s from index: %v", loc, err)
			}
		}
	}
	log.Infof("indexed %d documents under %s", len(seen), rootURL.Path)
	return nil
}
