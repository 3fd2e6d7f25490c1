package server

import (
	contextpkg "context"
	"fmt"

	"orgls/internal/document"
	"orgls/internal/manager"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

func (s *Server) textDocumentDidOpen(
	context *glsp.Context,
	params *protocol.DidOpenTextDocumentParams,
) error {
	s.client.bind(context)
	s.count(protocol.MethodTextDocumentDidOpen)

	loc := location(params.TextDocument.URI)
	s.documents.Insert(loc, params.TextDocument.Text)
	s.process(loc)
	return nil
}

func (s *Server) textDocumentDidChange(
	context *glsp.Context,
	params *protocol.DidChangeTextDocumentParams,
) error {
	s.client.bind(context)
	s.count(protocol.MethodTextDocumentDidChange)

	loc := location(params.TextDocument.URI)
	for _, raw := range params.ContentChanges {
		var ok bool
		switch change := raw.(type) {
		case protocol.TextDocumentContentChangeEvent:
			ok = s.documents.Update(loc, change.Range, change.Text)
		case protocol.TextDocumentContentChangeEventWhole:
			ok = s.documents.Update(loc, nil, change.Text)
		default:
			return fmt.Errorf("unexpected change event type %T", raw)
		}
		if !ok {
			return fmt.Errorf("cannot apply change to %s", loc)
		}
	}
	s.process(loc)
	return nil
}

func (s *Server) textDocumentDidSave(
	context *glsp.Context,
	params *protocol.DidSaveTextDocumentParams,
) error {
	s.client.bind(context)
	s.count(protocol.MethodTextDocumentDidSave)

	loc := location(params.TextDocument.URI)
	if params.Text != nil {
		if !s.documents.Update(loc, nil, *params.Text) {
			s.documents.Insert(loc, *params.Text)
		}
	}
	s.process(loc)
	return nil
}

func (s *Server) textDocumentDidClose(
	context *glsp.Context,
	params *protocol.DidCloseTextDocumentParams,
) error {
	s.client.bind(context)
	s.count(protocol.MethodTextDocumentDidClose)

	s.documents.Release(location(params.TextDocument.URI))
	s.client.publishDiagnostics(params.TextDocument.URI, nil)
	return nil
}

// process refreshes what depends on the text of loc: the source block
// diagnostics and the headline index.
func (s *Server) process(loc document.Location) {
	ctx := contextpkg.Background()
	diagnostics, ok := manager.With(s.documents, loc, func(doc *document.Document) []protocol.Diagnostic {
		if s.index != nil {
			if err := s.index.Sync(ctx, loc, doc); err != nil {
				log.Errorf("indexing %s: %v", loc, err)
			}
		}
		return s.checker.Check(ctx, doc)
	})
	if !ok {
		return
	}
	s.client.publishDiagnostics(string(loc), diagnostics)
}
