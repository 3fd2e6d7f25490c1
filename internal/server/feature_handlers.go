package server

import (
	"orgls/internal/document"
	"orgls/internal/edit"
	"orgls/internal/feature"
	"orgls/internal/format"
	"orgls/internal/manager"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

func (s *Server) textDocumentFoldingRange(
	context *glsp.Context,
	params *protocol.FoldingRangeParams,
) ([]protocol.FoldingRange, error) {
	s.count(protocol.MethodTextDocumentFoldingRange)
	ranges, _ := manager.With(s.documents, location(params.TextDocument.URI), feature.FoldingRanges)
	return ranges, nil
}

func (s *Server) textDocumentDocumentSymbol(
	context *glsp.Context,
	params *protocol.DocumentSymbolParams,
) (any, error) {
	s.count(protocol.MethodTextDocumentDocumentSymbol)
	symbols, ok := manager.With(s.documents, location(params.TextDocument.URI), feature.DocumentSymbols)
	if !ok {
		return nil, nil
	}
	return symbols, nil
}

func (s *Server) textDocumentSemanticTokensFull(
	context *glsp.Context,
	params *protocol.SemanticTokensParams,
) (*protocol.SemanticTokens, error) {
	s.count(protocol.MethodTextDocumentSemanticTokensFull)
	data, ok := manager.With(s.documents, location(params.TextDocument.URI), func(doc *document.Document) []protocol.UInteger {
		return feature.SemanticTokens(doc, nil)
	})
	if !ok {
		return nil, nil
	}
	return &protocol.SemanticTokens{Data: data}, nil
}

func (s *Server) textDocumentSemanticTokensRange(
	context *glsp.Context,
	params *protocol.SemanticTokensRangeParams,
) (any, error) {
	s.count(protocol.MethodTextDocumentSemanticTokensRange)
	data, ok := manager.With(s.documents, location(params.TextDocument.URI), func(doc *document.Document) []protocol.UInteger {
		rng := document.TextRange{
			Start: doc.OffsetOf(params.Range.Start),
			End:   doc.OffsetOf(params.Range.End),
		}
		return feature.SemanticTokens(doc, &rng)
	})
	if !ok {
		return nil, nil
	}
	return &protocol.SemanticTokens{Data: data}, nil
}

func (s *Server) textDocumentCodeLens(
	context *glsp.Context,
	params *protocol.CodeLensParams,
) ([]protocol.CodeLens, error) {
	s.count(protocol.MethodTextDocumentCodeLens)
	loc := location(params.TextDocument.URI)
	lenses, _ := manager.With(s.documents, loc, func(doc *document.Document) []protocol.CodeLens {
		return feature.CodeLenses(loc, doc)
	})
	return lenses, nil
}

func (s *Server) codeLensResolve(
	context *glsp.Context,
	params *protocol.CodeLens,
) (*protocol.CodeLens, error) {
	s.count(protocol.MethodCodeLensResolve)
	lens := feature.ResolveCodeLens(*params)
	return &lens, nil
}

func (s *Server) textDocumentDocumentLink(
	context *glsp.Context,
	params *protocol.DocumentLinkParams,
) ([]protocol.DocumentLink, error) {
	s.count(protocol.MethodTextDocumentDocumentLink)
	loc := location(params.TextDocument.URI)
	links, _ := manager.With(s.documents, loc, func(doc *document.Document) []protocol.DocumentLink {
		return feature.DocumentLinks(loc, doc)
	})
	return links, nil
}

func (s *Server) documentLinkResolve(
	context *glsp.Context,
	params *protocol.DocumentLink,
) (*protocol.DocumentLink, error) {
	s.count(protocol.MethodDocumentLinkResolve)
	link := feature.ResolveLink(s.documents, s.env.Storage, *params)
	return &link, nil
}

func (s *Server) textDocumentReferences(
	context *glsp.Context,
	params *protocol.ReferenceParams,
) ([]protocol.Location, error) {
	s.count(protocol.MethodTextDocumentReferences)
	return feature.References(s.documents, location(params.TextDocument.URI), params.Position), nil
}

func (s *Server) textDocumentFormatting(
	context *glsp.Context,
	params *protocol.DocumentFormattingParams,
) ([]protocol.TextEdit, error) {
	s.count(protocol.MethodTextDocumentFormatting)
	loc := location(params.TextDocument.URI)
	opts := s.Config().FormatOptions()
	edits, _ := manager.With(s.documents, loc, func(doc *document.Document) []protocol.TextEdit {
		return textEdits(doc, format.Edits(loc, doc.Tree(), opts))
	})
	return edits, nil
}

func textEdits(doc *document.Document, edits []edit.Edit) []protocol.TextEdit {
	out := make([]protocol.TextEdit, 0, len(edits))
	for _, e := range edits {
		out = append(out, protocol.TextEdit{
			Range:   doc.RangeOf(e.Range),
			NewText: e.Replacement,
		})
	}
	return out
}
