// Package srccheck reports syntax errors in source blocks whose language
// has a tree-sitter grammar.
package srccheck

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"orgls/internal/document"
	"orgls/internal/metrics"
	"orgls/internal/org"
	"orgls/internal/srcblock"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/bash"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/lua"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/yaml"
	"github.com/tliron/commonlog"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

var log = commonlog.GetLogger("orgls.srccheck")

// Source is the diagnostic source shown by clients.
const Source = "orgls"

// maxErrors bounds the diagnostics reported for one block.
const maxErrors = 20

var grammars = map[string]func() *sitter.Language{
	"sh":         bash.GetLanguage,
	"shell":      bash.GetLanguage,
	"bash":       bash.GetLanguage,
	"python":     python.GetLanguage,
	"py":         python.GetLanguage,
	"js":         javascript.GetLanguage,
	"javascript": javascript.GetLanguage,
	"go":         golang.GetLanguage,
	"lua":        lua.GetLanguage,
	"yaml":       yaml.GetLanguage,
	"yml":        yaml.GetLanguage,
}

// Supported reports whether blocks in language are checked.
func Supported(language string) bool {
	_, ok := grammars[strings.ToLower(language)]
	return ok
}

// pool keeps idle parsers of one language.
type pool struct {
	lang    *sitter.Language
	parsers chan *sitter.Parser
}

func (p *pool) get() *sitter.Parser {
	select {
	case parser := <-p.parsers:
		return parser
	default:
		parser := sitter.NewParser()
		parser.SetLanguage(p.lang)
		return parser
	}
}

func (p *pool) put(parser *sitter.Parser) {
	select {
	case p.parsers <- parser:
	default:
		parser.Close()
	}
}

// Checker parses source blocks with pooled tree-sitter parsers. It is
// safe for concurrent use.
type Checker struct {
	size  int
	mu    sync.Mutex
	pools map[string]*pool
}

// NewChecker keeps up to size idle parsers per language.
func NewChecker(size int) *Checker {
	return &Checker{size: max(size, 1), pools: make(map[string]*pool)}
}

func (c *Checker) pool(language string) (*pool, bool) {
	language = strings.ToLower(language)
	grammar, ok := grammars[language]
	if !ok {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pools[language]
	if !ok {
		p = &pool{lang: grammar(), parsers: make(chan *sitter.Parser, c.size)}
		c.pools[language] = p
	}
	return p, true
}

// Close releases the idle parsers.
func (c *Checker) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.pools {
	drain:
		for {
			select {
			case parser := <-p.parsers:
				parser.Close()
			default:
				break drain
			}
		}
	}
	c.pools = make(map[string]*pool)
}

// Check returns one diagnostic per syntax error in the source blocks of
// doc. Blocks in languages without a grammar are skipped.
func (c *Checker) Check(ctx context.Context, doc *document.Document) []protocol.Diagnostic {
	diagnostics := []protocol.Diagnostic{}
	tree := doc.Tree()
	for _, block := range srcblock.Blocks(tree) {
		p, ok := c.pool(block.Language)
		if !ok || block.Contents.Empty() {
			continue
		}
		errs, err := c.parse(ctx, p, tree.ValueOf(block))
		if err != nil {
			log.Warningf("cannot parse %s block at %d: %v", block.Language, block.Begin, err)
			continue
		}
		metrics.SyntaxErrors.WithLabelValues(strings.ToLower(block.Language)).Add(float64(len(errs)))
		for _, e := range errs {
			diagnostics = append(diagnostics, e.diagnostic(doc, block))
		}
	}
	return diagnostics
}

type syntaxError struct {
	start, end int
	message    string
}

func (e syntaxError) diagnostic(doc *document.Document, block *org.Node) protocol.Diagnostic {
	severity := protocol.DiagnosticSeverityError
	source := Source
	base := block.Contents.Start
	return protocol.Diagnostic{
		Range:    doc.RangeOf(document.TextRange{Start: base + e.start, End: base + e.end}),
		Severity: &severity,
		Source:   &source,
		Message:  e.message,
	}
}

func (c *Checker) parse(ctx context.Context, p *pool, content string) ([]syntaxError, error) {
	parser := p.get()
	defer p.put(parser)

	source := []byte(content)
	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	var errs []syntaxError
	collect(tree.RootNode(), source, &errs, 0)
	return errs, nil
}

// collect walks the subtrees containing errors and records every ERROR
// and MISSING node.
func collect(node *sitter.Node, source []byte, errs *[]syntaxError, depth int) {
	if depth > 1000 || len(*errs) >= maxErrors || !node.HasError() && !node.IsMissing() {
		return
	}
	if node.IsError() || node.IsMissing() {
		start, end := int(node.StartByte()), min(int(node.EndByte()), len(source))
		msg := "Syntax error"
		switch {
		case node.IsMissing():
			msg = fmt.Sprintf("Missing %s", node.Type())
		case end > start && end-start < 50:
			msg = fmt.Sprintf("Unexpected %q", source[start:end])
		}
		*errs = append(*errs, syntaxError{start: start, end: end, message: msg})
		if node.IsMissing() {
			return
		}
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		collect(node.Child(i), source, errs, depth+1)
	}
}
