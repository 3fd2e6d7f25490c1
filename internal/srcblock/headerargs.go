// Package srcblock interprets source blocks: header arguments, tangle
// and detangle targets, and result rendering.
package srcblock

import (
	"strings"

	"orgls/internal/org"
)

// Extract returns the value of key in a header argument string such as
// ":tangle init.el :mkdir yes". A key without a following space is
// treated as absent.
func Extract(input, key string) (string, bool) {
	i := input
	for {
		i = strings.TrimLeft(i, " \t")
		if i == "" {
			return "", false
		}
		end := strings.IndexAny(i, " \t")
		if end < 0 {
			end = len(i)
		}
		name, rest := i[:end], i[end:]
		if !strings.EqualFold(name, key) {
			i = rest
			continue
		}
		if rest == "" {
			return "", false
		}
		rest = strings.TrimLeft(rest, " \t")
		if idx := nextOption(rest); idx >= 0 {
			return strings.TrimSpace(rest[:idx]), true
		}
		return strings.TrimSpace(rest), true
	}
}

func nextOption(s string) int {
	a := strings.Index(s, " :")
	b := strings.Index(s, "\t:")
	switch {
	case a < 0:
		return b
	case b < 0:
		return a
	}
	return min(a, b)
}

// Args holds the header argument sources of a block, most specific
// first: the block parameters, the enclosing headline's header-args
// property and the file's "#+PROPERTY: header-args" keyword.
type Args struct {
	sources [3]string
}

// ArgsOf collects the header argument sources of block.
func ArgsOf(tree *org.Tree, block *org.Node) Args {
	var a Args
	a.sources[0] = block.Value
	if h := block.Ancestor(org.KindHeadline); h != nil {
		a.sources[1], _ = h.Property("header-args")
	}
	a.sources[2] = propertyKeyword(tree)
	return a
}

// NewArgs builds Args from explicit sources.
func NewArgs(block, headline, file string) Args {
	return Args{sources: [3]string{block, headline, file}}
}

// Get returns the first value of key found in the sources, or def.
func (a Args) Get(key, def string) string {
	for _, s := range a.sources {
		if v, ok := Extract(s, key); ok {
			return v
		}
	}
	return def
}

func propertyKeyword(tree *org.Tree) string {
	section := tree.Root.Section()
	if section == nil {
		return ""
	}
	for _, n := range section.Children {
		if n.Kind == org.KindKeyword && strings.EqualFold(n.Name, "PROPERTY") &&
			strings.HasPrefix(n.Value, "header-args ") {
			return n.Value
		}
	}
	return ""
}

// Blocks returns the source blocks of tree in document order.
func Blocks(tree *org.Tree) []*org.Node {
	return tree.Collect(org.KindSourceBlock, org.KindList, org.KindTable, org.KindBlock)
}

// At returns the source block starting at offset.
func At(tree *org.Tree, offset int) *org.Node {
	n := tree.NodeAt(offset, org.KindSourceBlock)
	if n == nil || (n.Start != offset && n.Begin != offset) {
		return nil
	}
	return n
}

// Comments returns the line comment delimiters of a language.
func Comments(language string) (begin, end string, ok bool) {
	switch language {
	case "c", "cpp", "c++", "go", "js", "javascript", "ts", "typescript", "rust", "vera", "jsonc":
		return "//", "", true
	case "toml", "tml", "yaml", "yml", "conf", "gitconfig", "conf-toml", "sh", "shell", "bash", "zsh", "fish", "python", "py":
		return "#", "", true
	case "lua", "sql":
		return "--", "", true
	case "lisp", "emacs-lisp", "elisp":
		return ";;", "", true
	case "xml", "html", "svg":
		return "<!--", "-->", true
	}
	return "", "", false
}

// Program returns the interpreter used to execute a language.
func Program(language string) (string, bool) {
	switch language {
	case "js", "javascript":
		return "node", true
	case "sh", "bash":
		return "bash", true
	case "py", "python":
		return "python", true
	case "fish":
		return "fish", true
	case "lua":
		return "lua", true
	}
	return "", false
}
