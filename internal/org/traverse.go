package org

import (
	"fmt"
	"strings"
)

type Event int

const (
	Enter Event = iota
	Leave
)

// Action tells Traverse how to continue after a visit.
type Action int

const (
	Continue Action = iota
	// Skip does not descend into the children of the entered node.
	Skip
	// Stop ends the traversal.
	Stop
)

// Visitor is called on entering and leaving every node. The Action
// returned on Leave is only checked for Stop.
type Visitor func(ev Event, n *Node) Action

// Traverse walks the tree depth first. Leave is reported for every
// entered node, including skipped ones.
func (t *Tree) Traverse(v Visitor) {
	walk(t.Root, v)
}

func walk(n *Node, v Visitor) bool {
	switch v(Enter, n) {
	case Stop:
		return false
	case Skip:
	default:
		for _, c := range n.Children {
			if !walk(c, v) {
				return false
			}
		}
	}
	return v(Leave, n) != Stop
}

// Collect returns every node of the given kind in document order,
// skipping the subtrees of the kinds in prune.
func (t *Tree) Collect(kind Kind, prune ...Kind) []*Node {
	var out []*Node
	t.Traverse(func(ev Event, n *Node) Action {
		if ev != Enter {
			return Continue
		}
		if n.Kind == kind {
			out = append(out, n)
			return Continue
		}
		for _, k := range prune {
			if n.Kind == k {
				return Skip
			}
		}
		return Continue
	})
	return out
}

// Dump renders the tree as an indented outline of kinds and spans.
func (t *Tree) Dump() string {
	var b strings.Builder
	depth := 0
	t.Traverse(func(ev Event, n *Node) Action {
		if ev == Leave {
			depth--
			return Continue
		}
		fmt.Fprintf(&b, "%s%s@%d..%d", strings.Repeat("  ", depth), n.Kind, n.Start, n.End)
		if n.Name != "" {
			fmt.Fprintf(&b, " %s", n.Name)
		}
		b.WriteByte('\n')
		depth++
		return Continue
	})
	return b.String()
}
