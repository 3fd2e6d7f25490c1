package manager_test

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"orgls/internal/document"
	"orgls/internal/manager"
	"orgls/internal/org"
	"orgls/internal/textpos"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

const loc = document.Location("test://test.org")

func TestIncrementalUpdate(t *testing.T) {
	dm := manager.NewDocumentManager()
	dm.Insert(loc, "* a")

	drawer := "\n:LOGBOOK:\nCLOCK: [2000-01-01 Sat 00:00]\n:END:\n"
	at := protocol.Position{Line: 0, Character: 3}
	if !dm.Update(loc, &protocol.Range{Start: at, End: at}, drawer) {
		t.Fatalf("Update returned false")
	}

	text, ok := manager.With(dm, loc, func(doc *document.Document) string { return doc.Text() })
	if !ok {
		t.Fatalf("document disappeared")
	}
	if text != "* a"+drawer {
		t.Fatalf("text = %q", text)
	}
	line, _ := manager.With(dm, loc, func(doc *document.Document) int {
		return doc.LineOf(strings.Index(doc.Text(), ":LOGBOOK:"))
	})
	if line != 1 {
		t.Errorf("drawer starts on line %d, want 1", line)
	}
}

func TestWholeDocumentUpdate(t *testing.T) {
	dm := manager.NewDocumentManager()
	dm.Insert(loc, "old")
	dm.Update(loc, nil, "new\ntext")

	starts, _ := manager.With(dm, loc, func(doc *document.Document) []int { return doc.LineStarts() })
	if len(starts) != 2 || starts[1] != 4 {
		t.Errorf("line starts not rebuilt: %v", starts)
	}
}

func TestAbsentDocument(t *testing.T) {
	dm := manager.NewDocumentManager()

	if _, ok := manager.With(dm, loc, func(doc *document.Document) int { return 1 }); ok {
		t.Errorf("With reported a missing document as present")
	}
	if dm.Update(loc, nil, "x") {
		t.Errorf("Update of a missing document returned true")
	}
	if dm.Contains(loc) {
		t.Errorf("Update created a document")
	}
}

func TestWithAndThen(t *testing.T) {
	dm := manager.NewDocumentManager()
	dm.Insert(loc, "text\n* a\n")

	find := func(line int) (string, bool) {
		return manager.WithAndThen(dm, loc, func(doc *document.Document) (string, bool) {
			h := doc.HeadlineAt(line)
			if h == nil {
				return "", false
			}
			return doc.Tree().TitleOf(h), true
		})
	}
	if _, ok := find(1); ok {
		t.Errorf("expected no headline on line 1")
	}
	if title, ok := find(2); !ok || title != "a" {
		t.Errorf("find(2) = %q, %v", title, ok)
	}
}

func TestDefaultConfigIsNotRetroactive(t *testing.T) {
	dm := manager.NewDocumentManager()
	dm.Insert("a.org", "* NEXT task")
	dm.SetDefaultConfig(org.ParseConfig{TodoKeywords: []string{"NEXT"}})
	dm.Insert("b.org", "* NEXT task")

	keyword := func(l document.Location) string {
		kw, _ := manager.With(dm, l, func(doc *document.Document) string {
			tree := doc.Tree()
			return tree.KeywordOf(tree.Root.Headlines()[0])
		})
		return kw
	}
	if got := keyword("a.org"); got != "" {
		t.Errorf("open document was reparsed with the new config: %q", got)
	}
	if got := keyword("b.org"); got != "NEXT" {
		t.Errorf("new document ignored the new config: %q", got)
	}
}

func TestConcurrentUpdatesStayConsistent(t *testing.T) {
	dm := manager.NewDocumentManager()
	locs := []document.Location{"a.org", "b.org"}
	for _, l := range locs {
		dm.Insert(l, "")
	}

	const n = 200
	var wg sync.WaitGroup
	for _, l := range locs {
		l := l
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < n; i++ {
				end, _ := manager.With(dm, l, func(doc *document.Document) protocol.Position {
					return doc.PositionOf(len(doc.Text()))
				})
				dm.Update(l, &protocol.Range{Start: end, End: end}, fmt.Sprintf("* %d\n", i))
			}
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < n; i++ {
				dm.ForEach(func(_ document.Location, doc *document.Document) {
					if len(doc.LineStarts()) != len(textpos.LineStarts(doc.Text())) {
						t.Errorf("line index out of sync with text")
					}
				})
			}
		}()
	}
	wg.Wait()

	for _, l := range locs {
		count, _ := manager.With(dm, l, func(doc *document.Document) int {
			return len(doc.Tree().Root.Headlines())
		})
		if count != n {
			t.Errorf("%s has %d headlines, want %d", l, count, n)
		}
	}
}

func TestForEachOrderAndRelease(t *testing.T) {
	dm := manager.NewDocumentManager()
	dm.Insert("b.org", "")
	dm.Insert("a.org", "")
	dm.Insert("c.org", "")
	dm.Release("c.org")

	var seen []document.Location
	dm.ForEach(func(l document.Location, _ *document.Document) { seen = append(seen, l) })
	if len(seen) != 2 || seen[0] != "a.org" || seen[1] != "b.org" {
		t.Errorf("ForEach visited %v", seen)
	}
}
