package manager

import (
	"sort"
	"sync"

	"orgls/internal/document"
	"orgls/internal/metrics"
	"orgls/internal/org"

	"github.com/tliron/commonlog"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

var log = commonlog.GetLogger("orgls.manager")

type entry struct {
	mu  sync.RWMutex
	doc *document.Document
}

// DocumentManager holds the open documents. Each document has its own
// lock, so readers of one document run concurrently and writers of
// different documents never wait on each other.
type DocumentManager struct {
	mu   sync.RWMutex
	docs map[document.Location]*entry

	configMu sync.Mutex
	config   org.ParseConfig
}

// NewDocumentManager creates an initialized DocumentManager.
func NewDocumentManager() *DocumentManager {
	return &DocumentManager{
		docs:   make(map[document.Location]*entry),
		config: org.DefaultParseConfig(),
	}
}

// SetDefaultConfig replaces the parse configuration used for documents
// created from now on. Open documents keep the configuration they were
// created with.
func (dm *DocumentManager) SetDefaultConfig(config org.ParseConfig) {
	dm.configMu.Lock()
	defer dm.configMu.Unlock()
	dm.config = config
}

// DefaultConfig returns the configuration new documents are parsed with.
func (dm *DocumentManager) DefaultConfig() org.ParseConfig {
	dm.configMu.Lock()
	defer dm.configMu.Unlock()
	return dm.config
}

func (dm *DocumentManager) lookup(loc document.Location) *entry {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.docs[loc]
}

// View runs fn with read access to the document at loc. It reports
// whether the document exists.
func (dm *DocumentManager) View(loc document.Location, fn func(*document.Document)) bool {
	e := dm.lookup(loc)
	if e == nil {
		return false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	fn(e.doc)
	return true
}

// With runs fn under read access and returns its result, or false when
// the document is absent.
func With[T any](dm *DocumentManager, loc document.Location, fn func(*document.Document) T) (T, bool) {
	var out T
	ok := dm.View(loc, func(doc *document.Document) {
		out = fn(doc)
	})
	return out, ok
}

// WithAndThen is With for lookups that can fail inside the document,
// such as finding the headline on a line.
func WithAndThen[T any](dm *DocumentManager, loc document.Location, fn func(*document.Document) (T, bool)) (T, bool) {
	var out T
	found := false
	dm.View(loc, func(doc *document.Document) {
		out, found = fn(doc)
	})
	return out, found
}

// Insert creates or replaces the document at loc.
func (dm *DocumentManager) Insert(loc document.Location, text string) {
	doc := document.New(text, dm.DefaultConfig())

	dm.mu.Lock()
	e, ok := dm.docs[loc]
	if !ok {
		dm.docs[loc] = &entry{doc: doc}
		metrics.Documents.Set(float64(len(dm.docs)))
	}
	dm.mu.Unlock()

	if ok {
		e.mu.Lock()
		e.doc = doc
		e.mu.Unlock()
	}
}

// Update applies a change to the document at loc. A nil range replaces
// the whole text; otherwise the range is translated through the current
// text like an incremental sync event. It returns false when the
// document is absent or the range cannot be applied.
func (dm *DocumentManager) Update(loc document.Location, rng *protocol.Range, text string) bool {
	e := dm.lookup(loc)
	if e == nil {
		log.Debugf("update of unknown document %s ignored", loc)
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if rng == nil {
		e.doc.ReplaceAll(text)
		return true
	}
	start := e.doc.OffsetOf(rng.Start)
	end := e.doc.OffsetOf(rng.End)
	if err := e.doc.ReplaceRange(start, end, text); err != nil {
		log.Warningf("update of %s failed: %v", loc, err)
		return false
	}
	return true
}

// ForEach calls fn for every open document in location order. Each
// document is read under its own lock; the store is not locked while fn
// runs.
func (dm *DocumentManager) ForEach(fn func(document.Location, *document.Document)) {
	for _, loc := range dm.Locations() {
		dm.View(loc, func(doc *document.Document) {
			fn(loc, doc)
		})
	}
}

// Locations returns the locations of all open documents, sorted.
func (dm *DocumentManager) Locations() []document.Location {
	dm.mu.RLock()
	locs := make([]document.Location, 0, len(dm.docs))
	for loc := range dm.docs {
		locs = append(locs, loc)
	}
	dm.mu.RUnlock()

	sort.Slice(locs, func(i, j int) bool { return locs[i] < locs[j] })
	return locs
}

// Contains reports whether loc is open.
func (dm *DocumentManager) Contains(loc document.Location) bool {
	return dm.lookup(loc) != nil
}

// Release frees the document at loc.
func (dm *DocumentManager) Release(loc document.Location) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	delete(dm.docs, loc)
	metrics.Documents.Set(float64(len(dm.docs)))
}

// CloseAll drops every document.
func (dm *DocumentManager) CloseAll() {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	dm.docs = make(map[document.Location]*entry)
	metrics.Documents.Set(0)
}
