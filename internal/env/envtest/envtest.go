// Package envtest provides in-memory capabilities for tests.
package envtest

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"orgls/internal/document"
	"orgls/internal/edit"
	"orgls/internal/env"
	"orgls/internal/manager"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// Storage keeps files in a map keyed by location.
type Storage struct {
	mu    sync.Mutex
	files map[document.Location]string
}

func NewStorage() *Storage {
	return &Storage{files: make(map[document.Location]string)}
}

func (s *Storage) ReadToString(_ context.Context, loc document.Location) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.files[loc]
	if !ok {
		return "", fmt.Errorf("%w: %s", env.ErrNotFound, loc)
	}
	return text, nil
}

func (s *Storage) Write(_ context.Context, loc document.Location, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[loc] = text
	return nil
}

func (s *Storage) Resolve(path string, base document.Location) (document.Location, error) {
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		return document.Location("file:///home/test/" + rest), nil
	}
	b, err := url.Parse(string(base))
	if err != nil {
		return "", fmt.Errorf("%w: %w", env.ErrResolution, err)
	}
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", env.ErrResolution, err)
	}
	return document.Location(b.ResolveReference(ref).String()), nil
}

// Get returns the stored text of loc, or "".
func (s *Storage) Get(loc document.Location) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.files[loc]
}

// Message is one recorded Log or Show call.
type Message struct {
	Level env.Level
	Text  string
	Shown bool
}

// Messages records messages.
type Messages struct {
	mu      sync.Mutex
	entries []Message
}

func (m *Messages) Log(_ context.Context, level env.Level, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, Message{Level: level, Text: text})
}

func (m *Messages) Show(_ context.Context, level env.Level, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, Message{Level: level, Text: text, Shown: true})
}

// All returns a copy of the recorded messages.
func (m *Messages) All() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.entries...)
}

// Contains reports whether any message contains substr.
func (m *Messages) Contains(substr string) bool {
	for _, msg := range m.All() {
		if strings.Contains(msg.Text, substr) {
			return true
		}
	}
	return false
}

// Call is one recorded Execute call.
type Call struct {
	Program string
	Payload string
}

// Process returns canned output.
type Process struct {
	mu     sync.Mutex
	Output string
	Err    error
	calls  []Call
}

func (p *Process) Execute(_ context.Context, program, payload string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, Call{Program: program, Payload: payload})
	return p.Output, p.Err
}

func (p *Process) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Call(nil), p.calls...)
}

// Pusher records client edits and accepts them unless Reject is set.
type Pusher struct {
	mu     sync.Mutex
	Reject bool
	Pushed map[document.Location][]protocol.TextEdit
}

func (p *Pusher) PushEdit(_ context.Context, loc document.Location, edits []protocol.TextEdit) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Reject {
		return fmt.Errorf("%w: stale version", env.ErrRejectedByClient)
	}
	if p.Pushed == nil {
		p.Pushed = make(map[document.Location][]protocol.TextEdit)
	}
	p.Pushed[loc] = append(p.Pushed[loc], edits...)
	return nil
}

// Host bundles in-memory capabilities, a store and a buffer engine.
type Host struct {
	Env       env.Env
	Storage   *Storage
	Messages  *Messages
	Process   *Process
	Documents *manager.DocumentManager
	Edits     *edit.Engine
}

func New() *Host {
	h := &Host{
		Storage:   NewStorage(),
		Messages:  &Messages{},
		Process:   &Process{},
		Documents: manager.NewDocumentManager(),
	}
	h.Env = env.Env{Storage: h.Storage, Process: h.Process, Messaging: h.Messages}
	h.Edits = edit.NewEngine(edit.NewBufferApplier(h.Storage, h.Documents))
	return h
}

// Open stores text at loc and opens it in the store.
func (h *Host) Open(loc document.Location, text string) {
	h.Storage.Write(context.Background(), loc, text)
	h.Documents.Insert(loc, text)
}

// Text returns the stored text of loc.
func (h *Host) Text(loc document.Location) string {
	return h.Storage.Get(loc)
}
