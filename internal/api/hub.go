package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"orgls/internal/document"
	"orgls/internal/edit"
	"orgls/internal/env"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Event is sent over WebSocket to update clients.
type Event struct {
	Op        string              `json:"op"`                  // "init", "edit", "message", "reload", "release"
	Documents []document.Location `json:"documents,omitempty"` // for "init"
	Target    document.Location   `json:"target,omitempty"`    // for edit/reload/release
	Edits     int                 `json:"edits,omitempty"`     // for "edit"
	Level     string              `json:"level,omitempty"`     // for "message"
	Message   string              `json:"message,omitempty"`   // for "message"
}

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

const (
	writeWait  = 5 * time.Second
	sendBuffer = 16
)

// subscriber is one WebSocket client. Only its writer goroutine writes
// to conn.
type subscriber struct {
	conn *websocket.Conn
	send chan []byte
}

func (sub *subscriber) write(data []byte) error {
	sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return sub.conn.WriteMessage(websocket.TextMessage, data)
}

// writer sends queued events until the hub closes send.
func (sub *subscriber) writer() {
	defer sub.conn.Close()
	for data := range sub.send {
		if err := sub.write(data); err != nil {
			log.Warningf("broadcast error: %v", err)
			return
		}
	}
}

// hub fans events out to the connected WebSocket clients.
type hub struct {
	mu      sync.Mutex
	clients map[*subscriber]bool
}

func newHub() *hub {
	return &hub{clients: make(map[*subscriber]bool)}
}

// broadcast marshals an event and queues it for all clients. A client
// whose queue is full is dropped.
func (h *hub) broadcast(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Errorf("marshal event: %v", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.clients {
		select {
		case sub.send <- data:
		default:
			log.Warning("dropping slow websocket client")
			h.removeLocked(sub)
		}
	}
}

func (h *hub) removeLocked(sub *subscriber) {
	if h.clients[sub] {
		delete(h.clients, sub)
		close(sub.send)
	}
}

func (h *hub) remove(sub *subscriber) {
	h.mu.Lock()
	h.removeLocked(sub)
	h.mu.Unlock()
}

// serve upgrades the request and sends the open documents first.
func (h *hub) serve(snapshot func() []document.Location) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warningf("ws upgrade error: %v", err)
			return
		}
		sub := &subscriber{conn: conn, send: make(chan []byte, sendBuffer)}

		// register before the snapshot so no later event is missed
		h.mu.Lock()
		h.clients[sub] = true
		h.mu.Unlock()

		data, err := json.Marshal(Event{Op: "init", Documents: snapshot()})
		if err == nil {
			err = sub.write(data)
		}
		if err != nil {
			log.Warningf("ws init error: %v", err)
			h.remove(sub)
			conn.Close()
			return
		}
		go sub.writer()
		defer h.remove(sub)

		// keep connection open
		for {
			if _, _, err := conn.NextReader(); err != nil {
				break
			}
		}
	}
}

// Log and Show make the hub the Messaging of the HTTP host: messages are
// logged and shown messages also reach the WebSocket clients.
func (h *hub) Log(ctx context.Context, level env.Level, text string) {
	env.LogMessenger{}.Log(ctx, level, text)
}

func (h *hub) Show(ctx context.Context, level env.Level, text string) {
	env.LogMessenger{}.Log(ctx, level, text)
	h.broadcast(Event{Op: "message", Level: level.String(), Message: text})
}

// broadcastingApplier reports every applied batch to the hub.
type broadcastingApplier struct {
	edit.Applier
	hub *hub
}

func (a broadcastingApplier) Apply(ctx context.Context, target document.Location, edits []edit.Edit) error {
	if err := a.Applier.Apply(ctx, target, edits); err != nil {
		return err
	}
	a.hub.broadcast(Event{Op: "edit", Target: target, Edits: len(edits)})
	return nil
}
