// Package bridge exposes the language server to a host that embeds it in
// process. The host feeds requests and notifications in and answers the
// server's own calls through Client.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"

	"orgls/internal/server"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
)

var log = commonlog.GetLogger("orgls.bridge")

// ErrMethodNotFound is returned for methods the server does not handle.
var ErrMethodNotFound = fmt.Errorf("method not found")

// ErrInvalidParams is returned when params do not decode for the method.
var ErrInvalidParams = fmt.Errorf("invalid params")

// Client is implemented by the embedding host.
type Client interface {
	// Notify delivers a server notification such as window/logMessage.
	Notify(ctx context.Context, method string, params any)
	// Call performs a server request such as workspace/applyEdit and
	// decodes the answer into result.
	Call(ctx context.Context, method string, params any, result any) error
}

// Bridge drives a server from host calls. Because the host answers
// Call directly, commands run inline and return their results.
type Bridge struct {
	client Client
	server *server.Server
}

// New returns a bridge serving client. opts.Surface and opts.Inline are
// set by the bridge.
func New(client Client, opts server.Options) *Bridge {
	opts.Surface = "bridge"
	opts.Inline = true
	return &Bridge{client: client, server: server.New(opts)}
}

// Server returns the underlying server.
func (b *Bridge) Server() *server.Server { return b.server }

// Close releases the server's resources.
func (b *Bridge) Close() { b.server.Close() }

// OnRequest handles a request and returns its result.
func (b *Bridge) OnRequest(ctx context.Context, method string, params json.RawMessage) (any, error) {
	return b.handle(ctx, method, params)
}

// OnNotification handles a notification. Errors are logged, since a
// notification has nobody to answer to.
func (b *Bridge) OnNotification(ctx context.Context, method string, params json.RawMessage) {
	if _, err := b.handle(ctx, method, params); err != nil {
		log.Errorf("notification %s: %v", method, err)
	}
}

func (b *Bridge) handle(ctx context.Context, method string, params json.RawMessage) (any, error) {
	if len(params) == 0 {
		params = json.RawMessage("null")
	}
	r, validMethod, validParams, err := b.server.Handler().Handle(&glsp.Context{
		Method: method,
		Params: params,
		Notify: func(method string, params any) {
			b.client.Notify(ctx, method, params)
		},
		Call: func(method string, params any, result any) {
			if err := b.client.Call(ctx, method, params, result); err != nil {
				log.Errorf("call %s: %v", method, err)
			}
		},
	})
	switch {
	case !validMethod:
		return nil, fmt.Errorf("%w: %s", ErrMethodNotFound, method)
	case !validParams:
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidParams, method, err)
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidParams, method)
	}
	return r, err
}
