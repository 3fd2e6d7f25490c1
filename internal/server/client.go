package server

import (
	"context"
	"fmt"
	"sync"

	"orgls/internal/document"
	"orgls/internal/env"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// client talks back to the editor through the connection of the most
// recent request. It is the Messaging and EditPusher of the server's Env.
type client struct {
	mu     sync.Mutex
	notify glsp.NotifyFunc
	call   glsp.CallFunc
}

// bind remembers the callbacks of a request context.
func (c *client) bind(context *glsp.Context) {
	if context == nil || context.Notify == nil {
		return
	}
	c.mu.Lock()
	c.notify, c.call = context.Notify, context.Call
	c.mu.Unlock()
}

func (c *client) funcs() (glsp.NotifyFunc, glsp.CallFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.notify, c.call
}

func (c *client) Log(ctx context.Context, level env.Level, text string) {
	env.LogMessenger{}.Log(ctx, level, text)
	if notify, _ := c.funcs(); notify != nil {
		notify(protocol.ServerWindowLogMessage, protocol.LogMessageParams{
			Type:    level.MessageType(),
			Message: text,
		})
	}
}

func (c *client) Show(ctx context.Context, level env.Level, text string) {
	env.LogMessenger{}.Log(ctx, level, text)
	if notify, _ := c.funcs(); notify != nil {
		notify(protocol.ServerWindowShowMessage, protocol.ShowMessageParams{
			Type:    level.MessageType(),
			Message: text,
		})
	}
}

// PushEdit asks the editor to apply edits to loc and waits for its
// answer. A refusal or a failed call is ErrRejectedByClient.
func (c *client) PushEdit(_ context.Context, loc document.Location, edits []protocol.TextEdit) error {
	_, call := c.funcs()
	if call == nil {
		return fmt.Errorf("%w: no client connected", env.ErrRejectedByClient)
	}
	label := "orgls"
	var response protocol.ApplyWorkspaceEditResponse
	call(protocol.ServerWorkspaceApplyEdit, protocol.ApplyWorkspaceEditParams{
		Label: &label,
		Edit: protocol.WorkspaceEdit{
			Changes: map[protocol.DocumentUri][]protocol.TextEdit{string(loc): edits},
		},
	}, &response)
	if !response.Applied {
		reason := "no reason given"
		if response.FailureReason != nil {
			reason = *response.FailureReason
		}
		return fmt.Errorf("%w: %s: %s", env.ErrRejectedByClient, loc, reason)
	}
	return nil
}

// publishDiagnostics replaces the diagnostics of uri. An empty list
// clears them.
func (c *client) publishDiagnostics(uri protocol.DocumentUri, diagnostics []protocol.Diagnostic) {
	notify, _ := c.funcs()
	if notify == nil {
		return
	}
	if diagnostics == nil {
		diagnostics = []protocol.Diagnostic{}
	}
	notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}
