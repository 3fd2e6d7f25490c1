package edit

import (
	"context"
	"fmt"

	"orgls/internal/document"
	"orgls/internal/env"
	"orgls/internal/manager"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// ClientApplier translates edits of open documents into positions and
// asks the editor to apply them. The store is left alone; it catches up
// through the editor's change notifications. Targets that are not open
// are written through storage.
type ClientApplier struct {
	pusher    env.EditPusher
	storage   env.Storage
	documents *manager.DocumentManager
}

func NewClientApplier(pusher env.EditPusher, storage env.Storage, documents *manager.DocumentManager) *ClientApplier {
	return &ClientApplier{pusher: pusher, storage: storage, documents: documents}
}

func (a *ClientApplier) Mode() string { return "client" }

func (a *ClientApplier) Apply(ctx context.Context, target document.Location, edits []Edit) error {
	type translated struct {
		edits []protocol.TextEdit
		err   error
	}
	res, open := manager.With(a.documents, target, func(doc *document.Document) translated {
		out := make([]protocol.TextEdit, 0, len(edits))
		for _, ed := range edits {
			if ed.Range.End > len(doc.Text()) {
				return translated{err: fmt.Errorf("%w: %d..%d in text of length %d", ErrOutOfBounds, ed.Range.Start, ed.Range.End, len(doc.Text()))}
			}
			out = append(out, protocol.TextEdit{
				Range:   doc.RangeOf(ed.Range),
				NewText: ed.Replacement,
			})
		}
		return translated{edits: out}
	})
	if open && res.err != nil {
		return res.err
	}
	if !open {
		text, err := readOrEmpty(ctx, a.storage, target)
		if err != nil {
			return err
		}
		out, err := Splice(text, edits)
		if err != nil {
			return err
		}
		return a.storage.Write(ctx, target, out)
	}
	return a.pusher.PushEdit(ctx, target, res.edits)
}
