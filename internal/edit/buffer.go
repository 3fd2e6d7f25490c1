package edit

import (
	"context"
	"fmt"

	"orgls/internal/document"
	"orgls/internal/env"
	"orgls/internal/manager"
)

// BufferApplier splices edits into the stored text, writes it back and
// replaces the store's copy with the result. A target whose stored text
// differs from the store's copy fails with ErrStale.
type BufferApplier struct {
	storage   env.Storage
	documents *manager.DocumentManager
}

func NewBufferApplier(storage env.Storage, documents *manager.DocumentManager) *BufferApplier {
	return &BufferApplier{storage: storage, documents: documents}
}

func (a *BufferApplier) Mode() string { return "buffer" }

func (a *BufferApplier) Apply(ctx context.Context, target document.Location, edits []Edit) error {
	text, err := readOrEmpty(ctx, a.storage, target)
	if err != nil {
		return err
	}
	// edit offsets come from the store's copy
	current, ok := manager.With(a.documents, target, func(doc *document.Document) string { return doc.Text() })
	if ok && current != text {
		return fmt.Errorf("%w: %s", ErrStale, target)
	}
	out, err := Splice(text, edits)
	if err != nil {
		return err
	}
	if err := a.storage.Write(ctx, target, out); err != nil {
		return err
	}
	// several disjoint ranges changed, so reconcile as a whole update
	a.documents.Update(target, nil, out)
	return nil
}
