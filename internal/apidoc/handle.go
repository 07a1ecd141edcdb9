package apidoc

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot is one generation of the loaded document. Exactly one of Doc
// and Err is set.
type Snapshot struct {
	Doc      *Document
	Err      error
	Source   string
	LoadedAt time.Time
	Revision uint64
}

// Handle owns the current document snapshot. Readers call Current and work
// with the returned snapshot for the whole request; reloads swap the
// pointer and never touch a published snapshot.
type Handle struct {
	source  string
	logger  *slog.Logger
	current atomic.Pointer[Snapshot]

	// mu serializes writers so revisions are published in order.
	mu       sync.Mutex
	revision uint64
}

// NewHandle creates a handle for the document at source. Nothing is loaded
// until Reload or Store is called.
func NewHandle(source string, logger *slog.Logger) *Handle {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handle{source: source, logger: logger}
	h.current.Store(&Snapshot{Source: source, Err: &LoadError{Code: InputError, Message: "document not loaded", Location: source}})
	return h
}

// Source returns the file path the handle loads from.
func (h *Handle) Source() string {
	return h.source
}

// Current returns the snapshot readers should use.
func (h *Handle) Current() *Snapshot {
	return h.current.Load()
}

// Reload loads the source file and publishes the result. A failed load is
// published too, so requests fail until a later load succeeds.
func (h *Handle) Reload(ctx context.Context) *Snapshot {
	doc, err := LoadFile(ctx, h.source)
	snap := h.Store(doc, err)
	if err != nil {
		h.logger.Error("API document failed to load", "source", h.source, "error", err)
	} else {
		h.logger.Info("API document loaded",
			"source", h.source,
			"title", doc.Title,
			"paths", len(doc.Paths),
			"revision", snap.Revision,
		)
	}
	return snap
}

// Store publishes doc (or err) as the new snapshot.
func (h *Handle) Store(doc *Document, err error) *Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.revision++
	snap := &Snapshot{
		Source:   h.source,
		LoadedAt: time.Now(),
		Revision: h.revision,
	}
	if err != nil {
		snap.Err = err
	} else {
		snap.Doc = doc
	}
	h.current.Store(snap)
	return snap
}
