package filesystem

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/veritas-labs/lexquery/internal/core/domain"
	"github.com/veritas-labs/lexquery/internal/core/ports/driven"
	"github.com/veritas-labs/lexquery/internal/core/ports/driving"
	"github.com/veritas-labs/lexquery/internal/logger"
)

const defaultRescanInterval = 5 * time.Minute

// Syncer keeps the corpus in step with a source. An initial walk
// ingests files that are new or changed since the last run, live
// changes arrive through the watcher, and a periodic rescan catches
// anything the watcher missed.
//
// Per-document failures are logged and skipped; Run only returns on
// setup failure or context cancellation.
type Syncer struct {
	source    driven.CorpusSource
	ingest    driving.IngestService
	documents driving.DocumentService
	rescan    time.Duration

	// known maps each ingested URI to the modification time recorded
	// at ingest. Only Run's goroutine touches it.
	known map[string]time.Time
}

// SyncerOption configures a Syncer.
type SyncerOption func(*Syncer)

// WithRescanInterval sets how often the full walk is repeated while
// watching. Zero or negative disables rescans.
func WithRescanInterval(d time.Duration) SyncerOption {
	return func(s *Syncer) {
		s.rescan = d
	}
}

// NewSyncer creates a syncer over the given source.
func NewSyncer(source driven.CorpusSource, ingest driving.IngestService, documents driving.DocumentService, opts ...SyncerOption) *Syncer {
	s := &Syncer{
		source:    source,
		ingest:    ingest,
		documents: documents,
		rescan:    defaultRescanInterval,
		known:     make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run blocks until the context is cancelled or the source closes.
// Watching begins before the initial walk so changes made during the
// walk are not lost.
func (s *Syncer) Run(ctx context.Context) error {
	changes, err := s.source.Watch(ctx)
	if err != nil {
		return fmt.Errorf("watching corpus: %w", err)
	}

	if err := s.seed(ctx); err != nil {
		return err
	}
	if err := s.walk(ctx); err != nil {
		return err
	}

	var tick <-chan time.Time
	if s.rescan > 0 {
		ticker := time.NewTicker(s.rescan)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case change, ok := <-changes:
			if !ok {
				return ctx.Err()
			}
			s.apply(ctx, change)
		case <-tick:
			if err := s.walk(ctx); err != nil {
				return err
			}
		}
	}
}

// SyncOnce performs a single reconciling walk without watching.
func (s *Syncer) SyncOnce(ctx context.Context) error {
	if err := s.seed(ctx); err != nil {
		return err
	}
	return s.walk(ctx)
}

// seed loads the modification baseline from the document store, so a
// restart does not re-embed an unchanged corpus.
func (s *Syncer) seed(ctx context.Context) error {
	infos, err := s.documents.List(ctx)
	if err != nil {
		return fmt.Errorf("listing documents: %w", err)
	}
	s.known = make(map[string]time.Time, len(infos))
	for _, info := range infos {
		if info.SourceType != "filesystem" {
			continue
		}
		s.known[info.URI] = info.UpdatedAt
	}
	return nil
}

// walk runs one full pass over the source, ingesting new and changed
// documents, then removes documents whose files are gone. Removal is
// skipped when the walk was cut short, because an incomplete pass
// cannot tell vanished from unvisited.
func (s *Syncer) walk(ctx context.Context) error {
	docs, errs := s.source.Walk(ctx)
	seen := make(map[string]struct{})

	for docs != nil || errs != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-docs:
			if !ok {
				docs = nil
				continue
			}
			seen[raw.URI] = struct{}{}
			if s.changed(&raw) {
				s.ingestOne(ctx, &raw)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warn("corpus walk: %v", err)
		}
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	s.removeVanished(ctx, seen)
	return nil
}

// apply handles one watcher event.
func (s *Syncer) apply(ctx context.Context, change domain.CorpusChange) {
	switch change.Type {
	case domain.ChangeDeleted:
		s.remove(ctx, change.Document.URI)
	case domain.ChangeCreated, domain.ChangeUpdated:
		// The watcher already debounced; an event means the file
		// really changed, so no modification-time check here.
		raw := change.Document
		s.ingestOne(ctx, &raw)
	}
}

// changed reports whether the document was modified after its last
// ingest. Unknown URIs and documents without a modification time
// always count as changed.
func (s *Syncer) changed(raw *domain.RawDocument) bool {
	last, ok := s.known[raw.URI]
	if !ok {
		return true
	}
	mod, ok := modifiedAt(raw)
	if !ok {
		return true
	}
	return mod.After(last)
}

func (s *Syncer) ingestOne(ctx context.Context, raw *domain.RawDocument) {
	result, err := s.ingest.Ingest(ctx, raw)
	if err != nil {
		logger.Warn("ingest %s: %v", raw.URI, err)
		return
	}

	stamp := time.Now()
	if mod, ok := modifiedAt(raw); ok {
		stamp = mod
	}
	s.known[raw.URI] = stamp

	if result.Replaced {
		logger.Info("reindexed %s (%d chunks)", raw.URI, result.ChunkCount)
	} else {
		logger.Info("indexed %s (%d chunks)", raw.URI, result.ChunkCount)
	}
}

func (s *Syncer) remove(ctx context.Context, uri string) {
	if err := s.ingest.RemoveByURI(ctx, uri); err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			logger.Warn("remove %s: %v", uri, err)
			return
		}
	} else {
		logger.Info("removed %s", uri)
	}
	delete(s.known, uri)
}

// removeVanished drops documents the walk no longer produced. A file
// that still exists on disk is kept even when unvisited: it may have
// grown past the size bound or changed type, and a stale copy beats a
// silent deletion.
func (s *Syncer) removeVanished(ctx context.Context, seen map[string]struct{}) {
	for uri := range s.known {
		if _, ok := seen[uri]; ok {
			continue
		}
		if path, ok := pathForURI(uri); ok {
			if _, err := os.Stat(path); err == nil {
				continue
			}
		}
		s.remove(ctx, uri)
	}
}

// modifiedAt extracts the file modification time a source attached to
// the document.
func modifiedAt(raw *domain.RawDocument) (time.Time, bool) {
	v, ok := raw.Metadata["modified_at"]
	if !ok {
		return time.Time{}, false
	}
	t, ok := v.(time.Time)
	return t, ok
}

// pathForURI inverts URIForPath.
func pathForURI(uri string) (string, bool) {
	rest, ok := strings.CutPrefix(uri, "file://")
	if !ok {
		return "", false
	}
	return filepath.FromSlash(rest), true
}
