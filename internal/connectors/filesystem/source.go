// Package filesystem feeds local files into ingestion. A Source walks
// a corpus directory and watches it for changes; a Syncer drives the
// ingest service from both.
package filesystem

import (
	"context"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/veritas-labs/lexquery/internal/core/domain"
	"github.com/veritas-labs/lexquery/internal/core/ports/driven"
	"github.com/veritas-labs/lexquery/internal/logger"
)

// Ensure Source implements the interface.
var _ driven.CorpusSource = (*Source)(nil)

const (
	defaultMaxFileBytes = 32 << 20
	defaultDebounce     = 200 * time.Millisecond
)

// Source walks and watches one corpus directory.
type Source struct {
	root         string
	maxFileBytes int64
	debounce     time.Duration

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	closed  bool
}

// Option configures a Source.
type Option func(*Source)

// WithMaxFileBytes sets the per-file size bound. Larger files are
// skipped during walks and ignored by the watcher.
func WithMaxFileBytes(n int64) Option {
	return func(s *Source) {
		if n > 0 {
			s.maxFileBytes = n
		}
	}
}

// WithDebounce sets the quiet period the watcher collects events over
// before emitting changes.
func WithDebounce(d time.Duration) Option {
	return func(s *Source) {
		if d > 0 {
			s.debounce = d
		}
	}
}

// New creates a source rooted at the given directory.
func New(root string, opts ...Option) *Source {
	s := &Source{
		root:         root,
		maxFileBytes: defaultMaxFileBytes,
		debounce:     defaultDebounce,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the corpus directory.
func (s *Source) Root() string {
	return s.root
}

// Validate checks the root exists and is a readable directory.
func (s *Source) Validate(_ context.Context) error {
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("corpus root %s: %w", s.root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("corpus root %s is not a directory", s.root)
	}
	return nil
}

// Walk emits every ingestable file under the root. Hidden entries,
// oversized files, and types no normaliser can read are skipped;
// unreadable files surface on the error channel without stopping the
// walk.
func (s *Source) Walk(ctx context.Context) (<-chan domain.RawDocument, <-chan error) {
	docs := make(chan domain.RawDocument)
	errs := make(chan error, 1)

	go func() {
		defer close(docs)
		defer close(errs)

		walkErr := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err != nil {
				s.sendErr(ctx, errs, fmt.Errorf("walk %s: %w", path, err))
				return nil
			}
			if d.IsDir() {
				if path != s.root && isHidden(s.rel(path)) {
					return filepath.SkipDir
				}
				return nil
			}
			if isHidden(s.rel(path)) {
				return nil
			}

			raw, loadErr := s.Load(path)
			if loadErr != nil {
				s.sendErr(ctx, errs, loadErr)
				return nil
			}
			if raw == nil {
				return nil
			}

			select {
			case docs <- *raw:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		})
		if walkErr != nil && walkErr != ctx.Err() {
			s.sendErr(ctx, errs, walkErr)
		}
	}()

	return docs, errs
}

func (s *Source) sendErr(ctx context.Context, errs chan<- error, err error) {
	select {
	case errs <- err:
	case <-ctx.Done():
	}
}

// Load reads one file into a RawDocument. Returns (nil, nil) when the
// file is skippable: oversized, or a type no normaliser reads.
func (s *Source) Load(path string) (*domain.RawDocument, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() > s.maxFileBytes {
		return nil, nil
	}

	mimeType := detectMIMEType(path)
	if !isIngestable(mimeType) {
		return nil, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return &domain.RawDocument{
		URI:        URIForPath(path),
		SourceType: "filesystem",
		MIMEType:   mimeType,
		Content:    content,
		Metadata: map[string]any{
			"filename":    filepath.Base(path),
			"size_bytes":  info.Size(),
			"modified_at": info.ModTime(),
		},
	}, nil
}

// Watch emits debounced change events for the root and its
// subdirectories until the context is cancelled.
func (s *Source) Watch(ctx context.Context) (<-chan domain.CorpusChange, error) {
	if err := s.Validate(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, fmt.Errorf("source is closed")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	s.watcher = watcher
	s.mu.Unlock()

	// fsnotify does not recurse, so register every subdirectory.
	err = filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != s.root && isHidden(s.rel(path)) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
	if err != nil {
		watcher.Close()
		return nil, fmt.Errorf("register watches: %w", err)
	}

	out := make(chan domain.CorpusChange)
	go s.watchLoop(ctx, watcher, out)
	return out, nil
}

// watchLoop debounces raw events: a burst of writes to one path
// collapses into a single change emitted after the quiet period.
func (s *Source) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, out chan<- domain.CorpusChange) {
	defer close(out)

	pending := make(map[string]fsnotify.Op)
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		for path, op := range pending {
			change := s.changeFor(path, op, watcher)
			if change == nil {
				continue
			}
			select {
			case out <- *change:
			case <-ctx.Done():
				return
			}
		}
		pending = make(map[string]fsnotify.Op)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if isHidden(s.rel(event.Name)) {
				continue
			}
			pending[event.Name] |= event.Op
			if timer == nil {
				timer = time.NewTimer(s.debounce)
				timerC = timer.C
			}
		case <-timerC:
			flush()
			timer = nil
			timerC = nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("corpus watcher: %v", err)
		}
	}
}

// changeFor resolves one debounced event set into a change. Returns
// nil when nothing should be ingested: directories (new ones are added
// to the watch instead), and files the walker would skip.
func (s *Source) changeFor(path string, op fsnotify.Op, watcher *fsnotify.Watcher) *domain.CorpusChange {
	info, err := os.Stat(path)
	if err != nil {
		// Gone by flush time means deleted, whatever the ops said.
		return &domain.CorpusChange{
			Type:     domain.ChangeDeleted,
			Document: domain.RawDocument{URI: URIForPath(path), SourceType: "filesystem"},
		}
	}

	if info.IsDir() {
		if op&fsnotify.Create != 0 {
			if err := watcher.Add(path); err != nil {
				logger.Warn("watch new directory %s: %v", path, err)
			}
		}
		return nil
	}

	raw, err := s.Load(path)
	if err != nil {
		logger.Warn("corpus watcher: %v", err)
		return nil
	}
	if raw == nil {
		return nil
	}

	changeType := domain.ChangeUpdated
	if op&fsnotify.Create != 0 {
		changeType = domain.ChangeCreated
	}
	return &domain.CorpusChange{Type: changeType, Document: *raw}
}

// Close releases the watcher. Safe to call more than once.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

func (s *Source) rel(path string) string {
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		return path
	}
	return rel
}

// URIForPath returns the canonical corpus URI for a local path.
// Ingested documents are keyed by it, so the watcher's removals line
// up with the walker's inserts.
func URIForPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return "file://" + filepath.ToSlash(abs)
}

// isHidden reports whether any component of the path starts with a
// dot. "." and ".." are path syntax, not hidden entries.
func isHidden(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == "." || part == ".." || part == "" {
			continue
		}
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}

// mimeFallbacks covers text formats the platform MIME database often
// misses or mislabels.
var mimeFallbacks = map[string]string{
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".txt":      "text/plain",
	".text":     "text/plain",
	".yaml":     "text/yaml",
	".yml":      "text/yaml",
	".toml":     "text/toml",
	".csv":      "text/csv",
	".rst":      "text/x-rst",
	".tex":      "text/x-tex",
}

// detectMIMEType resolves a file's MIME type from its extension.
// Files without an extension are treated as plain text; unknown
// extensions come back as application/octet-stream and are skipped.
func detectMIMEType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return "text/plain"
	}
	if mimeType, ok := mimeFallbacks[ext]; ok {
		return mimeType
	}
	if mimeType := mime.TypeByExtension(ext); mimeType != "" {
		// Strip parameters like "; charset=utf-8".
		if idx := strings.Index(mimeType, ";"); idx >= 0 {
			mimeType = strings.TrimSpace(mimeType[:idx])
		}
		return mimeType
	}
	return "application/octet-stream"
}

// isIngestable reports whether some normaliser can read the type.
func isIngestable(mimeType string) bool {
	if strings.HasPrefix(mimeType, "text/") {
		return true
	}
	switch mimeType {
	case "application/pdf", "application/json", "application/xml",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return true
	}
	return false
}
