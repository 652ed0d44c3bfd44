package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/ppiankov/deckcheck/internal/model"
	"github.com/ppiankov/deckcheck/internal/worker"
	"go.uber.org/zap"
)

// DefaultDebounce is how long a file must stay quiet before it is analyzed.
// Saving a pptx produces several write events in quick succession.
const DefaultDebounce = 500 * time.Millisecond

// Watcher analyzes decks as they are created or modified in a directory
type Watcher struct {
	analyzer  worker.Analyzer
	supported func(string) bool
	debounce  time.Duration
	onReport  func(*model.Report)
	onError   func(path string, err error)
	log       *zap.Logger
}

// NewWatcher creates a watcher that analyzes files accepted by supported
func NewWatcher(analyzer worker.Analyzer, supported func(string) bool) *Watcher {
	return &Watcher{
		analyzer:  analyzer,
		supported: supported,
		debounce:  DefaultDebounce,
		onReport:  func(*model.Report) {},
		onError:   func(string, error) {},
		log:       zap.NewNop(),
	}
}

// WithDebounce sets the quiet period before analysis
func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	if d > 0 {
		w.debounce = d
	}
	return w
}

// WithLogger sets the logger
func (w *Watcher) WithLogger(l *zap.Logger) *Watcher {
	if l != nil {
		w.log = l
	}
	return w
}

// OnReport registers the callback for finished analyses
func (w *Watcher) OnReport(fn func(*model.Report)) *Watcher {
	w.onReport = fn
	return w
}

// OnError registers the callback for failed analyses
func (w *Watcher) OnError(fn func(path string, err error)) *Watcher {
	w.onError = fn
	return w
}

// Run watches dir until ctx is cancelled. Analyses run one at a time in the
// order files settle.
func (w *Watcher) Run(ctx context.Context, dir string) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = fsw.Close() }()

	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.log.Info("watching for decks", zap.String("dir", dir), zap.Duration("debounce", w.debounce))

	ready := make(chan string, 64)
	var (
		mu     sync.Mutex
		timers = make(map[string]*time.Timer)
	)
	defer func() {
		mu.Lock()
		for _, t := range timers {
			t.Stop()
		}
		mu.Unlock()
	}()

	schedule := func(path string) {
		mu.Lock()
		defer mu.Unlock()
		if t, ok := timers[path]; ok {
			t.Reset(w.debounce)
			return
		}
		timers[path] = time.AfterFunc(w.debounce, func() {
			mu.Lock()
			delete(timers, path)
			mu.Unlock()
			select {
			case ready <- path:
			case <-ctx.Done():
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.log.Debug("deck changed", zap.String("path", event.Name), zap.String("op", event.Op.String()))
			schedule(event.Name)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watcher error", zap.Error(err))

		case path := <-ready:
			w.analyze(ctx, path)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return false
	}
	name := filepath.Base(event.Name)
	if worker.Ignored(name) {
		return false
	}
	return w.supported == nil || w.supported(name)
}

func (w *Watcher) analyze(ctx context.Context, path string) {
	start := time.Now()
	report, err := w.analyzer.Analyze(ctx, path)
	if err != nil {
		w.log.Warn("analysis failed", zap.String("path", path), zap.Error(err))
		w.onError(path, err)
		return
	}
	w.log.Info("deck analyzed", zap.String("path", path), zap.Duration("took", time.Since(start)))
	w.onReport(report)
}
