package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ppiankov/deckcheck/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingAnalyzer struct {
	mu    sync.Mutex
	calls []string
	fail  bool
}

func (a *recordingAnalyzer) Analyze(ctx context.Context, source string) (*model.Report, error) {
	a.mu.Lock()
	a.calls = append(a.calls, source)
	a.mu.Unlock()
	if a.fail {
		return nil, errors.New("parse failed")
	}
	return &model.Report{Source: source}, nil
}

func (a *recordingAnalyzer) count(path string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, c := range a.calls {
		if c == path {
			n++
		}
	}
	return n
}

func jsonOnly(name string) bool {
	return strings.HasSuffix(name, ".json")
}

func startWatcher(t *testing.T, w *Watcher, dir string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, dir) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("watcher did not stop")
		}
	})
	// Give the watcher time to register the directory
	time.Sleep(50 * time.Millisecond)
}

func TestWatcher_AnalyzesNewDeck(t *testing.T) {
	dir := t.TempDir()
	analyzer := &recordingAnalyzer{}
	reports := make(chan *model.Report, 4)

	w := NewWatcher(analyzer, jsonOnly).
		WithDebounce(20 * time.Millisecond).
		OnReport(func(r *model.Report) { reports <- r })
	startWatcher(t, w, dir)

	path := filepath.Join(dir, "q1.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"slide": 1, "text": "x"}]`), 0644))

	select {
	case r := <-reports:
		assert.Equal(t, path, r.Source)
	case <-time.After(2 * time.Second):
		t.Fatal("no report received")
	}
}

func TestWatcher_DebouncesRepeatedWrites(t *testing.T) {
	dir := t.TempDir()
	analyzer := &recordingAnalyzer{}
	reports := make(chan *model.Report, 4)

	w := NewWatcher(analyzer, jsonOnly).
		WithDebounce(200 * time.Millisecond).
		OnReport(func(r *model.Report) { reports <- r })
	startWatcher(t, w, dir)

	path := filepath.Join(dir, "q1.json")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte(`[]`), 0644))
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case <-reports:
	case <-time.After(2 * time.Second):
		t.Fatal("no report received")
	}
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 1, analyzer.count(path))
}

func TestWatcher_IgnoresUnsupportedAndLockFiles(t *testing.T) {
	dir := t.TempDir()
	analyzer := &recordingAnalyzer{}

	w := NewWatcher(analyzer, jsonOnly).WithDebounce(10 * time.Millisecond)
	startWatcher(t, w, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "~$q1.json"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden.json"), []byte("x"), 0644))

	time.Sleep(200 * time.Millisecond)
	analyzer.mu.Lock()
	defer analyzer.mu.Unlock()
	assert.Empty(t, analyzer.calls)
}

func TestWatcher_ReportsErrors(t *testing.T) {
	dir := t.TempDir()
	analyzer := &recordingAnalyzer{fail: true}
	failures := make(chan string, 4)

	w := NewWatcher(analyzer, jsonOnly).
		WithDebounce(10 * time.Millisecond).
		OnError(func(path string, err error) { failures <- path })
	startWatcher(t, w, dir)

	path := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0644))

	select {
	case got := <-failures:
		assert.Equal(t, path, got)
	case <-time.After(2 * time.Second):
		t.Fatal("no error reported")
	}
}

func TestWatcher_MissingDirectory(t *testing.T) {
	w := NewWatcher(&recordingAnalyzer{}, jsonOnly)
	err := w.Run(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
