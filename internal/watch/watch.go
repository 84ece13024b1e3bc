// Package watch recompiles an outline file whenever it changes on disk.
package watch

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dgallion1/plandag/internal/outline"
	"github.com/dgallion1/plandag/internal/parser"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period after the last change before a
// recompile.
const DefaultDebounce = time.Second

// Result is the outcome of one compile.
type Result struct {
	Revision int
	Title    string
	DAG      *outline.DAG // nil when Err is set
	Err      error
	// Last is the most recent valid DAG, kept across failed compiles.
	Last     *outline.DAG
	Duration time.Duration
}

type Options struct {
	Debounce   time.Duration
	LookBehind float64
	Parse      parser.Options
	// Now supplies the reference time for each compile. Defaults to time.Now.
	Now func() time.Time
	Log *slog.Logger
}

// Watcher follows one file. It watches the parent directory so editors
// that save by rename are still seen.
type Watcher struct {
	path    string
	opts    Options
	watcher *fsnotify.Watcher

	revision int
	last     *outline.DAG
}

// New creates a watcher for path. The file must exist.
func New(path string, opts Options) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, err
	}
	if !parser.IsSupportedExtension(abs) {
		return nil, fmt.Errorf("unsupported file type: %s", filepath.Ext(abs))
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Log == nil {
		opts.Log = slog.New(slog.DiscardHandler)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}
	return &Watcher{path: abs, opts: opts, watcher: fw}, nil
}

// Run compiles once, then again after each debounced change, passing every
// result to onResult. It returns when ctx is done or the watcher fails.
func (w *Watcher) Run(ctx context.Context, onResult func(Result)) error {
	onResult(w.compile())

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.opts.Log.Debug("change detected", "path", event.Name, "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.opts.Debounce)
			} else {
				timer.Reset(w.opts.Debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			onResult(w.compile())
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watcher error: %w", err)
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}

// compile rebuilds the DAG from scratch.
func (w *Watcher) compile() Result {
	w.revision++
	start := time.Now()
	res := Result{Revision: w.revision}

	title, dag, err := CompileFile(w.path, w.opts.Parse, outline.Options{
		Now:        w.opts.Now(),
		LookBehind: w.opts.LookBehind,
	})
	res.Duration = time.Since(start)
	res.Title = title
	if err != nil {
		res.Err = err
		w.opts.Log.Debug("compile failed", "revision", w.revision, "error", err)
	} else {
		res.DAG = dag
		w.last = dag
		w.opts.Log.Debug("compiled", "revision", w.revision,
			"nodes", len(dag.Nodes), "edges", len(dag.Edges),
			"duration_us", res.Duration.Microseconds())
	}
	res.Last = w.last
	return res
}

// CompileFile extracts the outline from the file at path and compiles it.
// The title is returned even when compiling fails.
func CompileFile(path string, parseOpts parser.Options, opts outline.Options) (string, *outline.DAG, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, err
	}
	p, err := parser.ForFile(path, parseOpts)
	if err != nil {
		return "", nil, err
	}
	doc, err := p.Parse(bytes.NewReader(data), filepath.Base(path))
	if err != nil {
		return "", nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	dag, err := outline.Compile(doc.Text, opts)
	return doc.Title, dag, err
}
