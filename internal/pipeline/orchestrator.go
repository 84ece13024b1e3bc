package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/plandag/internal/config"
	"github.com/dgallion1/plandag/internal/parser"
)

// cleanupInterval is how often idle documents are evicted.
var cleanupInterval = 5 * time.Minute

// DefaultFilename is assumed for submissions that carry raw outline text.
const DefaultFilename = "outline.plan"

// Orchestrator owns the document sessions and the compile worker pool.
type Orchestrator struct {
	docs      *DocumentStore
	queue     chan *Job
	compiler  *Compiler
	publisher Publisher
	log       *slog.Logger
	cfg       config.Config

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator wires the pipeline. pub may be nil.
func NewOrchestrator(cfg config.Config, pub Publisher, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		docs:  NewDocumentStore(cfg.DocumentTTL),
		queue: make(chan *Job, cfg.MaxQueueSize),
		compiler: &Compiler{
			LookBehind: cfg.DeadlineLookBehind,
			Stats:      NewCompileStats(time.Hour),
		},
		publisher: pub,
		log:       log,
		cfg:       cfg,
	}
}

// Start launches cfg.WorkerCount compile workers and the idle-document
// janitor. They run until ctx is cancelled or Stop is called.
func (o *Orchestrator) Start(ctx context.Context) {
	ctx, o.cancel = context.WithCancel(ctx)

	parseOpts := parser.Options{FallbackPdftotext: o.cfg.PDFFallbackPdftotext}
	for range o.cfg.WorkerCount {
		w := NewWorker(o.docs, o.compiler, o.publisher, o.log, parseOpts)
		o.wg.Go(func() { o.drain(ctx, w) })
	}
	o.wg.Go(func() { o.janitor(ctx) })
}

// Stop cancels in-flight work and waits for every goroutine to exit.
// Jobs still queued are dropped.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	close(o.queue)
	o.wg.Wait()
}

func (o *Orchestrator) drain(ctx context.Context, w *Worker) {
	for ctx.Err() == nil {
		select {
		case <-ctx.Done():
		case job, open := <-o.queue:
			if !open {
				return
			}
			w.Process(ctx, job)
		}
	}
}

func (o *Orchestrator) janitor(ctx context.Context) {
	tick := time.NewTicker(cleanupInterval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			o.evict(ctx)
		}
	}
}

func (o *Orchestrator) evict(ctx context.Context) {
	for _, id := range o.docs.Cleanup() {
		o.log.Info("evicted idle document", "doc_id", id)
		o.unpublish(ctx, id)
	}
}

// Submission is one snapshot of a document's source.
type Submission struct {
	DocID    string // empty starts a new document
	Title    string
	Filename string
	Data     []byte
	Now      time.Time // zero means time of submission
}

// Submit records a new revision and queues it for compiling.
func (o *Orchestrator) Submit(sub Submission) (DocumentSnapshot, error) {
	if sub.DocID == "" {
		sub.DocID = NewDocumentID()
	}
	if sub.Now.IsZero() {
		sub.Now = time.Now()
	}

	doc := o.docs.GetOrCreate(sub.DocID)
	rev := doc.nextRevision(sub.Title, sub.Filename)
	job := &Job{
		DocID:    sub.DocID,
		Revision: rev,
		Filename: doc.Snapshot().Filename,
		Title:    sub.Title,
		Data:     sub.Data,
		Now:      sub.Now,
	}
	if job.Filename == "" {
		job.Filename = DefaultFilename
	}

	select {
	case o.queue <- job:
		return doc.Snapshot(), nil
	default:
		err := fmt.Errorf("compile queue is full (%d)", o.cfg.MaxQueueSize)
		doc.reject(rev, "", StatusFailed, ProblemFrom(err, "queue"))
		return doc.Snapshot(), err
	}
}

// Get returns a document by id, or nil.
func (o *Orchestrator) Get(id string) *Document {
	return o.docs.Get(id)
}

// List returns every live document.
func (o *Orchestrator) List() []DocumentSnapshot {
	return o.docs.List()
}

// Delete ends a session and removes its graph from the renderer.
func (o *Orchestrator) Delete(ctx context.Context, id string) bool {
	if !o.docs.Delete(id) {
		return false
	}
	o.unpublish(ctx, id)
	return true
}

func (o *Orchestrator) unpublish(ctx context.Context, id string) {
	if o.publisher == nil {
		return
	}
	if err := o.publisher.DeleteGraph(ctx, id); err != nil {
		o.log.Warn("renderer delete failed", "doc_id", id, "error", err)
	}
}

// Stats returns compile statistics.
func (o *Orchestrator) Stats() StatsSnapshot {
	return o.compiler.Stats.Snapshot()
}

// Compiler returns the shared compiler for synchronous compiles.
func (o *Orchestrator) Compiler() *Compiler {
	return o.compiler
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}
