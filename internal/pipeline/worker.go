package pipeline

import (
	"bytes"
	"context"
	"log/slog"
	"time"

	"github.com/dgallion1/plandag/internal/parser"
	"github.com/dgallion1/plandag/internal/render"
)

// Publisher receives compiled graphs. *render.Client implements it.
type Publisher interface {
	PutGraph(ctx context.Context, req render.GraphRequest) error
	DeleteGraph(ctx context.Context, docID string) error
}

// Job is one queued document revision.
type Job struct {
	DocID    string
	Revision int
	Filename string
	Title    string
	Data     []byte
	// Now anchors partial deadlines to when the snapshot was taken.
	Now time.Time
}

// Worker compiles queued revisions.
type Worker struct {
	docs      *DocumentStore
	compiler  *Compiler
	publisher Publisher // nil when no renderer is configured
	log       *slog.Logger
	parseOpts parser.Options

	// wait is the retry backoff; tests shorten it.
	wait func(int) time.Duration
}

func NewWorker(docs *DocumentStore, compiler *Compiler, pub Publisher, log *slog.Logger, parseOpts parser.Options) *Worker {
	return &Worker{
		docs:      docs,
		compiler:  compiler,
		publisher: pub,
		log:       log,
		parseOpts: parseOpts,
		wait:      Backoff,
	}
}

// Process parses, compiles and publishes one revision. Stale revisions are
// dropped at every step so a slow compile never overwrites a newer one.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("doc_id", job.DocID, "revision", job.Revision)

	doc := w.docs.Get(job.DocID)
	if doc == nil {
		log.Debug("document deleted before processing")
		return
	}
	if !doc.advance(job.Revision, StatusParsing) {
		w.superseded(log)
		return
	}

	// Phase 1: Parse
	p, err := parser.ForFile(job.Filename, w.parseOpts)
	if err != nil {
		w.parseFailed(log, doc, job, err)
		return
	}
	src, err := p.Parse(bytes.NewReader(job.Data), job.Filename)
	if err != nil {
		w.parseFailed(log, doc, job, err)
		return
	}

	// Phase 2: Skip input that already compiled to the current outcome.
	hash := w.compiler.Key(src.Text, job.Now)
	if doc.unchanged(job.Revision, hash) {
		log.Debug("outline unchanged, skipping compile")
		w.count(OutcomeUnchanged)
		return
	}

	// Phase 3: Compile
	if !doc.advance(job.Revision, StatusCompiling) {
		w.superseded(log)
		return
	}
	start := time.Now()
	dag, err := w.compiler.Compile(src.Text, job.Now)
	elapsed := time.Since(start)
	if err != nil {
		problem := ProblemFrom(err, "compile")
		if !doc.reject(job.Revision, hash, StatusInvalid, problem) {
			w.superseded(log)
			return
		}
		log.Info("compile failed, keeping last valid graph",
			"kind", problem.Kind, "line", problem.Line, "error", problem.Error,
			"duration_us", elapsed.Microseconds())
		return
	}

	title := job.Title
	if title == "" {
		title = src.Title
	}
	if !doc.accept(job.Revision, hash, title, dag) {
		w.superseded(log)
		return
	}
	log.Info("compiled",
		"nodes", len(dag.Nodes), "edges", len(dag.Edges),
		"duration_us", elapsed.Microseconds())

	// Phase 4: Publish
	if w.publisher == nil {
		return
	}
	req := render.NewGraphRequest(job.DocID, job.Revision, doc.Snapshot().Title, dag)
	err = withRetry(ctx, w.wait,
		func(attempt int, err error) {
			log.Warn("retryable publish error", "attempt", attempt, "error", err)
		},
		func() error {
			if doc.Superseded(job.Revision) {
				return nil
			}
			return w.publisher.PutGraph(ctx, req)
		})
	if err != nil {
		log.Error("publish failed", "error", err)
		return
	}
	if !doc.Superseded(job.Revision) {
		doc.markPublished(job.Revision)
	}
}

func (w *Worker) parseFailed(log *slog.Logger, doc *Document, job *Job, err error) {
	w.count(OutcomeParseError)
	if !doc.reject(job.Revision, "", StatusFailed, ProblemFrom(err, "parse")) {
		w.superseded(log)
		return
	}
	log.Error("parse failed", "filename", job.Filename, "error", err)
}

func (w *Worker) superseded(log *slog.Logger) {
	log.Debug("revision superseded, discarding")
	w.count(OutcomeSuperseded)
}

func (w *Worker) count(outcome string) {
	if w.compiler.Stats != nil {
		w.compiler.Stats.Count(outcome)
	}
}
