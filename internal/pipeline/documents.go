package pipeline

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dgallion1/plandag/internal/outline"
)

// DocumentStatus is the state of a document's latest submitted revision.
type DocumentStatus string

const (
	StatusQueued    DocumentStatus = "queued"
	StatusParsing   DocumentStatus = "parsing"
	StatusCompiling DocumentStatus = "compiling"
	StatusReady     DocumentStatus = "ready"
	StatusInvalid   DocumentStatus = "invalid" // compile failed; previous DAG retained
	StatusFailed    DocumentStatus = "failed"  // source could not be read or queued
)

// Problem is the JSON form of a failure. Kind is an outline error kind, or
// "parse" and "queue" for failures before compiling.
type Problem struct {
	Error string   `json:"error"`
	Kind  string   `json:"kind"`
	Line  int      `json:"line,omitempty"`
	Tasks []string `json:"tasks,omitempty"`
}

// ProblemFrom describes err, using kind unless err is an outline error.
func ProblemFrom(err error, kind string) *Problem {
	var oe *outline.Error
	if errors.As(err, &oe) {
		return &Problem{
			Error: oe.Error(),
			Kind:  oe.Kind.String(),
			Line:  oe.Line,
			Tasks: oe.Tasks,
		}
	}
	return &Problem{Error: err.Error(), Kind: kind}
}

// Document is an editing session: a stream of source revisions and the
// last DAG that compiled.
type Document struct {
	mu sync.Mutex

	ID       string
	Title    string
	Filename string
	Status   DocumentStatus

	// Revision is the latest submitted snapshot. Results for any other
	// revision are stale and dropped.
	Revision int
	// CompiledRevision is the revision dag was built from.
	CompiledRevision  int
	PublishedRevision int
	// ContentHash is the Compiler.Key of the last compiled input. It is
	// empty after a failure that happened before compiling.
	ContentHash string

	CreatedAt time.Time
	UpdatedAt time.Time

	dag     *outline.DAG
	problem *Problem
}

// NewDocument returns an empty session.
func NewDocument(id string, now time.Time) *Document {
	return &Document{ID: id, CreatedAt: now, UpdatedAt: now}
}

// nextRevision records a new snapshot and returns its revision number.
func (d *Document) nextRevision(title, filename string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Revision++
	if title != "" {
		d.Title = title
	}
	if filename != "" {
		d.Filename = filename
	}
	d.Status = StatusQueued
	d.UpdatedAt = time.Now()
	return d.Revision
}

// Superseded reports whether rev is no longer the latest revision.
func (d *Document) Superseded(rev int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return rev != d.Revision
}

// advance moves rev to status; false when rev is stale.
func (d *Document) advance(rev int, status DocumentStatus) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if rev != d.Revision {
		return false
	}
	d.Status = status
	d.UpdatedAt = time.Now()
	return true
}

// unchanged settles rev without compiling when hash matches the last
// compiled input. The previous outcome stands.
func (d *Document) unchanged(rev int, hash string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if rev != d.Revision || hash != d.ContentHash || d.ContentHash == "" {
		return false
	}
	if d.problem != nil {
		d.Status = StatusInvalid
	} else {
		d.Status = StatusReady
	}
	d.UpdatedAt = time.Now()
	return true
}

// accept stores dag as the document's current graph.
func (d *Document) accept(rev int, hash, title string, dag *outline.DAG) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if rev != d.Revision {
		return false
	}
	d.dag = dag
	d.problem = nil
	d.CompiledRevision = rev
	d.ContentHash = hash
	if d.Title == "" {
		d.Title = title
	}
	d.Status = StatusReady
	d.UpdatedAt = time.Now()
	return true
}

// reject records a failure for rev and keeps the last valid DAG. hash is
// empty when the failure happened before the text was known; the stored
// hash is then cleared so the next submission compiles.
func (d *Document) reject(rev int, hash string, status DocumentStatus, p *Problem) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if rev != d.Revision {
		return false
	}
	d.problem = p
	d.ContentHash = hash
	d.Status = status
	d.UpdatedAt = time.Now()
	return true
}

// markPublished records that the renderer holds rev.
func (d *Document) markPublished(rev int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if rev > d.PublishedRevision {
		d.PublishedRevision = rev
	}
	d.UpdatedAt = time.Now()
}

// DAG returns the last valid graph and its revision, or nil.
func (d *Document) DAG() (*outline.DAG, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dag, d.CompiledRevision
}

// DocumentSnapshot is a read-only, JSON-safe copy of document state.
type DocumentSnapshot struct {
	ID                string         `json:"doc_id"`
	Title             string         `json:"title"`
	Filename          string         `json:"filename,omitempty"`
	Status            DocumentStatus `json:"status"`
	Revision          int            `json:"revision"`
	CompiledRevision  int            `json:"compiled_revision"`
	PublishedRevision int            `json:"published_revision,omitempty"`
	ContentHash       string         `json:"content_hash,omitempty"`
	Nodes             int            `json:"nodes"`
	Edges             int            `json:"edges"`
	Problem           *Problem       `json:"problem,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the document state.
func (d *Document) Snapshot() DocumentSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	snap := DocumentSnapshot{
		ID:                d.ID,
		Title:             d.Title,
		Filename:          d.Filename,
		Status:            d.Status,
		Revision:          d.Revision,
		CompiledRevision:  d.CompiledRevision,
		PublishedRevision: d.PublishedRevision,
		ContentHash:       d.ContentHash,
		Problem:           d.problem,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
	if d.dag != nil {
		snap.Nodes = len(d.dag.Nodes)
		snap.Edges = len(d.dag.Edges)
	}
	return snap
}

func (d *Document) lastUpdate() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.UpdatedAt
}

// DocumentStore is a thread-safe in-memory session registry with TTL
// eviction. Nothing survives a restart.
type DocumentStore struct {
	mu   sync.Mutex
	docs map[string]*Document
	ttl  time.Duration
}

func NewDocumentStore(ttl time.Duration) *DocumentStore {
	return &DocumentStore{
		docs: make(map[string]*Document),
		ttl:  ttl,
	}
}

// GetOrCreate returns the session for id, creating it if needed.
func (s *DocumentStore) GetOrCreate(id string) *Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.docs[id]; ok {
		return d
	}
	d := NewDocument(id, time.Now())
	s.docs[id] = d
	return d
}

func (s *DocumentStore) Get(id string) *Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs[id]
}

// Delete removes a session and reports whether it existed.
func (s *DocumentStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.docs[id]
	delete(s.docs, id)
	return ok
}

// List returns snapshots of every session ordered by id.
func (s *DocumentStore) List() []DocumentSnapshot {
	s.mu.Lock()
	docs := make([]*Document, 0, len(s.docs))
	for _, d := range s.docs {
		docs = append(docs, d)
	}
	s.mu.Unlock()

	out := make([]DocumentSnapshot, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Cleanup removes sessions idle longer than the TTL and returns their ids.
func (s *DocumentStore) Cleanup() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	var evicted []string
	for id, d := range s.docs {
		if now.Sub(d.lastUpdate()) > s.ttl {
			delete(s.docs, id)
			evicted = append(evicted, id)
		}
	}
	return evicted
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
