package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/dgallion1/plandag/internal/config"
)

func testConfig() config.Config {
	return config.Config{
		WorkerCount:        2,
		MaxQueueSize:       8,
		DocumentTTL:        time.Hour,
		DeadlineLookBehind: 0.25,
	}
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestOrchestrator_SubmitCompiles(t *testing.T) {
	pub := &fakePublisher{}
	o := NewOrchestrator(testConfig(), pub, discardLogger())
	o.Start(context.Background())
	defer o.Stop()

	snap, err := o.Submit(Submission{Data: []byte(launchPlan)})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(snap.ID) != 26 {
		t.Errorf("expected generated ULID, got %q", snap.ID)
	}
	if snap.Revision != 1 {
		t.Errorf("expected revision 1, got %d", snap.Revision)
	}

	waitFor(t, func() bool { return o.Get(snap.ID).Snapshot().PublishedRevision == 1 })

	dag, rev := o.Get(snap.ID).DAG()
	if dag == nil || rev != 1 || len(dag.Nodes) != 4 {
		t.Fatalf("unexpected DAG at revision %d: %+v", rev, dag)
	}
	if o.Stats().Outcomes[OutcomeOK] != 1 {
		t.Errorf("expected one ok compile, got %v", o.Stats().Outcomes)
	}
}

func TestOrchestrator_ResubmitBumpsRevision(t *testing.T) {
	o := NewOrchestrator(testConfig(), nil, discardLogger())
	o.Start(context.Background())
	defer o.Stop()

	first, err := o.Submit(Submission{DocID: "plan", Data: []byte(launchPlan)})
	if err != nil {
		t.Fatal(err)
	}
	second, err := o.Submit(Submission{DocID: "plan", Data: []byte("# Launch\n- Only\n")})
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != second.ID || second.Revision != 2 {
		t.Fatalf("expected revision 2 of %q, got %+v", first.ID, second)
	}

	waitFor(t, func() bool {
		_, rev := o.Get("plan").DAG()
		return rev == 2
	})
	if n := o.Get("plan").Snapshot().Nodes; n != 2 {
		t.Errorf("expected latest revision's 2 nodes, got %d", n)
	}
	if got := len(o.List()); got != 1 {
		t.Errorf("expected 1 document, got %d", got)
	}
}

func TestOrchestrator_QueueFull(t *testing.T) {
	cfg := testConfig()
	cfg.MaxQueueSize = 1
	// Not started: nothing drains the queue.
	o := NewOrchestrator(cfg, nil, discardLogger())

	if _, err := o.Submit(Submission{DocID: "a", Data: []byte(launchPlan)}); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	snap, err := o.Submit(Submission{DocID: "b", Data: []byte(launchPlan)})
	if err == nil {
		t.Fatal("expected queue full error")
	}
	if snap.Status != StatusFailed || snap.Problem == nil || snap.Problem.Kind != "queue" {
		t.Errorf("expected queue failure recorded, got %+v", snap)
	}
	if o.QueueDepth() != 1 {
		t.Errorf("expected queue depth 1, got %d", o.QueueDepth())
	}
}

func TestOrchestrator_DeleteUnpublishes(t *testing.T) {
	pub := &fakePublisher{}
	o := NewOrchestrator(testConfig(), pub, discardLogger())

	if _, err := o.Submit(Submission{DocID: "gone", Data: []byte(launchPlan)}); err != nil {
		t.Fatal(err)
	}
	if !o.Delete(context.Background(), "gone") {
		t.Fatal("expected delete to succeed")
	}
	if o.Delete(context.Background(), "gone") {
		t.Error("expected second delete to report false")
	}
	if len(pub.deletes) != 1 || pub.deletes[0] != "gone" {
		t.Errorf("expected renderer delete for gone, got %v", pub.deletes)
	}
}

func TestOrchestrator_EvictUnpublishes(t *testing.T) {
	pub := &fakePublisher{}
	cfg := testConfig()
	cfg.DocumentTTL = time.Millisecond
	o := NewOrchestrator(cfg, pub, discardLogger())

	if _, err := o.Submit(Submission{DocID: "idle", Data: []byte(launchPlan)}); err != nil {
		t.Fatal(err)
	}
	time.Sleep(10 * time.Millisecond)
	o.evict(context.Background())

	if o.Get("idle") != nil {
		t.Error("expected idle document evicted")
	}
	if len(pub.deletes) != 1 {
		t.Errorf("expected renderer delete on eviction, got %v", pub.deletes)
	}
}
