package progress

import (
	"fmt"
	"sync"
	"testing"
)

func TestTrackerUpdateAndGet(t *testing.T) {
	tr := NewTracker()

	tr.Update("s1", Record{Message: "working", Progress: Percent(42)})

	rec, ok := tr.Get("s1")
	if !ok {
		t.Fatal("expected record for s1")
	}
	if rec.Message != "working" {
		t.Errorf("message = %q, want %q", rec.Message, "working")
	}
	if rec.Progress == nil || *rec.Progress != 42 {
		t.Errorf("progress = %v, want 42", rec.Progress)
	}
	if rec.Timestamp.IsZero() {
		t.Error("timestamp not set")
	}
}

func TestTrackerUnknownSession(t *testing.T) {
	tr := NewTracker()
	if _, ok := tr.Get("never-created"); ok {
		t.Error("expected no record for unknown session")
	}
}

func TestTrackerUpdateReplacesRecord(t *testing.T) {
	tr := NewTracker()

	tr.Update("s1", Record{Message: "failing", Error: "boom"})
	tr.Update("s1", Record{Message: "done", Progress: Percent(100), Completed: true, FilePath: "/tmp/out.jpg"})

	rec, _ := tr.Get("s1")
	if rec.Error != "" {
		t.Errorf("error = %q, want empty after replacement", rec.Error)
	}
	if !rec.Completed || rec.FilePath != "/tmp/out.jpg" {
		t.Errorf("record not fully replaced: %+v", rec)
	}
}

func TestTrackerSessionsAreIndependent(t *testing.T) {
	tr := NewTracker()

	tr.Update("a", Record{Message: "a-msg"})
	tr.Update("b", Record{Message: "b-msg"})

	recA, _ := tr.Get("a")
	recB, _ := tr.Get("b")
	if recA.Message != "a-msg" || recB.Message != "b-msg" {
		t.Errorf("records crossed: a=%q b=%q", recA.Message, recB.Message)
	}
}

func TestTrackerConcurrentAccess(t *testing.T) {
	tr := NewTracker()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("s%d", n%4)
			for j := 0; j < 100; j++ {
				tr.Update(id, Record{Message: "tick", Progress: Percent(float64(j))})
				tr.Get(id)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 4; i++ {
		if _, ok := tr.Get(fmt.Sprintf("s%d", i)); !ok {
			t.Errorf("missing record for s%d", i)
		}
	}
}
