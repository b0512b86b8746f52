package auditinfra

import (
	"context"
	"testing"
	"time"

	auditdomain "rescue-go-app/backend/internal/domain/audit"
)

func testRecord(action string) auditdomain.Record {
	return auditdomain.Record{
		Timestamp:       time.Date(2025, 10, 18, 12, 0, 0, 0, time.UTC),
		Action:          action,
		Success:         true,
		OccurrenceCount: 1,
	}
}

func TestMemoryQueueFIFO(t *testing.T) {
	queue := NewMemoryQueue()
	ctx := context.Background()

	for _, action := range []string{"first", "second", "third"} {
		if err := queue.Enqueue(ctx, testRecord(action)); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	if depth, _ := queue.Len(ctx); depth != 3 {
		t.Fatalf("expected depth 3, got %d", depth)
	}

	for _, want := range []string{"first", "second", "third"} {
		rec, ok, err := queue.PopNow(ctx)
		if err != nil || !ok {
			t.Fatalf("pop: ok=%v err=%v", ok, err)
		}
		if rec.Action != want {
			t.Fatalf("expected %q, got %q", want, rec.Action)
		}
	}

	if _, ok, _ := queue.PopNow(ctx); ok {
		t.Fatalf("expected empty queue")
	}
}

func TestMemoryQueuePopWaitTimesOut(t *testing.T) {
	queue := NewMemoryQueue()

	start := time.Now()
	_, ok, err := queue.PopWait(context.Background(), 50*time.Millisecond)
	if err != nil {
		t.Fatalf("popwait: %v", err)
	}
	if ok {
		t.Fatalf("expected timeout without a record")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("popwait took too long: %v", elapsed)
	}
}

func TestMemoryQueuePopWaitWakesOnEnqueue(t *testing.T) {
	queue := NewMemoryQueue()

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = queue.Enqueue(context.Background(), testRecord("late"))
	}()

	rec, ok, err := queue.PopWait(context.Background(), 5*time.Second)
	if err != nil || !ok {
		t.Fatalf("popwait: ok=%v err=%v", ok, err)
	}
	if rec.Action != "late" {
		t.Fatalf("unexpected record %q", rec.Action)
	}
}

func TestMemoryQueuePopWaitHonorsContextCancel(t *testing.T) {
	queue := NewMemoryQueue()
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, ok, err := queue.PopWait(ctx, 5*time.Second)
	if ok {
		t.Fatalf("expected no record after cancel")
	}
	if err == nil {
		t.Fatalf("expected context error")
	}
}
