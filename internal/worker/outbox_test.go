package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestOutboxEnqueueDoesNotWaitForJob(t *testing.T) {
	o := NewOutbox(4, 1, time.Second, nil)
	release := make(chan struct{})
	finished := make(chan struct{})

	start := time.Now()
	if !o.Enqueue("slow", func(ctx context.Context) error {
		<-release
		close(finished)
		return nil
	}) {
		t.Fatalf("enqueue refused")
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("enqueue blocked for %s", elapsed)
	}

	close(release)
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatalf("job never ran")
	}
	o.Stop(context.Background())
}

func TestOutboxJobsGetADeadline(t *testing.T) {
	o := NewOutbox(4, 1, 50*time.Millisecond, nil)
	got := make(chan error, 1)
	o.Enqueue("hang", func(ctx context.Context) error {
		<-ctx.Done()
		got <- ctx.Err()
		return ctx.Err()
	})
	select {
	case err := <-got:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("err = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("job deadline never fired")
	}
	o.Stop(context.Background())
}

func TestOutboxDropsWhenFull(t *testing.T) {
	o := NewOutbox(1, 1, time.Second, nil)
	block := make(chan struct{})
	running := make(chan struct{})
	o.Enqueue("first", func(context.Context) error {
		close(running)
		<-block
		return nil
	})
	<-running
	if !o.Enqueue("queued", func(context.Context) error { return nil }) {
		t.Fatalf("second job should fit in the queue")
	}
	if o.Enqueue("overflow", func(context.Context) error { return nil }) {
		t.Fatalf("third job should be dropped")
	}
	close(block)
	o.Stop(context.Background())
}

func TestOutboxStopDrainsAndRefuses(t *testing.T) {
	o := NewOutbox(8, 2, time.Second, nil)
	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		o.Enqueue("job", func(context.Context) error {
			ran.Add(1)
			return nil
		})
	}
	o.Stop(context.Background())
	if ran.Load() != 5 {
		t.Fatalf("ran %d jobs, want 5", ran.Load())
	}
	if o.Enqueue("late", func(context.Context) error { return nil }) {
		t.Fatalf("stopped outbox accepted a job")
	}
	o.Stop(context.Background())
}

func TestOutboxSurvivesPanickingJob(t *testing.T) {
	o := NewOutbox(4, 1, time.Second, nil)
	done := make(chan struct{})
	o.Enqueue("boom", func(context.Context) error { panic("boom") })
	o.Enqueue("after", func(context.Context) error {
		close(done)
		return nil
	})
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("worker died after panic")
	}
	o.Stop(context.Background())
}
