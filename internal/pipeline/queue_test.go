package pipeline

import (
	"context"
	"testing"
	"time"
)

func chunk(marker byte) []byte {
	return []byte{marker, 0}
}

func TestQueueFIFOOrder(t *testing.T) {
	q := NewChunkQueue(4, DropOldest)
	q.Push(chunk(1))
	q.Push(chunk(2))
	q.Push(chunk(3))

	ctx := context.Background()
	for _, want := range []byte{1, 2, 3} {
		pcm, ok := q.Pop(ctx)
		if !ok {
			t.Fatal("expected chunk")
		}
		if pcm[0] != want {
			t.Fatalf("expected chunk %d, got %d", want, pcm[0])
		}
	}
	if q.Len() != 0 {
		t.Fatalf("expected empty queue, got %d", q.Len())
	}
}

func TestQueueDropOldest(t *testing.T) {
	q := NewChunkQueue(2, DropOldest)
	if !q.Push(chunk(1)) || !q.Push(chunk(2)) {
		t.Fatal("expected pushes to succeed")
	}
	if !q.Push(chunk(3)) {
		t.Fatal("expected overflow push to succeed under drop_oldest")
	}
	if q.Dropped() != 1 {
		t.Fatalf("expected 1 dropped chunk, got %d", q.Dropped())
	}

	ctx := context.Background()
	first, _ := q.Pop(ctx)
	second, _ := q.Pop(ctx)
	if first[0] != 2 || second[0] != 3 {
		t.Fatalf("expected oldest chunk evicted, got %d then %d", first[0], second[0])
	}
}

func TestQueueDropNewest(t *testing.T) {
	q := NewChunkQueue(2, DropNewest)
	q.Push(chunk(1))
	q.Push(chunk(2))
	if q.Push(chunk(3)) {
		t.Fatal("expected overflow push to be rejected under drop_newest")
	}
	if q.Dropped() != 1 {
		t.Fatalf("expected 1 dropped chunk, got %d", q.Dropped())
	}

	ctx := context.Background()
	first, _ := q.Pop(ctx)
	second, _ := q.Pop(ctx)
	if first[0] != 1 || second[0] != 2 {
		t.Fatalf("expected queued chunks preserved, got %d then %d", first[0], second[0])
	}
}

func TestPopReturnsOnCancellation(t *testing.T) {
	q := NewChunkQueue(2, DropOldest)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, ok := q.Pop(ctx); ok {
			t.Error("expected cancellation, got chunk")
		}
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Pop did not observe cancellation in time")
	}
}

func TestPushNeverBlocks(t *testing.T) {
	q := NewChunkQueue(1, DropNewest)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			q.Push(chunk(byte(i)))
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Push blocked on a full queue")
	}
}
