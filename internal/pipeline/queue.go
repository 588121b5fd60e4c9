// Package pipeline implements the streaming recognition pipeline: the
// bounded hand-off queue between the capture callback and the consumer
// loop, and the controller that owns the loop's lifecycle.
package pipeline

import (
	"context"
	"sync/atomic"
)

// Policy selects the overflow behavior of a full ChunkQueue.
type Policy string

const (
	// DropOldest evicts the oldest queued chunk to make room. Keeps the
	// consumer near real time at the cost of a gap in the audio.
	DropOldest Policy = "drop_oldest"
	// DropNewest discards the incoming chunk. Preserves already-queued
	// audio at the cost of losing the freshest block.
	DropNewest Policy = "drop_newest"
)

// ChunkQueue is the FIFO hand-off between the capture callback and the
// recognition loop. Push never blocks, which is what the real-time
// callback context requires; a full queue applies the configured policy
// and counts the drop. Pop blocks until a chunk arrives or ctx is
// cancelled, so shutdown is always bounded.
type ChunkQueue struct {
	ch      chan []byte
	policy  Policy
	dropped atomic.Uint64
}

func NewChunkQueue(capacity int, policy Policy) *ChunkQueue {
	if capacity <= 0 {
		capacity = 64
	}
	return &ChunkQueue{
		ch:     make(chan []byte, capacity),
		policy: policy,
	}
}

// Push enqueues pcm without blocking. It reports whether pcm itself was
// enqueued; a drop (of pcm or of an evicted older chunk) bumps the drop
// counter either way.
func (q *ChunkQueue) Push(pcm []byte) bool {
	select {
	case q.ch <- pcm:
		return true
	default:
	}

	if q.policy == DropOldest {
		select {
		case <-q.ch:
			q.dropped.Add(1)
		default:
		}
		select {
		case q.ch <- pcm:
			return true
		default:
		}
	}

	q.dropped.Add(1)
	return false
}

// Pop blocks until a chunk is available or ctx is cancelled. The second
// return value is false only on cancellation.
func (q *ChunkQueue) Pop(ctx context.Context) ([]byte, bool) {
	select {
	case pcm := <-q.ch:
		return pcm, true
	case <-ctx.Done():
		return nil, false
	}
}

// Len returns the number of queued chunks.
func (q *ChunkQueue) Len() int {
	return len(q.ch)
}

// Dropped returns the total number of chunks lost to the overflow policy.
func (q *ChunkQueue) Dropped() uint64 {
	return q.dropped.Load()
}
