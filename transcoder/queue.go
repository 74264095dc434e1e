package transcoder

import (
	"fmt"
	"strings"
	"sync"
)

// OverflowPolicy decides what happens when a bounded queue is full.
type OverflowPolicy int

const (
	// OverflowBlock makes the reader wait until the consumer makes room.
	OverflowBlock OverflowPolicy = iota
	// OverflowDropOldest discards the oldest queued data chunk.
	OverflowDropOldest
)

func (p OverflowPolicy) String() string {
	switch p {
	case OverflowBlock:
		return "block"
	case OverflowDropOldest:
		return "drop-oldest"
	default:
		return fmt.Sprintf("unknown(%d)", int(p))
	}
}

// ParseOverflowPolicy parses "block" or "drop-oldest".
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "block":
		return OverflowBlock, nil
	case "drop-oldest", "drop_oldest":
		return OverflowDropOldest, nil
	default:
		return OverflowBlock, fmt.Errorf("unknown overflow policy %q", s)
	}
}

// queue is the ordered handoff between the reader goroutine and Poll.
// It is unbounded unless limit > 0.
type queue struct {
	mu       sync.Mutex
	notFull  *sync.Cond
	items    []Response
	limit    int
	policy   OverflowPolicy
	closed   bool // producer finished
	detached bool // consumer gone
	dropped  func()
}

func newQueue(limit int, policy OverflowPolicy, dropped func()) *queue {
	q := &queue{limit: limit, policy: policy, dropped: dropped}
	q.notFull = sync.NewCond(&q.mu)
	return q
}

// push appends r. It returns false once the consumer has detached, which
// tells the producer to stop.
func (q *queue) push(r Response) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.limit > 0 && r.Kind == KindData {
		for !q.detached && len(q.items) >= q.limit {
			if q.policy == OverflowDropOldest && q.dropOldestData() {
				break
			}
			q.notFull.Wait()
		}
	}
	if q.detached {
		return false
	}
	q.items = append(q.items, r)
	return true
}

// dropOldestData removes the first data chunk. Terminal responses are kept.
func (q *queue) dropOldestData() bool {
	for i, item := range q.items {
		if item.Kind != KindData {
			continue
		}
		q.items[i] = Response{}
		q.items = append(q.items[:i], q.items[i+1:]...)
		if q.dropped != nil {
			q.dropped()
		}
		return true
	}
	return false
}

// pop returns the next response without blocking.
func (q *queue) pop() (Response, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		if q.closed {
			return Response{}, ErrDisconnected
		}
		return Response{}, ErrEmpty
	}
	r := q.items[0]
	q.items[0] = Response{}
	q.items = q.items[1:]
	q.notFull.Signal()
	return r, nil
}

// close marks the producer side as finished.
func (q *queue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}

// detach drops everything still queued and releases a blocked producer.
func (q *queue) detach() {
	q.mu.Lock()
	q.detached = true
	q.items = nil
	q.mu.Unlock()
	q.notFull.Broadcast()
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
