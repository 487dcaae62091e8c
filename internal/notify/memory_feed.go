package notify

import (
	"context"
	"sync"
)

// memoryFeed implements Feed in process memory
type memoryFeed struct {
	mu         sync.Mutex
	pending    map[string][]Notification
	maxBacklog int
}

// NewMemoryFeed creates an in-process feed keeping at most maxBacklog
// notifications per view
func NewMemoryFeed(maxBacklog int) Feed {
	if maxBacklog < 1 {
		maxBacklog = 1
	}
	return &memoryFeed{
		pending:    make(map[string][]Notification),
		maxBacklog: maxBacklog,
	}
}

func (f *memoryFeed) Notify(ctx context.Context, n Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	queue := append(f.pending[n.ViewID], n)
	if over := len(queue) - f.maxBacklog; over > 0 {
		queue = append([]Notification(nil), queue[over:]...)
	}
	f.pending[n.ViewID] = queue
	return nil
}

func (f *memoryFeed) Drain(ctx context.Context, viewID string, max int) ([]Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	queue := f.pending[viewID]
	if max < 1 || max > len(queue) {
		max = len(queue)
	}

	out := make([]Notification, max)
	copy(out, queue[:max])

	if rest := queue[max:]; len(rest) > 0 {
		f.pending[viewID] = rest
	} else {
		delete(f.pending, viewID)
	}
	return out, nil
}

func (f *memoryFeed) Discard(ctx context.Context, viewID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.pending, viewID)
	return nil
}

func (f *memoryFeed) Health(ctx context.Context) error {
	return nil
}

func (f *memoryFeed) Close() error {
	return nil
}
