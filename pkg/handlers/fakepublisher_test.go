package handlers

import (
	"context"
	"sync"

	"github.com/timour/catalyst/pkg/eventbus"
)

// fakePublisher records every published event for assertions, implementing
// eventbus.EventPublisher without touching a broker.
type fakePublisher struct {
	mu        sync.Mutex
	Published []eventbus.Event
	Err       error
}

func (f *fakePublisher) Publish(ctx context.Context, ev eventbus.Event) error {
	if f.Err != nil {
		return f.Err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Published = append(f.Published, ev)
	return nil
}

func (f *fakePublisher) last() *eventbus.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Published) == 0 {
		return nil
	}
	return &f.Published[len(f.Published)-1]
}
