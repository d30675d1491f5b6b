package orchestrator

import (
	"context"

	"github.com/timour/catalyst/pkg/eventbus"
)

// loopbackPublisher implements eventbus.EventPublisher without a broker: it
// simply remembers the last event handed to it. Sequential mode wires every
// handler's Deps.Publisher to one of these so handler code stays identical
// between modes; the orchestrator drains it after each stage to learn what
// the next stage's input event is.
type loopbackPublisher struct {
	last *eventbus.Event
}

func (p *loopbackPublisher) Publish(_ context.Context, ev eventbus.Event) error {
	e := ev
	p.last = &e
	return nil
}

// take returns and clears the last published event, or nil if the stage
// published nothing (a terminal outcome like deploy.failed still counts).
func (p *loopbackPublisher) take() *eventbus.Event {
	ev := p.last
	p.last = nil
	return ev
}
