package presence

import (
	"context"
	"sync/atomic"

	"opsdash/pkg/logger"
	"opsdash/pkg/realtime"
)

// Dispatcher pushes events to every live handle of a user. Delivery is
// fire-and-forget: a handle that rejects an event is closed and unregistered.
type Dispatcher struct {
	registry  *Registry
	logger    *logger.Logger
	delivered atomic.Uint64
	dropped   atomic.Uint64
}

func NewDispatcher(registry *Registry, logger *logger.Logger) *Dispatcher {
	return &Dispatcher{registry: registry, logger: logger}
}

// Dispatch returns the number of handles that accepted evt. An offline user
// yields 0.
func (d *Dispatcher) Dispatch(userID string, evt realtime.Event) int {
	delivered := 0
	for _, h := range d.registry.Handles(userID) {
		if err := h.Send(evt); err != nil {
			d.dropped.Add(1)
			d.logger.Warn("[DISPATCH] Dropping handle %s of %s: %v", h.ID(), userID, err)
			d.registry.Unregister(h.ID())
			_ = h.Close()
			continue
		}
		delivered++
	}
	d.delivered.Add(uint64(delivered))
	return delivered
}

// BroadcastByRole dispatches evt to every present user with role.
func (d *Dispatcher) BroadcastByRole(role string, evt realtime.Event) int {
	delivered := 0
	for _, userID := range d.registry.Users(role) {
		delivered += d.Dispatch(userID, evt)
	}
	return delivered
}

func (d *Dispatcher) Stats() Stats {
	stats := d.registry.Stats()
	stats.Delivered = d.delivered.Load()
	stats.Dropped = d.dropped.Load()
	return stats
}

// LocalSender delivers only to handles on this instance.
type LocalSender struct {
	dispatcher *Dispatcher
}

func NewLocalSender(dispatcher *Dispatcher) *LocalSender {
	return &LocalSender{dispatcher: dispatcher}
}

func (s *LocalSender) SendToUser(_ context.Context, userID string, evt realtime.Event) int {
	return s.dispatcher.Dispatch(userID, evt)
}

func (s *LocalSender) BroadcastByRole(_ context.Context, role string, evt realtime.Event) int {
	return s.dispatcher.BroadcastByRole(role, evt)
}
