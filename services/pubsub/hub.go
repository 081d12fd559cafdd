// Package pubsub fans change events out to the realtime subscribers of each channel.
package pubsub

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/trezcool/sdoims/core"
	"github.com/trezcool/sdoims/core/resource"
)

const defaultBuffer = 32

// Subscription receives the events of one channel until it is closed.
type Subscription struct {
	ID      string // socket id; events originating from it are not delivered back
	Channel string
	C       <-chan resource.Event

	c    chan resource.Event
	hub  *Hub
	once sync.Once
}

func (s *Subscription) Close() {
	s.once.Do(func() { s.hub.unsubscribe(s) })
}

// Hub is an in-process resource.Notifier.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*Subscription]struct{}
	buffer int
	logger core.Logger
}

var _ resource.Notifier = (*Hub)(nil) // interface compliance check

func NewHub(logger core.Logger) *Hub {
	return &Hub{
		subs:   make(map[string]map[*Subscription]struct{}),
		buffer: defaultBuffer,
		logger: logger,
	}
}

// Subscribe registers a subscriber on channel. An empty socketID gets a generated one.
func (h *Hub) Subscribe(channel, socketID string) *Subscription {
	if socketID == "" {
		socketID = uuid.NewString()
	}
	c := make(chan resource.Event, h.buffer)
	sub := &Subscription{ID: socketID, Channel: channel, C: c, c: c, hub: h}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[channel] == nil {
		h.subs[channel] = make(map[*Subscription]struct{})
	}
	h.subs[channel][sub] = struct{}{}
	return sub
}

func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.subs[sub.Channel]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.subs, sub.Channel)
		}
	}
	close(sub.c)
}

// Subscribers returns the number of open subscriptions on channel.
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[channel])
}

func (h *Hub) Publish(_ context.Context, ev resource.Event) error {
	h.deliver(ev)
	return nil
}

// deliver never blocks: a subscriber whose buffer is full misses the event.
func (h *Hub) deliver(ev resource.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[ev.Channel] {
		if ev.Origin != "" && sub.ID == ev.Origin {
			continue
		}
		select {
		case sub.c <- ev:
		default:
			h.logger.Warn(fmt.Sprintf("pubsub: dropping %s for slow subscriber %s", ev.Name, sub.ID))
		}
	}
}
