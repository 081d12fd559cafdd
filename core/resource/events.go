package resource

import (
	"context"
	"fmt"

	"github.com/oklog/ulid/v2"

	"github.com/trezcool/sdoims/core"
)

// Event is a change notification fanned out to channel subscribers.
type Event struct {
	ID      string      `json:"id"`
	Channel string      `json:"channel"`
	Name    string      `json:"event"`
	Payload interface{} `json:"payload"`
	// Origin is the socket id of the client that caused the change; that client is skipped on delivery.
	Origin string `json:"origin,omitempty"`
}

func NewEvent(channel, name string, payload interface{}) Event {
	return Event{
		ID:      ulid.Make().String(),
		Channel: channel,
		Name:    name,
		Payload: payload,
	}
}

// Notifier publishes events. Publishing is best-effort and must not block for long.
type Notifier interface {
	Publish(ctx context.Context, ev Event) error
}

// Dispatch publishes events after the mutation that produced them has committed.
// Failures are logged and never reach the caller.
func Dispatch(ctx context.Context, n Notifier, logger core.Logger, origin string, events ...Event) {
	if n == nil {
		return
	}
	for _, ev := range events {
		ev.Origin = origin
		if err := n.Publish(ctx, ev); err != nil {
			logger.Warn(fmt.Sprintf("publishing %s on %s: %v", ev.Name, ev.Channel, err), err)
		}
	}
}
