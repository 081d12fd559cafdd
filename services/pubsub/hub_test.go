package pubsub

import (
	"context"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/sdoims/core"
	"github.com/trezcool/sdoims/core/resource"
	logsvc "github.com/trezcool/sdoims/services/logger"
)

func newHub() *Hub {
	return NewHub(logsvc.NewRollbarLogger(log.New(testWriter{}, "", 0), core.NewTestConfig()))
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

func receive(t *testing.T, sub *Subscription) (resource.Event, bool) {
	t.Helper()
	select {
	case ev, ok := <-sub.C:
		return ev, ok
	case <-time.After(50 * time.Millisecond):
		return resource.Event{}, false
	}
}

func TestHub_Publish(t *testing.T) {
	hub := newHub()
	a := hub.Subscribe("districts", "a")
	b := hub.Subscribe("districts", "b")
	other := hub.Subscribe("schools", "c")
	defer a.Close()
	defer b.Close()
	defer other.Close()

	ev := resource.NewEvent("districts", "created", map[string]int{"id": 1})
	ev.Origin = "a"
	require.NoError(t, hub.Publish(context.Background(), ev))

	got, ok := receive(t, b)
	require.True(t, ok)
	assert.Equal(t, ev.ID, got.ID)

	_, ok = receive(t, a)
	assert.False(t, ok, "originator is skipped")
	_, ok = receive(t, other)
	assert.False(t, ok, "other channels are not notified")
}

func TestHub_Close(t *testing.T) {
	hub := newHub()
	sub := hub.Subscribe("tickets", "")
	assert.NotEmpty(t, sub.ID)
	assert.Equal(t, 1, hub.Subscribers("tickets"))

	sub.Close()
	sub.Close()
	assert.Equal(t, 0, hub.Subscribers("tickets"))

	_, open := <-sub.C
	assert.False(t, open)
	assert.NoError(t, hub.Publish(context.Background(), resource.NewEvent("tickets", "deleted", nil)))
}

func TestHub_slowSubscriber(t *testing.T) {
	hub := newHub()
	hub.buffer = 1
	sub := hub.Subscribe("opcrs", "s")
	defer sub.Close()

	for i := 0; i < 3; i++ {
		require.NoError(t, hub.Publish(context.Background(), resource.NewEvent("opcrs", "updated", i)))
	}
	ev, ok := receive(t, sub)
	require.True(t, ok)
	assert.Equal(t, 0, ev.Payload)
	_, ok = receive(t, sub)
	assert.False(t, ok)
}
