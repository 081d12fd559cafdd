package apiclient

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/trezcool/sdoims/client/listcache"
	"github.com/trezcool/sdoims/core/resource"
)

// Event is a change notification whose payload is decoded by the receiver.
type Event struct {
	ID      string          `json:"id"`
	Channel string          `json:"channel"`
	Name    string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Subscription is one realtime connection to a channel.
type Subscription struct {
	SocketID string
	Channel  string
	// C delivers the channel's events until the connection ends.
	C <-chan Event

	conn      *websocket.Conn
	done      chan struct{}
	closeOnce sync.Once
	err       error
}

// Subscribe opens a realtime connection to channel, e.g. "tickets".
func (c *Client) Subscribe(ctx context.Context, channel string) (*Subscription, error) {
	u := *c.base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = c.base.Path + "/v1/realtime"
	u.RawQuery = url.Values{"channel": {channel}, "token": {c.token}}.Encode()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, decodeError(resp.StatusCode, nil)
		}
		return nil, errors.Wrap(err, "dialing realtime")
	}

	var welcome struct {
		SocketID string `json:"socket_id"`
		Channel  string `json:"channel"`
	}
	if err = conn.ReadJSON(&welcome); err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "reading welcome")
	}

	events := make(chan Event, 16)
	sub := &Subscription{SocketID: welcome.SocketID, Channel: welcome.Channel, C: events, conn: conn, done: make(chan struct{})}
	go sub.read(events)
	return sub, nil
}

func (s *Subscription) read(events chan<- Event) {
	defer close(events)
	for {
		var ev Event
		if err := s.conn.ReadJSON(&ev); err != nil {
			s.err = err
			return
		}
		select {
		case events <- ev:
		case <-s.done:
			return
		}
	}
}

// Err returns why the connection ended, once C is closed.
func (s *Subscription) Err() error { return s.err }

// Close ends the connection; C is closed once the reader stops.
func (s *Subscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.conn.Close()
	})
	return err
}

// Follow merges the records carried by the subscription's events into cache until C is closed or ctx is done.
// Payloads that do not decode to T are skipped.
func Follow[T resource.Record](ctx context.Context, sub *Subscription, cache *listcache.Cache[T]) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			var rec T
			if err := json.Unmarshal(ev.Payload, &rec); err != nil {
				continue
			}
			cache.Merge(rec)
		}
	}
}
