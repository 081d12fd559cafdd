package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/trezcool/sdoims/core"
	"github.com/trezcool/sdoims/core/resource"
)

// PGBridge relays events through PostgreSQL LISTEN/NOTIFY so every API instance delivers them to its own Hub.
type PGBridge struct {
	dsn     string
	channel string
	hub     *Hub
	logger  core.Logger

	pub    execer
	closer func()
}

// execer is satisfied by *pgxpool.Pool, which request goroutines may share.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var _ resource.Notifier = (*PGBridge)(nil) // interface compliance check

func NewPGBridge(ctx context.Context, dsn, channel string, hub *Hub, logger core.Logger) (*PGBridge, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "creating notify pool")
	}
	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "connecting notify pool")
	}
	return &PGBridge{dsn: dsn, channel: channel, hub: hub, logger: logger, pub: pool, closer: pool.Close}, nil
}

func (b *PGBridge) Publish(ctx context.Context, ev resource.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "encoding event")
	}
	if _, err = b.pub.Exec(ctx, "SELECT pg_notify($1, $2)", b.channel, string(payload)); err != nil {
		return errors.Wrap(err, "notifying")
	}
	return nil
}

// Listen delivers notifications to the Hub until ctx is done, reconnecting after failures.
func (b *PGBridge) Listen(ctx context.Context) {
	for {
		err := b.listen(ctx)
		if ctx.Err() != nil {
			return
		}
		b.logger.Error(fmt.Sprintf("pubsub: listener stopped: %v", err), err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

func (b *PGBridge) listen(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, b.dsn)
	if err != nil {
		return errors.Wrap(err, "connecting listener")
	}
	defer conn.Close(context.Background())

	if _, err = conn.Exec(ctx, "LISTEN "+pgx.Identifier{b.channel}.Sanitize()); err != nil {
		return errors.Wrap(err, "listening")
	}
	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return errors.Wrap(err, "waiting for notification")
		}
		var ev resource.Event
		if err = json.Unmarshal([]byte(n.Payload), &ev); err != nil {
			b.logger.Warn(fmt.Sprintf("pubsub: bad notification: %v", err), err)
			continue
		}
		b.hub.deliver(ev)
	}
}

func (b *PGBridge) Close() {
	if b.closer != nil {
		b.closer()
	}
}
