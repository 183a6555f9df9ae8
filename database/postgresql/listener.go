package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/gaborage/go-bricks-sql/logger"
)

const unlistenTimeout = 5 * time.Second

// Notification is a message received on a LISTEN channel.
type Notification struct {
	PID     uint32
	Channel string
	Payload string
}

// Handler is called with each received notification, and with nil after every poll
// interval that passed without one. Returning false stops the listener.
type Handler func(ctx context.Context, n *Notification) bool

// notificationConn is the part of *pgx.Conn a listener uses
type notificationConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
	Close(ctx context.Context) error
}

// Listener polls a single channel on its own session.
type Listener struct {
	conn     notificationConn
	channel  string
	interval time.Duration
	logger   logger.Logger
}

// NewListener creates a listener on an established pgx connection. The listener owns
// the connection and closes it when Run returns.
func NewListener(conn *pgx.Conn, channel string, interval time.Duration, log logger.Logger) *Listener {
	return newListener(conn, channel, interval, log)
}

func newListener(conn notificationConn, channel string, interval time.Duration, log logger.Logger) *Listener {
	if interval <= 0 {
		interval = defaultNotifyInterval
	}
	return &Listener{conn: conn, channel: channel, interval: interval, logger: log}
}

// Run subscribes and polls until handler returns false (nil is returned) or ctx is
// cancelled (ctx.Err() is returned).
func (l *Listener) Run(ctx context.Context, handler Handler) (err error) {
	channel := pgx.Identifier{l.channel}.Sanitize()

	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), unlistenTimeout)
		defer cancel()
		if _, unlistenErr := l.conn.Exec(cleanupCtx, "UNLISTEN "+channel); unlistenErr != nil {
			l.logger.Debug().Err(unlistenErr).Str("channel", l.channel).Msg("UNLISTEN failed")
		}
		if closeErr := l.conn.Close(cleanupCtx); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close listener connection: %w", closeErr)
		}
	}()

	if _, err := l.conn.Exec(ctx, "LISTEN "+channel); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", l.channel, err)
	}
	l.logger.Debug().Str("channel", l.channel).Dur("interval", l.interval).Msg("Listening for notifications")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := l.poll(ctx)
		if err != nil {
			return err
		}
		if !handler(ctx, n) {
			return nil
		}
	}
}

// poll waits up to one interval for a notification; nil means none arrived.
func (l *Listener) poll(ctx context.Context) (*Notification, error) {
	waitCtx, cancel := context.WithTimeout(ctx, l.interval)
	defer cancel()

	n, err := l.conn.WaitForNotification(waitCtx)
	if err == nil {
		return &Notification{PID: n.PID, Channel: n.Channel, Payload: n.Payload}, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return nil, nil
	}
	return nil, fmt.Errorf("failed waiting for notification on %s: %w", l.channel, err)
}
