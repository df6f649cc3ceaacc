package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// Notifier wraps the LISTEN/NOTIFY mechanism in PostgreSQL. Emergency triage
// verdicts are announced on a channel so an on-call dashboard can react
// without polling turn_records.
type Notifier struct {
	DB      *sql.DB
	ConnStr string
	Channel string
	Log     *zap.Logger
}

// NewNotifier constructs a Notifier. connStr must be the same DSN the pool
// was opened with; pq.Listener needs its own dedicated connection.
func NewNotifier(db *sql.DB, connStr, channel string, logger *zap.Logger) *Notifier {
	return &Notifier{DB: db, ConnStr: connStr, Channel: channel, Log: logger}
}

// NotifyEmergency announces an emergency verdict for the session.
func (n *Notifier) NotifyEmergency(ctx context.Context, sessionID string) error {
	_, err := n.DB.ExecContext(ctx, `SELECT pg_notify($1, $2)`, n.Channel, sessionID)
	if err != nil {
		n.Log.Warn("emergency notify failed", zap.String("session_id", sessionID), zap.Error(err))
	}
	return err
}

// Listen blocks on the channel and yields session ids as alerts arrive. The
// returned channel closes when ctx is cancelled or the listener dies.
func (n *Notifier) Listen(ctx context.Context) (<-chan string, error) {
	listener := pq.NewListener(n.ConnStr, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			n.Log.Warn("pq listener event", zap.Int("event", int(ev)), zap.Error(err))
		}
	})
	if err := listener.Listen(n.Channel); err != nil {
		_ = listener.Close()
		return nil, err
	}

	ch := make(chan string)
	go func() {
		defer func() {
			_ = listener.Close()
			close(ch)
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case note, ok := <-listener.Notify:
				if !ok {
					return
				}
				if note == nil {
					// reconnect marker; nothing to deliver
					continue
				}
				select {
				case ch <- note.Extra:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch, nil
}
