package store

import (
	"context"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// OutboxChannel is the NOTIFY channel raised for every appended outbox row.
const OutboxChannel = "outbox_messages"

// OutboxListener turns outbox NOTIFY traffic into dispatcher wake-ups.
type OutboxListener struct {
	listener *pq.Listener
	logger   *zap.Logger
}

func NewOutboxListener(connStr string, logger *zap.Logger) (*OutboxListener, error) {
	logger = logger.Named("outbox-listener")
	l := pq.NewListener(connStr, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logger.Warn("listener connection event", zap.Int("event", int(ev)), zap.Error(err))
		}
	})
	if err := l.Listen(OutboxChannel); err != nil {
		l.Close()
		return nil, err
	}
	return &OutboxListener{listener: l, logger: logger}, nil
}

// Run forwards notifications to wake until ctx is done. Sends never block;
// a pending wake-up already covers any rows behind it.
func (o *OutboxListener) Run(ctx context.Context, wake chan<- struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-o.listener.Notify:
			// a nil notification follows a reconnect; rows may have been missed, so wake anyway
			select {
			case wake <- struct{}{}:
			default:
			}
		case <-time.After(90 * time.Second):
			go func() {
				if err := o.listener.Ping(); err != nil {
					o.logger.Warn("listener ping failed", zap.Error(err))
				}
			}()
		}
	}
}

func (o *OutboxListener) Close() error {
	return o.listener.Close()
}
