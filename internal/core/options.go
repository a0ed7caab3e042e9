package core

import (
	"context"
	"time"

	"go.uber.org/zap"

	"billing-engine/internal/logger"
)

// Option configures a core service.
type Option func(*options)

type options struct {
	log      *zap.Logger
	now      func() time.Time
	notifier Notifier
}

func newOptions(opts []Option) options {
	o := options{
		log:      zap.NewNop(),
		now:      time.Now,
		notifier: NopNotifier{},
	}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// WithLogger sets the base logger. Request-scoped loggers found on the
// context take precedence.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithNotifier sets the document delivery collaborator.
func WithNotifier(n Notifier) Option {
	return func(o *options) {
		if n != nil {
			o.notifier = n
		}
	}
}

func (o options) logger(ctx context.Context, orgID int) *zap.Logger {
	return logger.FromContextOr(ctx, o.log).With(zap.Int("organization_id", orgID))
}

// detach keeps request-scoped values but drops cancellation, so a client
// disconnect cannot abort a transaction that has already started.
func detach(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
