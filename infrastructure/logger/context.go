package logger

import (
	"context"
	"sync"
)

type ctxKey struct{}

// WithContext stores l in ctx. The request-id middleware uses it to hand
// handlers a logger that already carries the request id.
func WithContext(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger stored in ctx, or a shared stderr logger
// at warn level so errors are never dropped.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(ctxKey{}).(Logger); ok {
		return l
	}
	return fallbackLogger()
}

var (
	fallbackLog  Logger
	fallbackOnce sync.Once
)

func fallbackLogger() Logger {
	fallbackOnce.Do(func() {
		l, err := New(Config{Level: "warn", OutputPaths: []string{"stderr"}})
		if err != nil {
			l = NewNop()
		}
		fallbackLog = l
	})
	return fallbackLog
}
