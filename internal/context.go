package internal

import (
	"context"
	"time"
)

type ctxKey string

const ContextSubjectKey ctxKey = "tokenSubject"

// SubjectFromContext returns the authenticated token subject (device or
// admin identifier), or "" when the request was not authenticated.
func SubjectFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if subject, ok := ctx.Value(ContextSubjectKey).(string); ok {
		return subject
	}
	return ""
}

func ContextWithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, ContextSubjectKey, subject)
}

// WithTimeout returns a context with timeout, defaulting to 5 seconds if duration is zero or negative.
func WithTimeout(ctx context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if duration <= 0 {
		duration = 5 * time.Second
	}
	return context.WithTimeout(ctx, duration)
}
