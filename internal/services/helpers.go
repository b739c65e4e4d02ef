package services

import (
	"context"
	"strings"
	"time"
)

const (
	// defaultReadTimeout bounds simple lookups.
	defaultReadTimeout = 3 * time.Second
	// defaultWriteTimeout bounds mutating operations, which may touch
	// several tables inside one transaction.
	defaultWriteTimeout = 8 * time.Second
)

func readContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ensureContext(ctx), defaultReadTimeout)
}

func writeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ensureContext(ctx), defaultWriteTimeout)
}

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func defaultIfEmpty(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

// excludeUID returns uids with the supplied uid removed. Self-actions never
// self-notify.
func excludeUID(uids []string, uid string) []string {
	out := make([]string, 0, len(uids))
	for _, candidate := range uids {
		if candidate != uid {
			out = append(out, candidate)
		}
	}
	return out
}
