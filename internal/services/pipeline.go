package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/taskhive/taskhive/pkg/logger"
)

// sideEffect is one post-commit step of a mutation: activity recording,
// notification fan-out, or realtime publication.
type sideEffect struct {
	name string
	fn   func(ctx context.Context) error
}

// runSideEffects executes post-commit hooks in order. By the time these run
// the primary write has already committed; failures are logged per hook and
// never joined into the caller's result.
func runSideEffects(ctx context.Context, log *zap.Logger, effects []sideEffect) {
	for _, effect := range effects {
		if effect.fn == nil {
			continue
		}
		if err := effect.fn(ctx); err != nil {
			log.Warn("side effect failed",
				zap.String("effect", effect.name),
				zap.Error(err),
			)
		}
	}
}

func pipelineLogger(module string) *zap.Logger {
	return logger.WithModule(module)
}
