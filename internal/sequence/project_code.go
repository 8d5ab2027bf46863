package sequence

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/bams-platform/bams-api/pkg/errors"
)

const (
	projectCodePrefix  = "XMB"
	defaultCodeRetries = 3
)

// CodeSource exposes the persisted project-code state the generator reads.
// MaxCodeSequence compares code suffixes numerically, so sequences past 999
// keep ascending instead of wrapping back to the lexicographic maximum.
type CodeSource interface {
	MaxCodeSequence(ctx context.Context) (int, error)
	CodeExists(ctx context.Context, code string) (bool, error)
}

// CodeGenerator issues project codes (`XMB001`, `XMB002`, ...) using
// optimistic retry: compute a candidate from the current maximum, probe it for
// uniqueness, and back off randomly on collision. Unlike the archive-number
// allocator there is no lease; sustained contention surfaces as a contention
// error after the retry budget is spent.
type CodeGenerator struct {
	source  CodeSource
	logger  *zap.Logger
	retries int
}

// NewCodeGenerator constructs a generator with defaults applied.
func NewCodeGenerator(source CodeSource, logger *zap.Logger, retries int) *CodeGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if retries <= 0 {
		retries = defaultCodeRetries
	}
	return &CodeGenerator{source: source, logger: logger, retries: retries}
}

// NextProjectCode returns an unused project code or a contention error.
func (g *CodeGenerator) NextProjectCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < g.retries; attempt++ {
		maxSeq, err := g.source.MaxCodeSequence(ctx)
		if err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "read max project code")
		}

		candidate := fmt.Sprintf("%s%03d", projectCodePrefix, maxSeq+1)

		exists, err := g.source.CodeExists(ctx, candidate)
		if err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "check project code")
		}
		if !exists {
			return candidate, nil
		}

		g.logger.Debug("project code collision", zap.String("candidate", candidate), zap.Int("attempt", attempt+1))
		if attempt < g.retries-1 {
			select {
			case <-ctx.Done():
				return "", appErrors.Wrap(ctx.Err(), appErrors.ErrSequenceContention.Code,
					appErrors.ErrSequenceContention.Status, "project code generation interrupted")
			case <-time.After(collisionBackoff()):
			}
		}
	}
	return "", appErrors.Clone(appErrors.ErrSequenceContention, "project code generation exhausted retries")
}

// collisionBackoff spreads retrying generators across a 50-100ms window.
func collisionBackoff() time.Duration {
	return time.Duration(50+rand.Intn(51)) * time.Millisecond
}
