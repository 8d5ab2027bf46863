package sequence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/bams-platform/bams-api/pkg/errors"
)

const (
	lockKeyPrefix        = "bams:archive:number:lock:"
	defaultLockTTL       = 10 * time.Second
	defaultRetryInterval = 100 * time.Millisecond
)

// Locker is the set-if-absent lease primitive backing the allocator. The
// production implementation sits on Redis; tests use an in-memory one.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// SequenceSource reports the highest persisted sequence for a scope key.
type SequenceSource interface {
	MaxSequence(ctx context.Context, scopeKey string) (int, error)
}

// Allocator issues strictly increasing numeric suffixes per scope key (a
// project code), safe under concurrent callers. A short-lived exclusive lease
// serializes allocation across processes; an in-process high-water mark covers
// the window between issuing a number and the caller persisting it, so a
// number handed out is never handed out again even before it reaches the
// database.
type Allocator struct {
	locker        Locker
	source        SequenceSource
	logger        *zap.Logger
	lockTTL       time.Duration
	retryInterval time.Duration

	mu     sync.Mutex
	issued map[string]int
}

// NewAllocator constructs an allocator with defaults applied.
func NewAllocator(locker Locker, source SequenceSource, logger *zap.Logger, lockTTL, retryInterval time.Duration) *Allocator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if lockTTL <= 0 {
		lockTTL = defaultLockTTL
	}
	if retryInterval <= 0 {
		retryInterval = defaultRetryInterval
	}
	return &Allocator{
		locker:        locker,
		source:        source,
		logger:        logger,
		lockTTL:       lockTTL,
		retryInterval: retryInterval,
		issued:        make(map[string]int),
	}
}

// Next returns the next unissued sequence for the scope key. Callers bound the
// wait through ctx; without a deadline the loop is bounded only by the lease
// TTL, which guarantees eventual acquisition.
func (a *Allocator) Next(ctx context.Context, scopeKey string) (int, error) {
	lockKey := lockKeyPrefix + scopeKey
	for {
		ok, err := a.locker.Acquire(ctx, lockKey, a.lockTTL)
		if err != nil {
			return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "sequence lease store unavailable")
		}
		if ok {
			seq, err := a.nextLocked(ctx, scopeKey)
			if releaseErr := a.locker.Release(ctx, lockKey); releaseErr != nil {
				a.logger.Warn("failed to release sequence lease", zap.String("scope", scopeKey), zap.Error(releaseErr))
			}
			return seq, err
		}

		select {
		case <-ctx.Done():
			return 0, appErrors.Wrap(ctx.Err(), appErrors.ErrSequenceContention.Code,
				appErrors.ErrSequenceContention.Status, "sequence allocation interrupted while waiting for lease")
		case <-time.After(a.retryInterval):
		}
	}
}

// ArchiveNumber allocates and formats the next archive number for a project.
func (a *Allocator) ArchiveNumber(ctx context.Context, projectCode string) (string, error) {
	seq, err := a.Next(ctx, projectCode)
	if err != nil {
		return "", err
	}
	return FormatArchiveNumber(projectCode, seq), nil
}

// FormatArchiveNumber renders `{projectCode}-{seq:04d}`. Sequences past 9999
// widen naturally.
func FormatArchiveNumber(projectCode string, seq int) string {
	return fmt.Sprintf("%s-%04d", projectCode, seq)
}

func (a *Allocator) nextLocked(ctx context.Context, scopeKey string) (int, error) {
	max, err := a.source.MaxSequence(ctx, scopeKey)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "read max sequence")
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if issued := a.issued[scopeKey]; issued > max {
		max = issued
	}
	next := max + 1
	a.issued[scopeKey] = next
	return next, nil
}
