package sequence

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	appErrors "github.com/bams-platform/bams-api/pkg/errors"
)

type memoryLocker struct {
	mu    sync.Mutex
	held  map[string]bool
	fail  error
	delay time.Duration
}

func newMemoryLocker() *memoryLocker {
	return &memoryLocker{held: make(map[string]bool)}
}

func (l *memoryLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if l.fail != nil {
		return false, l.fail
	}
	if l.delay > 0 {
		time.Sleep(l.delay)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return false, nil
	}
	l.held[key] = true
	return true, nil
}

func (l *memoryLocker) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	return nil
}

// storeSource mimics the database view of persisted sequences: the max only
// moves when a caller commits an issued number.
type storeSource struct {
	mu        sync.Mutex
	committed map[string]int
}

func newStoreSource() *storeSource {
	return &storeSource{committed: make(map[string]int)}
}

func (s *storeSource) MaxSequence(ctx context.Context, scopeKey string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.committed[scopeKey], nil
}

func (s *storeSource) commit(scopeKey string, seq int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq > s.committed[scopeKey] {
		s.committed[scopeKey] = seq
	}
}

func TestAllocatorSequentialIncrements(t *testing.T) {
	source := newStoreSource()
	alloc := NewAllocator(newMemoryLocker(), source, nil, time.Second, time.Millisecond)

	for want := 1; want <= 5; want++ {
		seq, err := alloc.Next(context.Background(), "XMB001")
		require.NoError(t, err)
		require.Equal(t, want, seq)
		source.commit("XMB001", seq)
	}
}

func TestAllocatorConcurrentCallersDistinct(t *testing.T) {
	source := newStoreSource()
	alloc := NewAllocator(newMemoryLocker(), source, nil, time.Second, time.Millisecond)

	const callers = 32
	results := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			number, err := alloc.ArchiveNumber(context.Background(), "XMB007")
			require.NoError(t, err)
			results[idx] = number
		}(i)
	}
	wg.Wait()

	seen := make(map[string]struct{}, callers)
	for _, number := range results {
		_, dup := seen[number]
		require.False(t, dup, "duplicate archive number %s", number)
		seen[number] = struct{}{}
	}

	sort.Strings(results)
	for i, number := range results {
		require.Equal(t, fmt.Sprintf("XMB007-%04d", i+1), number)
	}
}

func TestAllocatorScopesAreIndependent(t *testing.T) {
	source := newStoreSource()
	alloc := NewAllocator(newMemoryLocker(), source, nil, time.Second, time.Millisecond)

	a, err := alloc.Next(context.Background(), "XMB001")
	require.NoError(t, err)
	b, err := alloc.Next(context.Background(), "XMB002")
	require.NoError(t, err)
	require.Equal(t, 1, a)
	require.Equal(t, 1, b)
}

func TestAllocatorNeverReissuesUncommitted(t *testing.T) {
	// The database max stays at zero because nothing is committed; the
	// in-process high-water mark must still advance.
	source := newStoreSource()
	alloc := NewAllocator(newMemoryLocker(), source, nil, time.Second, time.Millisecond)

	first, err := alloc.Next(context.Background(), "XMB003")
	require.NoError(t, err)
	second, err := alloc.Next(context.Background(), "XMB003")
	require.NoError(t, err)
	require.Equal(t, first+1, second)
}

func TestAllocatorContextCancelledWhileWaiting(t *testing.T) {
	locker := newMemoryLocker()
	// Hold the lease so the allocator has to wait.
	ok, err := locker.Acquire(context.Background(), lockKeyPrefix+"XMB009", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	alloc := NewAllocator(locker, newStoreSource(), nil, time.Minute, 5*time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err = alloc.Next(ctx, "XMB009")
	require.Error(t, err)
	require.True(t, appErrors.Is(err, appErrors.ErrSequenceContention))
}

func TestAllocatorLeaseStoreUnavailable(t *testing.T) {
	locker := newMemoryLocker()
	locker.fail = errors.New("connection refused")

	alloc := NewAllocator(locker, newStoreSource(), nil, time.Second, time.Millisecond)
	_, err := alloc.Next(context.Background(), "XMB001")
	require.Error(t, err)
	require.True(t, appErrors.Is(err, appErrors.ErrInternal))
}

func TestFormatArchiveNumberWidens(t *testing.T) {
	require.Equal(t, "XMB001-0007", FormatArchiveNumber("XMB001", 7))
	require.Equal(t, "XMB001-12345", FormatArchiveNumber("XMB001", 12345))
}
