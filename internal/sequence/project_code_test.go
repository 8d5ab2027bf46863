package sequence

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	appErrors "github.com/bams-platform/bams-api/pkg/errors"
)

type codeSourceStub struct {
	mu       sync.Mutex
	maxSeq   int
	existing map[string]bool
	// collideFor forces the first N uniqueness probes to report a collision.
	collideFor int
	probes     int
}

func (s *codeSourceStub) MaxCodeSequence(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxSeq, nil
}

func (s *codeSourceStub) CodeExists(ctx context.Context, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probes++
	if s.probes <= s.collideFor {
		return true, nil
	}
	return s.existing[code], nil
}

func TestProjectCodeFirstEver(t *testing.T) {
	gen := NewCodeGenerator(&codeSourceStub{}, nil, 3)
	code, err := gen.NextProjectCode(context.Background())
	require.NoError(t, err)
	require.Equal(t, "XMB001", code)
}

func TestProjectCodeIncrementsFromMax(t *testing.T) {
	gen := NewCodeGenerator(&codeSourceStub{maxSeq: 41}, nil, 3)
	code, err := gen.NextProjectCode(context.Background())
	require.NoError(t, err)
	require.Equal(t, "XMB042", code)
}

func TestProjectCodeGrowsPastThreeDigits(t *testing.T) {
	gen := NewCodeGenerator(&codeSourceStub{maxSeq: 999}, nil, 3)
	code, err := gen.NextProjectCode(context.Background())
	require.NoError(t, err)
	require.Equal(t, "XMB1000", code)

	gen = NewCodeGenerator(&codeSourceStub{maxSeq: 1000}, nil, 3)
	code, err = gen.NextProjectCode(context.Background())
	require.NoError(t, err)
	require.Equal(t, "XMB1001", code)
}

func TestProjectCodeRetriesOnCollision(t *testing.T) {
	source := &codeSourceStub{maxSeq: 1, collideFor: 2}
	gen := NewCodeGenerator(source, nil, 3)
	code, err := gen.NextProjectCode(context.Background())
	require.NoError(t, err)
	require.Equal(t, "XMB002", code)
	require.Equal(t, 3, source.probes)
}

func TestProjectCodeExhaustsRetries(t *testing.T) {
	source := &codeSourceStub{maxSeq: 1, collideFor: 100}
	gen := NewCodeGenerator(source, nil, 3)
	_, err := gen.NextProjectCode(context.Background())
	require.Error(t, err)
	require.True(t, appErrors.Is(err, appErrors.ErrSequenceContention))
}
