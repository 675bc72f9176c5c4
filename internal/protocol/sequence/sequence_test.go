package sequence

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	"civicdesk/internal/protocol/models"
	"civicdesk/pkg/requestcontext"
)

type InMemorySequenceSuite struct {
	suite.Suite
}

func TestInMemorySequenceSuite(t *testing.T) {
	suite.Run(t, new(InMemorySequenceSuite))
}

func (s *InMemorySequenceSuite) pinned(year int) context.Context {
	return requestcontext.WithTime(context.Background(),
		time.Date(year, time.June, 1, 12, 0, 0, 0, time.UTC))
}

func (s *InMemorySequenceSuite) TestFormat() {
	g := NewInMemory()
	ctx := s.pinned(2026)

	number, err := g.Next(ctx)
	s.Require().NoError(err)
	s.Equal("2026-000001", number)
	s.Regexp(models.NumberPattern, number)

	number, err = g.Next(ctx)
	s.Require().NoError(err)
	s.Equal("2026-000002", number)
}

func (s *InMemorySequenceSuite) TestYearRollover() {
	s.Run("yearly reset restarts the counter", func() {
		g := NewInMemory()
		for i := 0; i < 3; i++ {
			_, err := g.Next(s.pinned(2025))
			s.Require().NoError(err)
		}
		number, err := g.Next(s.pinned(2026))
		s.Require().NoError(err)
		s.Equal("2026-000001", number)
	})

	s.Run("continuous policy keeps counting", func() {
		g := NewInMemory(WithInMemoryResetPolicy(ResetNever))
		for i := 0; i < 3; i++ {
			_, err := g.Next(s.pinned(2025))
			s.Require().NoError(err)
		}
		number, err := g.Next(s.pinned(2026))
		s.Require().NoError(err)
		s.Equal("2026-000004", number)
	})
}

func (s *InMemorySequenceSuite) TestConcurrentAllocationsAreGapFree() {
	const workers = 64
	g := NewInMemory()
	ctx := s.pinned(2026)

	var mu sync.Mutex
	seen := make(map[string]bool, workers)

	var eg errgroup.Group
	for i := 0; i < workers; i++ {
		eg.Go(func() error {
			number, err := g.Next(ctx)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			if seen[number] {
				return fmt.Errorf("duplicate number %s", number)
			}
			seen[number] = true
			return nil
		})
	}
	s.Require().NoError(eg.Wait())

	// Uniqueness plus density proves no gaps.
	s.Len(seen, workers)
	for i := 1; i <= workers; i++ {
		s.True(seen[fmt.Sprintf("2026-%06d", i)], "missing counter %d", i)
	}
}

func TestParseNumber(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		year, counter, err := parseNumber("2026-000042")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if year != 2026 || counter != 42 {
			t.Fatalf("got %d-%d, want 2026-42", year, counter)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		for _, input := range []string{"", "2026", "2026_000042", "year-000042", "2026-count"} {
			if _, _, err := parseNumber(input); err == nil {
				t.Errorf("expected error for %q", input)
			}
		}
	})
}
