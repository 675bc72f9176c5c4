package sequence

import (
	"context"
	"fmt"
	"sync"

	"civicdesk/pkg/requestcontext"
)

// InMemory is a mutex-guarded generator for tests and the memory wiring
// profile. Same numbering semantics as the Postgres generator.
type InMemory struct {
	mu       sync.Mutex
	policy   ResetPolicy
	lastYear int
	counter  int
}

// InMemoryOption configures an InMemory generator.
type InMemoryOption func(*InMemory)

// WithInMemoryResetPolicy overrides the default yearly counter reset.
func WithInMemoryResetPolicy(policy ResetPolicy) InMemoryOption {
	return func(g *InMemory) {
		if policy.IsValid() {
			g.policy = policy
		}
	}
}

func NewInMemory(opts ...InMemoryOption) *InMemory {
	g := &InMemory{policy: ResetYearly}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

func (g *InMemory) Next(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	year := requestcontext.Now(ctx).Year()
	if g.policy == ResetYearly && year != g.lastYear {
		g.counter = 0
	}
	g.lastYear = year
	g.counter++
	return fmt.Sprintf("%04d-%06d", year, g.counter), nil
}
