// Package sequence allocates protocol numbers: "{year}-{counter:06d}",
// unique and gap-free under concurrency.
package sequence

import "context"

// ResetPolicy controls what happens to the counter at a year boundary.
type ResetPolicy string

const (
	// ResetYearly restarts the counter at 1 on the first allocation of
	// each calendar year.
	ResetYearly ResetPolicy = "yearly"

	// ResetNever keeps one monotonic counter forever; the year prefix is
	// cosmetic.
	ResetNever ResetPolicy = "never"
)

// IsValid reports whether the policy is a known value.
func (p ResetPolicy) IsValid() bool {
	return p == ResetYearly || p == ResetNever
}

// Generator allocates the next protocol number.
type Generator interface {
	// Next returns a fresh number. Safe for concurrent use: two calls
	// never return the same number and the counter never skips.
	Next(ctx context.Context) (string, error)
}
