package store

import (
	"context"
	"time"

	"civicdesk/internal/citizen/models"
	id "civicdesk/pkg/domain"
)

// Directory is the lookup surface the link resolver depends on. Postgres
// backs production; the in-memory implementation backs unit tests and the
// memory wiring profile.
type Directory interface {
	FindByID(ctx context.Context, citizenID id.CitizenID) (*models.Citizen, error)
	// FindByDocument matches the normalized document number exactly.
	FindByDocument(ctx context.Context, document string) (*models.Citizen, error)
	// FindByNameAndBirthDate matches name case-insensitively as a substring
	// and birth date exactly, the legacy-field fallback order.
	FindByNameAndBirthDate(ctx context.Context, name string, birthDate time.Time) (*models.Citizen, error)
}
