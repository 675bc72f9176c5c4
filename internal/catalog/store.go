// Package catalog provides read access to the service catalog: the
// municipal services citizens open protocols against.
package catalog

import (
	"context"

	"civicdesk/internal/protocol/models"
	id "civicdesk/pkg/domain"
)

// Store looks up catalog services.
type Store interface {
	// Get returns a service by id, sentinel.ErrNotFound when absent.
	Get(ctx context.Context, serviceID id.ServiceID) (*models.Service, error)
}
