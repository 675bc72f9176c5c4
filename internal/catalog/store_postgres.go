package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"civicdesk/internal/protocol/models"
	id "civicdesk/pkg/domain"
	"civicdesk/pkg/platform/sentinel"
	txcontext "civicdesk/pkg/platform/tx"
)

// PostgresStore reads the services table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, serviceID id.ServiceID) (*models.Service, error) {
	var (
		service      models.Service
		rawID        uuid.UUID
		departmentID uuid.UUID
		serviceType  string
		moduleType   sql.NullString
		description  sql.NullString
		linkConfig   []byte
	)
	err := txcontext.QuerierFor(ctx, s.db).QueryRowContext(ctx,
		`SELECT id, name, description, department_id, service_type, module_type, is_active, link_config
		   FROM services
		  WHERE id = $1`,
		uuid.UUID(serviceID),
	).Scan(&rawID, &service.Name, &description, &departmentID, &serviceType,
		&moduleType, &service.IsActive, &linkConfig)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find service: %w", err)
	}
	service.ID = id.ServiceID(rawID)
	service.DepartmentID = id.DepartmentID(departmentID)
	service.Description = description.String
	service.ServiceType = models.ServiceType(serviceType)
	service.ModuleType = models.ModuleType(moduleType.String)
	service.LinkConfig = linkConfig
	return &service, nil
}
