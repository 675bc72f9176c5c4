package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"civicdesk/internal/protocol/models"
	id "civicdesk/pkg/domain"
	txcontext "civicdesk/pkg/platform/tx"
)

// moduleTables maps each actionable module type to its side record table.
// Every table carries protocol_id, state and is_active columns.
var moduleTables = map[models.ModuleType]string{
	models.ModuleSchoolEnrollment:       "school_enrollments",
	models.ModuleHealthAppointment:      "health_appointments",
	models.ModuleRuralProgramEnrollment: "rural_program_enrollments",
	models.ModuleHousingApplication:     "housing_applications",
}

// PostgresStore updates module side record tables.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) UpdateState(ctx context.Context, module models.ModuleType, protocolID id.ProtocolID, state State) (int64, error) {
	table, ok := moduleTables[module]
	if !ok {
		return 0, fmt.Errorf("module %q has no side record table", module)
	}
	res, err := txcontext.QuerierFor(ctx, s.db).ExecContext(ctx,
		`UPDATE `+table+` SET
			state      = $2,
			is_active  = $3,
			updated_at = now()
		  WHERE protocol_id = $1`,
		uuid.UUID(protocolID), string(state), state == StateActive,
	)
	if err != nil {
		return 0, fmt.Errorf("update %s state: %w", table, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update %s state: %w", table, err)
	}
	return affected, nil
}
