package protocol

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"civicdesk/internal/protocol/models"
	id "civicdesk/pkg/domain"
	"civicdesk/pkg/platform/sentinel"
	txcontext "civicdesk/pkg/platform/tx"
)

// PostgresStore persists protocols in the protocols table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const protocolColumns = `id, number, title, description, status, citizen_id, service_id,
	department_id, service_type, module_type, custom_data, created_by, created_at,
	updated_at, concluded_at`

func (s *PostgresStore) Create(ctx context.Context, protocol *models.Protocol) error {
	customData, err := marshalPayload(protocol.CustomData)
	if err != nil {
		return err
	}
	var createdBy any
	if !protocol.CreatedByID.IsNil() {
		createdBy = uuid.UUID(protocol.CreatedByID)
	}
	_, err = txcontext.QuerierFor(ctx, s.db).ExecContext(ctx,
		`INSERT INTO protocols
			(id, number, title, description, status, citizen_id, service_id,
			 department_id, service_type, module_type, custom_data, created_by,
			 created_at, updated_at, concluded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''), $11, $12, $13, $14, $15)`,
		uuid.UUID(protocol.ID), protocol.Number, protocol.Title, protocol.Description,
		string(protocol.Status), uuid.UUID(protocol.CitizenID), uuid.UUID(protocol.ServiceID),
		uuid.UUID(protocol.DepartmentID), string(protocol.ServiceType), string(protocol.ModuleType),
		customData, createdBy, protocol.CreatedAt, protocol.UpdatedAt, protocol.ConcludedAt,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert protocol: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, protocolID id.ProtocolID) (*models.Protocol, error) {
	row := txcontext.QuerierFor(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+protocolColumns+` FROM protocols WHERE id = $1`,
		uuid.UUID(protocolID),
	)
	return scanProtocol(row)
}

func (s *PostgresStore) GetByNumber(ctx context.Context, number string) (*models.Protocol, error) {
	row := txcontext.QuerierFor(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+protocolColumns+` FROM protocols WHERE number = $1`,
		number,
	)
	return scanProtocol(row)
}

func (s *PostgresStore) GetLoaded(ctx context.Context, protocolID id.ProtocolID) (*Loaded, error) {
	row := txcontext.QuerierFor(ctx, s.db).QueryRowContext(ctx,
		`SELECT p.id, p.number, p.title, p.description, p.status, p.citizen_id,
		        p.service_id, p.department_id, p.service_type, p.module_type,
		        p.custom_data, p.created_by, p.created_at, p.updated_at, p.concluded_at,
		        s.name, s.description, s.service_type, s.module_type, s.is_active, s.link_config,
		        c.name, c.document_number, c.birth_date, c.email, c.phone, c.created_at
		   FROM protocols p
		   JOIN services s ON s.id = p.service_id
		   JOIN citizens c ON c.id = p.citizen_id
		  WHERE p.id = $1`,
		uuid.UUID(protocolID),
	)

	var (
		loaded           Loaded
		rawID            uuid.UUID
		status           string
		citizenID        uuid.UUID
		serviceID        uuid.UUID
		departmentID     uuid.UUID
		serviceType      string
		moduleType       sql.NullString
		customData       []byte
		createdBy        uuid.NullUUID
		concludedAt      sql.NullTime
		svcDescription   sql.NullString
		svcServiceType   string
		svcModuleType    sql.NullString
		citizenBirthDate sql.NullTime
		citizenEmail     sql.NullString
		citizenPhone     sql.NullString
	)
	err := row.Scan(&rawID, &loaded.Protocol.Number, &loaded.Protocol.Title,
		&loaded.Protocol.Description, &status, &citizenID, &serviceID, &departmentID,
		&serviceType, &moduleType, &customData, &createdBy,
		&loaded.Protocol.CreatedAt, &loaded.Protocol.UpdatedAt, &concludedAt,
		&loaded.Service.Name, &svcDescription, &svcServiceType, &svcModuleType,
		&loaded.Service.IsActive, &loaded.Service.LinkConfig,
		&loaded.Citizen.Name, &loaded.Citizen.DocumentNumber, &citizenBirthDate,
		&citizenEmail, &citizenPhone, &loaded.Citizen.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load protocol: %w", err)
	}

	loaded.Protocol.ID = id.ProtocolID(rawID)
	loaded.Protocol.Status = models.Status(status)
	loaded.Protocol.CitizenID = id.CitizenID(citizenID)
	loaded.Protocol.ServiceID = id.ServiceID(serviceID)
	loaded.Protocol.DepartmentID = id.DepartmentID(departmentID)
	loaded.Protocol.ServiceType = models.ServiceType(serviceType)
	loaded.Protocol.ModuleType = models.ModuleType(moduleType.String)
	if len(customData) > 0 {
		if err := json.Unmarshal(customData, &loaded.Protocol.CustomData); err != nil {
			return nil, fmt.Errorf("decode protocol custom data: %w", err)
		}
	}
	if createdBy.Valid {
		loaded.Protocol.CreatedByID = id.UserID(createdBy.UUID)
	}
	if concludedAt.Valid {
		t := concludedAt.Time
		loaded.Protocol.ConcludedAt = &t
	}

	loaded.Service.ID = loaded.Protocol.ServiceID
	loaded.Service.DepartmentID = loaded.Protocol.DepartmentID
	loaded.Service.Description = svcDescription.String
	loaded.Service.ServiceType = models.ServiceType(svcServiceType)
	loaded.Service.ModuleType = models.ModuleType(svcModuleType.String)

	loaded.Citizen.ID = loaded.Protocol.CitizenID
	loaded.Citizen.Email = citizenEmail.String
	loaded.Citizen.Phone = citizenPhone.String
	if citizenBirthDate.Valid {
		t := citizenBirthDate.Time
		loaded.Citizen.BirthDate = &t
	}
	return &loaded, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, protocolID id.ProtocolID, change StatusChange) error {
	// The status predicate re-evaluates against the committed row after any
	// competing writer releases its lock, so a stale verdict affects no rows.
	querier := txcontext.QuerierFor(ctx, s.db)
	res, err := querier.ExecContext(ctx,
		`UPDATE protocols SET
			status       = $2,
			updated_at   = $3,
			concluded_at = $4
		  WHERE id = $1 AND status = $5`,
		uuid.UUID(protocolID), string(change.NewStatus), change.UpdatedAt, change.ConcludedAt,
		string(change.ExpectedStatus),
	)
	if err != nil {
		return fmt.Errorf("update protocol status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update protocol status: %w", err)
	}
	if affected == 0 {
		var exists bool
		err := querier.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM protocols WHERE id = $1)`,
			uuid.UUID(protocolID),
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("update protocol status: %w", err)
		}
		if exists {
			return sentinel.ErrConflict
		}
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListByCitizen(ctx context.Context, citizenID id.CitizenID) ([]*models.Protocol, error) {
	rows, err := txcontext.QuerierFor(ctx, s.db).QueryContext(ctx,
		`SELECT `+protocolColumns+`
		   FROM protocols
		  WHERE citizen_id = $1
		  ORDER BY created_at DESC`,
		uuid.UUID(citizenID),
	)
	if err != nil {
		return nil, fmt.Errorf("list protocols: %w", err)
	}
	defer rows.Close()

	var out []*models.Protocol
	for rows.Next() {
		protocol, err := scanProtocol(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, protocol)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list protocols: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProtocol(row rowScanner) (*models.Protocol, error) {
	var (
		protocol     models.Protocol
		rawID        uuid.UUID
		status       string
		citizenID    uuid.UUID
		serviceID    uuid.UUID
		departmentID uuid.UUID
		serviceType  string
		moduleType   sql.NullString
		customData   []byte
		createdBy    uuid.NullUUID
		concludedAt  sql.NullTime
	)
	err := row.Scan(&rawID, &protocol.Number, &protocol.Title, &protocol.Description,
		&status, &citizenID, &serviceID, &departmentID, &serviceType, &moduleType,
		&customData, &createdBy, &protocol.CreatedAt, &protocol.UpdatedAt, &concludedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan protocol: %w", err)
	}
	protocol.ID = id.ProtocolID(rawID)
	protocol.Status = models.Status(status)
	protocol.CitizenID = id.CitizenID(citizenID)
	protocol.ServiceID = id.ServiceID(serviceID)
	protocol.DepartmentID = id.DepartmentID(departmentID)
	protocol.ServiceType = models.ServiceType(serviceType)
	protocol.ModuleType = models.ModuleType(moduleType.String)
	if len(customData) > 0 {
		if err := json.Unmarshal(customData, &protocol.CustomData); err != nil {
			return nil, fmt.Errorf("decode protocol custom data: %w", err)
		}
	}
	if createdBy.Valid {
		protocol.CreatedByID = id.UserID(createdBy.UUID)
	}
	if concludedAt.Valid {
		t := concludedAt.Time
		protocol.ConcludedAt = &t
	}
	return &protocol, nil
}

func marshalPayload(payload models.Payload) ([]byte, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode protocol custom data: %w", err)
	}
	return raw, nil
}
