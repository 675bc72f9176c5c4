package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"civicdesk/internal/citizen/models"
	id "civicdesk/pkg/domain"
	"civicdesk/pkg/platform/sentinel"
	txcontext "civicdesk/pkg/platform/tx"
)

// PostgresStore backs the citizen directory with the citizens table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const citizenColumns = `id, name, document_number, birth_date, email, phone, created_at`

func (s *PostgresStore) FindByID(ctx context.Context, citizenID id.CitizenID) (*models.Citizen, error) {
	row := txcontext.QuerierFor(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+citizenColumns+` FROM citizens WHERE id = $1`,
		uuid.UUID(citizenID),
	)
	return scanCitizen(row)
}

func (s *PostgresStore) FindByDocument(ctx context.Context, document string) (*models.Citizen, error) {
	document = models.NormalizeDocument(document)
	if document == "" {
		return nil, sentinel.ErrNotFound
	}
	row := txcontext.QuerierFor(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+citizenColumns+` FROM citizens WHERE document_number = $1`,
		document,
	)
	return scanCitizen(row)
}

func (s *PostgresStore) FindByNameAndBirthDate(ctx context.Context, name string, birthDate time.Time) (*models.Citizen, error) {
	row := txcontext.QuerierFor(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+citizenColumns+`
		   FROM citizens
		  WHERE name ILIKE '%' || $1 || '%' AND birth_date = $2
		  ORDER BY created_at
		  LIMIT 1`,
		name, birthDate,
	)
	return scanCitizen(row)
}

func scanCitizen(row *sql.Row) (*models.Citizen, error) {
	var (
		c         models.Citizen
		rawID     uuid.UUID
		birthDate sql.NullTime
		email     sql.NullString
		phone     sql.NullString
	)
	err := row.Scan(&rawID, &c.Name, &c.DocumentNumber, &birthDate, &email, &phone, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan citizen: %w", err)
	}
	c.ID = id.CitizenID(rawID)
	if birthDate.Valid {
		t := birthDate.Time
		c.BirthDate = &t
	}
	c.Email = email.String
	c.Phone = phone.String
	return &c, nil
}
