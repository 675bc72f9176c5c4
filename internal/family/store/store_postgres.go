package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	id "civicdesk/pkg/domain"
	"civicdesk/pkg/platform/sentinel"
	txcontext "civicdesk/pkg/platform/tx"
)

// PostgresStore reads family edges from the family_members table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Relationship(ctx context.Context, ownerID, memberID id.CitizenID) (string, error) {
	var relationship string
	err := txcontext.QuerierFor(ctx, s.db).QueryRowContext(ctx,
		`SELECT relationship FROM family_members WHERE owner_id = $1 AND member_id = $2`,
		uuid.UUID(ownerID), uuid.UUID(memberID),
	).Scan(&relationship)
	if errors.Is(err, sql.ErrNoRows) {
		return "", sentinel.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("find family relationship: %w", err)
	}
	return relationship, nil
}
