package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"civicdesk/internal/citizenlink/models"
	id "civicdesk/pkg/domain"
	"civicdesk/pkg/platform/sentinel"
	txcontext "civicdesk/pkg/platform/tx"
)

// PostgresStore persists links in the protocol_citizen_links table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const linkColumns = `id, protocol_id, linked_citizen_id, link_type, role, relationship,
	context_data, is_verified, verified_at, verified_by, created_at`

func (s *PostgresStore) Create(ctx context.Context, link *models.Link) error {
	contextData, err := marshalContextData(link.ContextData)
	if err != nil {
		return err
	}
	var verifiedBy any
	if link.VerifiedBy != nil {
		verifiedBy = uuid.UUID(*link.VerifiedBy)
	}
	_, err = txcontext.QuerierFor(ctx, s.db).ExecContext(ctx,
		`INSERT INTO protocol_citizen_links
			(id, protocol_id, linked_citizen_id, link_type, role, relationship,
			 context_data, is_verified, verified_at, verified_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10, $11)`,
		uuid.UUID(link.ID), uuid.UUID(link.ProtocolID), uuid.UUID(link.LinkedCitizenID),
		string(link.LinkType), string(link.Role), link.Relationship,
		contextData, link.IsVerified, link.VerifiedAt, verifiedBy, link.CreatedAt,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert citizen link: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, linkID id.LinkID) (*models.Link, error) {
	row := txcontext.QuerierFor(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+linkColumns+` FROM protocol_citizen_links WHERE id = $1`,
		uuid.UUID(linkID),
	)
	link, err := scanLink(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return link, err
}

func (s *PostgresStore) ListByProtocol(ctx context.Context, protocolID id.ProtocolID) ([]*models.Link, error) {
	rows, err := txcontext.QuerierFor(ctx, s.db).QueryContext(ctx,
		`SELECT `+linkColumns+`
		   FROM protocol_citizen_links
		  WHERE protocol_id = $1
		  ORDER BY created_at`,
		uuid.UUID(protocolID),
	)
	if err != nil {
		return nil, fmt.Errorf("list citizen links: %w", err)
	}
	defer rows.Close()

	var out []*models.Link
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list citizen links: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Update(ctx context.Context, linkID id.LinkID, update LinkUpdate) (*models.Link, error) {
	var contextData any
	if update.ContextData != nil {
		raw, err := marshalContextData(update.ContextData)
		if err != nil {
			return nil, err
		}
		contextData = raw
	}
	var linkType, role, relationship any
	if update.LinkType != nil {
		linkType = string(*update.LinkType)
	}
	if update.Role != nil {
		role = string(*update.Role)
	}
	if update.Relationship != nil {
		relationship = *update.Relationship
	}
	row := txcontext.QuerierFor(ctx, s.db).QueryRowContext(ctx,
		`UPDATE protocol_citizen_links SET
			link_type    = COALESCE($2, link_type),
			role         = COALESCE($3, role),
			relationship = COALESCE($4, relationship),
			context_data = COALESCE($5, context_data)
		  WHERE id = $1
		  RETURNING `+linkColumns,
		uuid.UUID(linkID), linkType, role, relationship, contextData,
	)
	link, err := scanLink(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return link, err
}

func (s *PostgresStore) Delete(ctx context.Context, linkID id.LinkID) error {
	res, err := txcontext.QuerierFor(ctx, s.db).ExecContext(ctx,
		`DELETE FROM protocol_citizen_links WHERE id = $1`,
		uuid.UUID(linkID),
	)
	if err != nil {
		return fmt.Errorf("delete citizen link: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete citizen link: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLink(row rowScanner) (*models.Link, error) {
	var (
		link         models.Link
		rawID        uuid.UUID
		protocolID   uuid.UUID
		citizenID    uuid.UUID
		linkType     string
		role         string
		relationship sql.NullString
		contextData  []byte
		verifiedAt   sql.NullTime
		verifiedBy   uuid.NullUUID
	)
	err := row.Scan(&rawID, &protocolID, &citizenID, &linkType, &role, &relationship,
		&contextData, &link.IsVerified, &verifiedAt, &verifiedBy, &link.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan citizen link: %w", err)
	}
	link.ID = id.LinkID(rawID)
	link.ProtocolID = id.ProtocolID(protocolID)
	link.LinkedCitizenID = id.CitizenID(citizenID)
	link.LinkType = models.LinkType(linkType)
	link.Role = models.Role(role)
	link.Relationship = relationship.String
	if len(contextData) > 0 {
		if err := json.Unmarshal(contextData, &link.ContextData); err != nil {
			return nil, fmt.Errorf("decode link context data: %w", err)
		}
	}
	if verifiedAt.Valid {
		t := verifiedAt.Time
		link.VerifiedAt = &t
	}
	if verifiedBy.Valid {
		u := id.UserID(verifiedBy.UUID)
		link.VerifiedBy = &u
	}
	return &link, nil
}

func marshalContextData(data map[string]any) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode link context data: %w", err)
	}
	return raw, nil
}
