package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"civicdesk/internal/protocol/models"
	id "civicdesk/pkg/domain"
	txcontext "civicdesk/pkg/platform/tx"
)

// PostgresStore persists history in the protocol_history table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, entry *models.HistoryEntry) error {
	var metadata []byte
	if len(entry.Metadata) > 0 {
		raw, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("encode history metadata: %w", err)
		}
		metadata = raw
	}
	var actorID any
	if !entry.ActorID.IsNil() {
		actorID = uuid.UUID(entry.ActorID)
	}
	_, err := txcontext.QuerierFor(ctx, s.db).ExecContext(ctx,
		`INSERT INTO protocol_history
			(id, protocol_id, action, old_status, new_status, comment,
			 actor_id, actor_role, metadata, created_at)
		 VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7, $8, $9, $10)`,
		uuid.UUID(entry.ID), uuid.UUID(entry.ProtocolID), string(entry.Action),
		string(entry.OldStatus), string(entry.NewStatus), entry.Comment,
		actorID, string(entry.ActorRole), metadata, entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert history entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByProtocol(ctx context.Context, protocolID id.ProtocolID) ([]*models.HistoryEntry, error) {
	rows, err := txcontext.QuerierFor(ctx, s.db).QueryContext(ctx,
		`SELECT id, protocol_id, action, old_status, new_status, comment,
		        actor_id, actor_role, metadata, created_at
		   FROM protocol_history
		  WHERE protocol_id = $1
		  ORDER BY created_at DESC, id DESC`,
		uuid.UUID(protocolID),
	)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var out []*models.HistoryEntry
	for rows.Next() {
		var (
			entry     models.HistoryEntry
			rawID     uuid.UUID
			pID       uuid.UUID
			action    string
			oldStatus sql.NullString
			newStatus sql.NullString
			actorID   uuid.NullUUID
			actorRole sql.NullString
			metadata  []byte
		)
		err := rows.Scan(&rawID, &pID, &action, &oldStatus, &newStatus, &entry.Comment,
			&actorID, &actorRole, &metadata, &entry.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		entry.ID = id.HistoryID(rawID)
		entry.ProtocolID = id.ProtocolID(pID)
		entry.Action = models.HistoryAction(action)
		entry.OldStatus = models.Status(oldStatus.String)
		entry.NewStatus = models.Status(newStatus.String)
		if actorID.Valid {
			entry.ActorID = id.UserID(actorID.UUID)
		}
		entry.ActorRole = id.ActorRole(actorRole.String)
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &entry.Metadata); err != nil {
				return nil, fmt.Errorf("decode history metadata: %w", err)
			}
		}
		out = append(out, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return out, nil
}
