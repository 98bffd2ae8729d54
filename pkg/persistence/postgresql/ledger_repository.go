package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dukex/bookflow/pkg/models"
	"github.com/dukex/bookflow/pkg/persistence"
)

// LedgerRepository handles the append-only workflow ledger. Rows are inserted
// and read, never updated or deleted.
type LedgerRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewLedgerRepository creates a new ledger repository.
func NewLedgerRepository(db *sql.DB, logger *slog.Logger) *LedgerRepository {
	return &LedgerRepository{db: db, logger: logger}
}

// Append stores one transition fact.
func (r *LedgerRepository) Append(ctx context.Context, entry *models.WorkflowEntry) error {
	metadataJSON, err := json.Marshal(entry.Metadata)
	if err != nil {
		return &persistence.LedgerError{Op: "Append", SubjectID: entry.SubjectID, Err: fmt.Errorf("failed to marshal metadata: %w", err)}
	}

	query := `
		INSERT INTO workflow_ledger (
			id, subject_id, from_state, to_state, actor_id, action,
			comments, metadata, timestamp
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	var fromState *string

	if entry.FromState != nil {
		state := string(*entry.FromState)
		fromState = &state
	}

	_, err = r.db.ExecContext(ctx, query,
		entry.ID, entry.SubjectID, fromState, entry.ToState, entry.ActorID,
		entry.Action, entry.Comments, metadataJSON, entry.Timestamp,
	)
	if err != nil {
		return &persistence.LedgerError{Op: "Append", SubjectID: entry.SubjectID, Err: err}
	}

	return nil
}

// ListForSubject pages a subject's ledger entries most-recent-first using a
// keyset cursor over (timestamp, id).
func (r *LedgerRepository) ListForSubject(
	ctx context.Context,
	subjectID string,
	pageSize int,
	cursor string,
) ([]*models.WorkflowEntry, string, error) {
	if pageSize <= 0 {
		pageSize = 50
	}

	query := `
		SELECT
			id
		  , subject_id
		  , from_state
		  , to_state
		  , actor_id
		  , action
		  , comments
		  , metadata
		  , timestamp
		FROM workflow_ledger
		WHERE subject_id = $1
	`

	args := []any{subjectID}

	if cursor != "" {
		afterTS, afterID, err := persistence.DecodeCursor(cursor)
		if err != nil {
			return nil, "", err
		}

		query += ` AND (timestamp, id) < ($2, $3)`

		args = append(args, afterTS, afterID)
	}

	query += fmt.Sprintf(` ORDER BY timestamp DESC, id DESC LIMIT $%d`, len(args)+1)
	args = append(args, pageSize+1)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, "", &persistence.LedgerError{Op: "ListForSubject", SubjectID: subjectID, Err: err}
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	entries := make([]*models.WorkflowEntry, 0, pageSize)

	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, "", &persistence.LedgerError{Op: "ListForSubject", SubjectID: subjectID, Err: err}
		}

		entries = append(entries, entry)
	}

	err = rows.Err()
	if err != nil {
		return nil, "", &persistence.LedgerError{Op: "ListForSubject", SubjectID: subjectID, Err: err}
	}

	// One extra row was fetched to learn whether another page exists.
	nextCursor := ""

	if len(entries) > pageSize {
		entries = entries[:pageSize]
		last := entries[len(entries)-1]
		nextCursor = persistence.EncodeCursor(last.Timestamp, last.ID)
	}

	return entries, nextCursor, nil
}

func scanEntry(rows *sql.Rows) (*models.WorkflowEntry, error) {
	var (
		entry        models.WorkflowEntry
		fromState    sql.NullString
		metadataJSON []byte
	)

	err := rows.Scan(
		&entry.ID, &entry.SubjectID, &fromState, &entry.ToState,
		&entry.ActorID, &entry.Action, &entry.Comments, &metadataJSON,
		&entry.Timestamp,
	)
	if err != nil {
		return nil, err
	}

	if fromState.Valid {
		state := models.BookState(fromState.String)
		entry.FromState = &state
	}

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &entry.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &entry, nil
}
