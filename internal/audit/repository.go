// Package audit records every command that reaches the command translator
// and answers queries over that history.
package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Outcome describes what happened to a command.
type Outcome string

const (
	// OutcomeSent means a Pin Event was written to the device connection.
	OutcomeSent Outcome = "sent"

	// OutcomeRejected means translation failed; nothing was sent.
	OutcomeRejected Outcome = "rejected"

	// OutcomeDropped means translation succeeded but the endpoint was unavailable.
	OutcomeDropped Outcome = "dropped"
)

const (
	defaultLimit = 50
	maxLimit     = 200

	// timeLayout is fixed-width so created_at sorts lexically.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// ErrInvalidOutcome is returned by Create for an unknown outcome.
var ErrInvalidOutcome = errors.New("audit: invalid outcome")

// CommandRecord is one row of the command log.
type CommandRecord struct {
	ID        string    `json:"id"`
	CommandID string    `json:"command_id,omitempty"`
	Item      string    `json:"item"`
	Endpoint  string    `json:"endpoint,omitempty"`
	Command   string    `json:"command"`
	EventKind string    `json:"event_kind,omitempty"`
	Outcome   Outcome   `json:"outcome"`
	Error     string    `json:"error,omitempty"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// Filter controls which records List returns.
type Filter struct {
	Item    string  // optional
	Outcome Outcome // optional
	Limit   int     // default 50, max 200
	Offset  int
}

// ListResult contains a page of command records.
type ListResult struct {
	Records []CommandRecord `json:"records"`
	Total   int             `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

// Repository defines the command log operations.
type Repository interface {
	Create(ctx context.Context, rec *CommandRecord) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository stores the command log in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new command log repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a record. ID and CreatedAt are generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, rec *CommandRecord) error {
	switch rec.Outcome {
	case OutcomeSent, OutcomeRejected, OutcomeDropped:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidOutcome, rec.Outcome)
	}
	if rec.ID == "" {
		rec.ID = "cmd-" + uuid.NewString()[:8]
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO command_log (id, command_id, item, endpoint, command, event_kind, outcome, error, source, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, nullableString(rec.CommandID), rec.Item, nullableString(rec.Endpoint),
		rec.Command, nullableString(rec.EventKind), string(rec.Outcome),
		nullableString(rec.Error), rec.Source,
		rec.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting command record: %w", err)
	}
	return nil
}

// nullableString maps "" to NULL for optional TEXT columns.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns records matching the filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any
	if filter.Item != "" {
		conditions = append(conditions, "item = ?")
		args = append(args, filter.Item)
	}
	if filter.Outcome != "" {
		conditions = append(conditions, "outcome = ?")
		args = append(args, string(filter.Outcome))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM command_log " + where //nolint:gosec // WHERE built from parameterised conditions
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting command records: %w", err)
	}

	query := "SELECT id, command_id, item, endpoint, command, event_kind, outcome, error, source, created_at FROM command_log " + //nolint:gosec // as above
		where + " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying command records: %w", err)
	}
	defer rows.Close()

	records := []CommandRecord{}
	for rows.Next() {
		var rec CommandRecord
		var commandID, endpoint, eventKind, errText sql.NullString
		var outcome, createdAt string

		if err := rows.Scan(&rec.ID, &commandID, &rec.Item, &endpoint, &rec.Command,
			&eventKind, &outcome, &errText, &rec.Source, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning command record: %w", err)
		}
		rec.CommandID = commandID.String
		rec.Endpoint = endpoint.String
		rec.EventKind = eventKind.String
		rec.Error = errText.String
		rec.Outcome = Outcome(outcome)

		rec.CreatedAt, err = time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing command record timestamp %q: %w", createdAt, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating command records: %w", err)
	}

	return &ListResult{
		Records: records,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}
