package outbox

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository stores outbox events in PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const outboxColumns = `id, user_id, event_type, payload, created_at, sent_at`

func scanOutboxEvent(row pgx.Row) (*OutboxEvent, error) {
	var e OutboxEvent
	err := row.Scan(
		&e.ID,
		&e.UserID,
		&e.EventType,
		&e.Payload,
		&e.CreatedAt,
		&e.SentAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// InsertEvent appends an event to the outbox. Callers inside a domain
// transaction pass their pgx.Tx so the event commits atomically with the
// domain change; otherwise pass nil.
func (r *Repository) InsertEvent(ctx context.Context, tx pgx.Tx, userID uuid.UUID, eventType string, payload []byte) error {
	query := `
		INSERT INTO outbox (id, user_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, NOW())`

	var err error
	if tx != nil {
		_, err = tx.Exec(ctx, query, uuid.New(), userID, eventType, payload)
	} else {
		_, err = r.db.Exec(ctx, query, uuid.New(), userID, eventType, payload)
	}
	if err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}
	return nil
}

// FetchUnsent returns up to limit unsent events, oldest first.
func (r *Repository) FetchUnsent(ctx context.Context, limit int32) ([]*OutboxEvent, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM outbox
		WHERE sent_at IS NULL
		ORDER BY created_at
		LIMIT $1`, outboxColumns)

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unsent outbox events: %w", err)
	}
	defer rows.Close()

	var outboxEvents []*OutboxEvent
	for rows.Next() {
		e, err := scanOutboxEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		outboxEvents = append(outboxEvents, e)
	}
	return outboxEvents, rows.Err()
}

// MarkSent stamps events as published.
func (r *Repository) MarkSent(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx, `UPDATE outbox SET sent_at = NOW() WHERE id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("failed to mark outbox events sent: %w", err)
	}
	return nil
}

// CountUnsent returns the current outbox backlog, for the lag metric.
func (r *Repository) CountUnsent(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE sent_at IS NULL`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count unsent outbox events: %w", err)
	}
	return count, nil
}
