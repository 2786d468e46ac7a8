package scoring

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository stores scored activity embeddings in PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const cachedActivityColumns = `id, embedding, karma_points, description_text, original_description, original_category, created_at`

func scanCachedActivity(row pgx.Row) (*CachedActivity, error) {
	var a CachedActivity
	err := row.Scan(
		&a.ID,
		&a.Embedding,
		&a.KarmaPoints,
		&a.DescriptionText,
		&a.Description,
		&a.Category,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListCachedActivities returns every cached activity embedding. The cache is
// small (one row per distinct activity) so similarity search scans it in Go.
func (r *Repository) ListCachedActivities(ctx context.Context) ([]*CachedActivity, error) {
	query := fmt.Sprintf(`SELECT %s FROM activity_embeddings`, cachedActivityColumns)

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list cached activities: %w", err)
	}
	defer rows.Close()

	var activities []*CachedActivity
	for rows.Next() {
		a, err := scanCachedActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cached activity: %w", err)
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}

// CacheActivity inserts a freshly scored activity embedding.
func (r *Repository) CacheActivity(ctx context.Context, req CacheActivityRequest) (*CachedActivity, error) {
	query := fmt.Sprintf(`
		INSERT INTO activity_embeddings (id, embedding, karma_points, description_text, original_description, original_category, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING %s`, cachedActivityColumns)

	return scanCachedActivity(r.db.QueryRow(ctx, query,
		uuid.New(),
		req.Embedding,
		req.KarmaPoints,
		req.DescriptionText,
		req.Description,
		req.Category,
	))
}
