package uploads

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/karmahq/questline/go/internal/models"
	"github.com/karmahq/questline/go/internal/sqlutil"
	"github.com/karmahq/questline/go/internal/users"
)

// Repository stores photo records in PostgreSQL.
type Repository struct {
	db sqlutil.DB
}

func NewRepository(db sqlutil.DB) *Repository {
	return &Repository{db: db}
}

const photoColumns = `id, user_id, quest_id_str, uri, thumbnail_uri, created_at`

func scanPhoto(row pgx.Row) (*models.Photo, error) {
	var p models.Photo
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.QuestIDStr,
		&p.URI,
		&p.ThumbnailURI,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreatePhoto records an uploaded photo.
func (r *Repository) CreatePhoto(ctx context.Context, userID uuid.UUID, questIDStr, uri string, thumbnailURI *string) (*models.Photo, error) {
	query := fmt.Sprintf(`
		INSERT INTO photos (id, user_id, quest_id_str, uri, thumbnail_uri, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING %s`, photoColumns)

	return scanPhoto(r.db.QueryRow(ctx, query, uuid.New(), userID, questIDStr, uri, thumbnailURI))
}

// CompletionStore persists the outcome of a processed upload. The karma
// increment on the user and the photo record commit or roll back together.
type CompletionStore struct {
	pool *pgxpool.Pool
}

func NewCompletionStore(pool *pgxpool.Pool) *CompletionStore {
	return &CompletionStore{pool: pool}
}

// RecordCompletion awards points to the user and records the uploaded photo
// in one transaction, returning the updated user and the new photo record.
func (s *CompletionStore) RecordCompletion(ctx context.Context, userID uuid.UUID, questIDStr, uri string, thumbnailURI *string, points int) (*models.User, *models.Photo, error) {
	var user *models.User
	var photo *models.Photo

	err := sqlutil.Run(ctx, s.pool, func(tx pgx.Tx) error {
		u, err := users.NewRepository(tx).AwardKarma(ctx, userID, points, uri)
		if err != nil {
			return err
		}
		p, err := NewRepository(tx).CreatePhoto(ctx, userID, questIDStr, uri, thumbnailURI)
		if err != nil {
			return err
		}
		user, photo = u, p
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to record completion: %w", err)
	}
	return user, photo, nil
}
