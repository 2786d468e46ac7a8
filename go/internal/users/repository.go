package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/karmahq/questline/go/internal/models"
	"github.com/karmahq/questline/go/internal/sqlutil"
)

// ErrNotFound is returned when no user matches the lookup.
var ErrNotFound = errors.New("user not found")

// Repository implements user data access operations. It runs against a pool
// or, rebound via NewRepository, inside a caller's transaction.
type Repository struct {
	db sqlutil.DB
}

// NewRepository creates a new users repository
func NewRepository(db sqlutil.DB) *Repository {
	return &Repository{
		db: db,
	}
}

const userColumns = "id, attendee_code, name, socials, karma, phone, friends, quests, photos, created_at"

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.AttendeeCode, &u.Name, &u.Socials, &u.Karma, &u.Phone,
		&u.Friends, &u.Quests, &u.Photos, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser creates a new user
func (r *Repository) CreateUser(ctx context.Context, req CreateUserRequest) (*models.User, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO users (id, attendee_code, name, socials, karma, phone, friends, quests, photos, created_at)
		VALUES ($1, $2, $3, $4, 0, $5, '{}', '{}', '{}', now())
		RETURNING `+userColumns,
		uuid.New(), req.AttendeeCode, req.Name, req.Socials, req.Phone)

	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// GetUser retrieves a user by ID
func (r *Repository) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetUserByCode retrieves a user by attendee code
func (r *Repository) GetUserByCode(ctx context.Context, code string) (*models.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE attendee_code = $1`, code)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get user by code: %w", err)
	}
	return user, nil
}

// AwardKarma increments the user's karma and appends the uploaded photo URI,
// returning the updated record.
func (r *Repository) AwardKarma(ctx context.Context, id uuid.UUID, points int, photoURI string) (*models.User, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE users
		SET karma = karma + $2, photos = array_append(photos, $3)
		WHERE id = $1
		RETURNING `+userColumns,
		id, points, photoURI)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to award karma: %w", err)
	}
	return user, nil
}

// AddFriend appends friendID to the user's friend list if not yet present.
func (r *Repository) AddFriend(ctx context.Context, id uuid.UUID, friendID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `
		UPDATE users
		SET friends = array_append(friends, $2)
		WHERE id = $1 AND NOT ($2 = ANY(friends))`,
		id, friendID)
	if err != nil {
		return fmt.Errorf("failed to add friend: %w", err)
	}
	return nil
}

// AppendQuest records a quest id on the user's quest list.
func (r *Repository) AppendQuest(ctx context.Context, id uuid.UUID, questIDStr string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE users
		SET quests = array_append(quests, $2)
		WHERE id = $1 AND NOT ($2 = ANY(quests))`,
		id, questIDStr)
	if err != nil {
		return fmt.Errorf("failed to append quest: %w", err)
	}
	return nil
}

// RemoveQuest drops a quest id from the user's quest list.
func (r *Repository) RemoveQuest(ctx context.Context, id uuid.UUID, questIDStr string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE users
		SET quests = array_remove(quests, $2)
		WHERE id = $1`,
		id, questIDStr)
	if err != nil {
		return fmt.Errorf("failed to remove quest: %w", err)
	}
	return nil
}
