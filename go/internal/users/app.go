package users

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/karmahq/questline/go/internal/models"
)

// UsersRepository defines what the app layer needs from the repository
type UsersRepository interface {
	CreateUser(ctx context.Context, req CreateUserRequest) (*models.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByCode(ctx context.Context, code string) (*models.User, error)
	AddFriend(ctx context.Context, id uuid.UUID, friendID uuid.UUID) error
	AppendQuest(ctx context.Context, id uuid.UUID, questIDStr string) error
	RemoveQuest(ctx context.Context, id uuid.UUID, questIDStr string) error
}

// App handles users business logic
type App struct {
	repo UsersRepository
}

// NewApp creates a new users App
func NewApp(repo UsersRepository) *App {
	return &App{
		repo: repo,
	}
}

// CreateUser creates a new user with validation
func (a *App) CreateUser(ctx context.Context, req CreateUserRequest) (*models.User, error) {
	if req.AttendeeCode == "" {
		return nil, fmt.Errorf("attendee code is required")
	}
	if req.Name == "" {
		return nil, fmt.Errorf("name is required")
	}

	// Check if a user with the same code already exists
	existing, err := a.repo.GetUserByCode(ctx, req.AttendeeCode)
	if err == nil && existing != nil {
		return nil, fmt.Errorf("user with code %s already exists", req.AttendeeCode)
	}

	user, err := a.repo.CreateUser(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	log.Printf("Created user: %s (%s)", user.Name, user.AttendeeCode)
	return user, nil
}

// GetUser retrieves a user by ID
func (a *App) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := a.repo.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetUserByCode retrieves a user by attendee code
func (a *App) GetUserByCode(ctx context.Context, code string) (*models.User, error) {
	user, err := a.repo.GetUserByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get user by code: %w", err)
	}
	return user, nil
}

// AddFriend links friendID onto the user's friend list. Adding yourself or
// an unknown user is rejected; re-adding an existing friend is a no-op.
func (a *App) AddFriend(ctx context.Context, id uuid.UUID, friendID uuid.UUID) error {
	if id == friendID {
		return fmt.Errorf("cannot add yourself as a friend")
	}
	if _, err := a.repo.GetUser(ctx, friendID); err != nil {
		return fmt.Errorf("friend not found: %w", err)
	}
	if err := a.repo.AddFriend(ctx, id, friendID); err != nil {
		return fmt.Errorf("failed to add friend: %w", err)
	}
	return nil
}

// AssignQuest records a quest id on the user's quest list.
func (a *App) AssignQuest(ctx context.Context, id uuid.UUID, questIDStr string) error {
	if err := a.repo.AppendQuest(ctx, id, questIDStr); err != nil {
		return fmt.Errorf("failed to assign quest: %w", err)
	}
	return nil
}

// UnassignQuest removes a quest id from the user's quest list.
func (a *App) UnassignQuest(ctx context.Context, id uuid.UUID, questIDStr string) error {
	if err := a.repo.RemoveQuest(ctx, id, questIDStr); err != nil {
		return fmt.Errorf("failed to unassign quest: %w", err)
	}
	return nil
}
