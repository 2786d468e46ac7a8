package users

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karmahq/questline/go/internal/models"
)

type fakeUserRepo struct {
	byID    map[uuid.UUID]*models.User
	byCode  map[string]*models.User
	friends map[uuid.UUID][]uuid.UUID
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		byID:    make(map[uuid.UUID]*models.User),
		byCode:  make(map[string]*models.User),
		friends: make(map[uuid.UUID][]uuid.UUID),
	}
}

func (r *fakeUserRepo) add(u *models.User) {
	r.byID[u.ID] = u
	r.byCode[u.AttendeeCode] = u
}

func (r *fakeUserRepo) CreateUser(ctx context.Context, req CreateUserRequest) (*models.User, error) {
	u := &models.User{
		ID:           uuid.New(),
		AttendeeCode: req.AttendeeCode,
		Name:         req.Name,
		Socials:      req.Socials,
	}
	r.add(u)
	return u, nil
}

func (r *fakeUserRepo) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) GetUserByCode(ctx context.Context, code string) (*models.User, error) {
	u, ok := r.byCode[code]
	if !ok {
		return nil, ErrNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) AddFriend(ctx context.Context, id uuid.UUID, friendID uuid.UUID) error {
	r.friends[id] = append(r.friends[id], friendID)
	return nil
}

func (r *fakeUserRepo) AppendQuest(ctx context.Context, id uuid.UUID, questIDStr string) error {
	u, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	u.Quests = append(u.Quests, questIDStr)
	return nil
}

func (r *fakeUserRepo) RemoveQuest(ctx context.Context, id uuid.UUID, questIDStr string) error {
	u, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	kept := u.Quests[:0]
	for _, q := range u.Quests {
		if q != questIDStr {
			kept = append(kept, q)
		}
	}
	u.Quests = kept
	return nil
}

func TestCreateUserValidation(t *testing.T) {
	app := NewApp(newFakeUserRepo())

	_, err := app.CreateUser(context.Background(), CreateUserRequest{Name: "Jamie"})
	assert.ErrorContains(t, err, "attendee code is required")

	_, err = app.CreateUser(context.Background(), CreateUserRequest{AttendeeCode: "1234"})
	assert.ErrorContains(t, err, "name is required")
}

func TestCreateUserRejectsDuplicateCode(t *testing.T) {
	repo := newFakeUserRepo()
	app := NewApp(repo)

	first, err := app.CreateUser(context.Background(), CreateUserRequest{AttendeeCode: "1234", Name: "Jamie"})
	require.NoError(t, err)
	require.NotNil(t, first)

	_, err = app.CreateUser(context.Background(), CreateUserRequest{AttendeeCode: "1234", Name: "Other"})
	assert.ErrorContains(t, err, "already exists")
}

func TestAddFriendRejectsSelf(t *testing.T) {
	repo := newFakeUserRepo()
	app := NewApp(repo)

	u := &models.User{ID: uuid.New(), AttendeeCode: "1234", Name: "Jamie"}
	repo.add(u)

	err := app.AddFriend(context.Background(), u.ID, u.ID)
	assert.ErrorContains(t, err, "cannot add yourself")
	assert.Empty(t, repo.friends[u.ID])
}

func TestAddFriendRejectsUnknownUser(t *testing.T) {
	repo := newFakeUserRepo()
	app := NewApp(repo)

	u := &models.User{ID: uuid.New(), AttendeeCode: "1234", Name: "Jamie"}
	repo.add(u)

	err := app.AddFriend(context.Background(), u.ID, uuid.New())
	assert.ErrorContains(t, err, "friend not found")
}

func TestAddFriendLinksExistingUsers(t *testing.T) {
	repo := newFakeUserRepo()
	app := NewApp(repo)

	a := &models.User{ID: uuid.New(), AttendeeCode: "1111", Name: "Jamie"}
	b := &models.User{ID: uuid.New(), AttendeeCode: "2222", Name: "Riley"}
	repo.add(a)
	repo.add(b)

	require.NoError(t, app.AddFriend(context.Background(), a.ID, b.ID))
	assert.Equal(t, []uuid.UUID{b.ID}, repo.friends[a.ID])
}

func TestQuestAssignmentRoundTrip(t *testing.T) {
	repo := newFakeUserRepo()
	app := NewApp(repo)

	u := &models.User{ID: uuid.New(), AttendeeCode: "1234", Name: "Jamie"}
	repo.add(u)

	require.NoError(t, app.AssignQuest(context.Background(), u.ID, "quest-1"))
	require.NoError(t, app.AssignQuest(context.Background(), u.ID, "quest-2"))
	assert.Equal(t, []string{"quest-1", "quest-2"}, u.Quests)

	require.NoError(t, app.UnassignQuest(context.Background(), u.ID, "quest-1"))
	assert.Equal(t, []string{"quest-2"}, u.Quests)
}
