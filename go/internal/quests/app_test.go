package quests

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karmahq/questline/go/internal/models"
)

type fakeQuestRepo struct {
	quests map[string]*models.Quest
}

func newFakeQuestRepo() *fakeQuestRepo {
	return &fakeQuestRepo{quests: make(map[string]*models.Quest)}
}

func (r *fakeQuestRepo) CreateQuest(ctx context.Context, req CreateQuestRequest) (*models.Quest, error) {
	q := &models.Quest{
		ID:                  uuid.New(),
		QuestIDStr:          uuid.New().String(),
		UserToID:            req.UserToID,
		UserFromID:          req.UserFromID,
		NominatedByImageURI: req.NominatedByImageURI,
		TargetCategory:      req.TargetCategory,
		Status:              models.QuestStatusPending,
		ExpiresAt:           req.ExpiresAt,
	}
	r.quests[q.QuestIDStr] = q
	return q, nil
}

func (r *fakeQuestRepo) GetQuestByIDStr(ctx context.Context, questIDStr string) (*models.Quest, error) {
	q, ok := r.quests[questIDStr]
	if !ok {
		return nil, ErrNotFound
	}
	return q, nil
}

func (r *fakeQuestRepo) ListPendingForUser(ctx context.Context, userID uuid.UUID) ([]*models.Quest, error) {
	var out []*models.Quest
	for _, q := range r.quests {
		if q.UserToID == userID && q.Status == models.QuestStatusPending {
			out = append(out, q)
		}
	}
	return out, nil
}

func (r *fakeQuestRepo) ListPendingWithDeadline(ctx context.Context) ([]*models.Quest, error) {
	var out []*models.Quest
	for _, q := range r.quests {
		if q.Status == models.QuestStatusPending && q.ExpiresAt != nil {
			out = append(out, q)
		}
	}
	return out, nil
}

func (r *fakeQuestRepo) MarkCompleted(ctx context.Context, questIDStr, uri string, points int, at time.Time) (*models.Quest, error) {
	q, ok := r.quests[questIDStr]
	if !ok || q.Status != models.QuestStatusPending {
		return nil, ErrNotFound
	}
	q.Status = models.QuestStatusCompleted
	q.CompletionImageURI = &uri
	q.PointsAwarded = &points
	q.CompletedAt = &at
	return q, nil
}

func (r *fakeQuestRepo) MarkExpired(ctx context.Context, questIDStr string) (*models.Quest, error) {
	q, ok := r.quests[questIDStr]
	if !ok || q.Status != models.QuestStatusPending {
		return nil, ErrNotFound
	}
	q.Status = models.QuestStatusExpired
	return q, nil
}

type fakeUsersApp struct {
	users map[uuid.UUID]*models.User
}

func newFakeUsersApp(users ...*models.User) *fakeUsersApp {
	f := &fakeUsersApp{users: make(map[uuid.UUID]*models.User)}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUsersApp) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return u, nil
}

func (f *fakeUsersApp) AssignQuest(ctx context.Context, id uuid.UUID, questIDStr string) error {
	f.users[id].Quests = append(f.users[id].Quests, questIDStr)
	return nil
}

func (f *fakeUsersApp) UnassignQuest(ctx context.Context, id uuid.UUID, questIDStr string) error {
	u := f.users[id]
	var kept []string
	for _, q := range u.Quests {
		if q != questIDStr {
			kept = append(kept, q)
		}
	}
	u.Quests = kept
	return nil
}

func newTestApp(repo *fakeQuestRepo, users *fakeUsersApp, clock clockwork.Clock) *App {
	return NewApp(repo, users, NewCategorySource(DefaultConfig())).
		WithClock(clock).
		WithPicker(func(n int) int { return 0 })
}

func TestGenerateSystemQuest(t *testing.T) {
	clock := clockwork.NewFakeClock()
	user := &models.User{ID: uuid.New(), Name: "Ann"}
	repo := newFakeQuestRepo()
	app := newTestApp(repo, newFakeUsersApp(user), clock)

	quest, err := app.GenerateSystemQuest(context.Background(), user.ID)
	require.NoError(t, err)

	assert.Equal(t, models.QuestStatusPending, quest.Status)
	assert.Equal(t, user.ID, quest.UserToID)
	assert.Nil(t, quest.UserFromID)
	require.NotNil(t, quest.ExpiresAt)
	assert.Equal(t, clock.Now().UTC().Add(24*time.Hour), *quest.ExpiresAt)
	assert.Contains(t, user.Quests, quest.QuestIDStr)
}

func TestCompleteNominatesFriend(t *testing.T) {
	clock := clockwork.NewFakeClock()
	friend := &models.User{ID: uuid.New(), Name: "Ben"}
	user := &models.User{ID: uuid.New(), Name: "Ann", Friends: []uuid.UUID{friend.ID}}
	repo := newFakeQuestRepo()
	users := newFakeUsersApp(user, friend)
	app := newTestApp(repo, users, clock)

	quest, err := app.GenerateSystemQuest(context.Background(), user.ID)
	require.NoError(t, err)

	result, err := app.CompleteAndNominate(context.Background(), quest.QuestIDStr, "s3://bucket/done.jpg", 12)
	require.NoError(t, err)
	require.NotNil(t, result.Completed)
	assert.False(t, result.WasExpired)
	assert.Equal(t, models.QuestStatusCompleted, result.Completed.Status)
	require.NotNil(t, result.Completed.PointsAwarded)
	assert.Equal(t, 12, *result.Completed.PointsAwarded)

	// The follow-up quest lands on the friend carrying the deed image.
	require.NotNil(t, result.Next)
	assert.Equal(t, friend.ID, result.Next.UserToID)
	require.NotNil(t, result.Next.UserFromID)
	assert.Equal(t, user.ID, *result.Next.UserFromID)
	require.NotNil(t, result.Next.NominatedByImageURI)
	assert.Equal(t, "s3://bucket/done.jpg", *result.Next.NominatedByImageURI)
	assert.Contains(t, friend.Quests, result.Next.QuestIDStr)
	assert.NotContains(t, user.Quests, quest.QuestIDStr)
}

func TestCompleteWithoutFriendsRegeneratesForSelf(t *testing.T) {
	clock := clockwork.NewFakeClock()
	user := &models.User{ID: uuid.New(), Name: "Ann"}
	repo := newFakeQuestRepo()
	app := newTestApp(repo, newFakeUsersApp(user), clock)

	quest, err := app.GenerateSystemQuest(context.Background(), user.ID)
	require.NoError(t, err)

	result, err := app.CompleteAndNominate(context.Background(), quest.QuestIDStr, "s3://bucket/done.jpg", 5)
	require.NoError(t, err)
	require.NotNil(t, result.Next)
	assert.Equal(t, user.ID, result.Next.UserToID)
	assert.Nil(t, result.Next.UserFromID)
}

func TestCompleteExpiredQuestRegenerates(t *testing.T) {
	clock := clockwork.NewFakeClock()
	user := &models.User{ID: uuid.New(), Name: "Ann"}
	repo := newFakeQuestRepo()
	app := newTestApp(repo, newFakeUsersApp(user), clock)

	quest, err := app.GenerateSystemQuest(context.Background(), user.ID)
	require.NoError(t, err)

	clock.Advance(25 * time.Hour)
	result, err := app.CompleteAndNominate(context.Background(), quest.QuestIDStr, "s3://bucket/late.jpg", 5)
	require.NoError(t, err)

	assert.True(t, result.WasExpired)
	assert.Nil(t, result.Completed)
	require.NotNil(t, result.Next)
	assert.Equal(t, user.ID, result.Next.UserToID)
	assert.Equal(t, models.QuestStatusExpired, repo.quests[quest.QuestIDStr].Status)
}

func TestHandleExpiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	user := &models.User{ID: uuid.New(), Name: "Ann"}
	repo := newFakeQuestRepo()
	app := newTestApp(repo, newFakeUsersApp(user), clock)

	quest, err := app.GenerateSystemQuest(context.Background(), user.ID)
	require.NoError(t, err)

	// Not yet due: nothing happens.
	result, err := app.HandleExpiry(context.Background(), quest.QuestIDStr)
	require.NoError(t, err)
	assert.Nil(t, result)

	clock.Advance(25 * time.Hour)
	result, err = app.HandleExpiry(context.Background(), quest.QuestIDStr)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, models.QuestStatusExpired, result.Expired.Status)
	require.NotNil(t, result.Next)
	assert.NotEqual(t, quest.QuestIDStr, result.Next.QuestIDStr)

	// Second fire is a no-op: the quest already left pending.
	again, err := app.HandleExpiry(context.Background(), quest.QuestIDStr)
	require.NoError(t, err)
	assert.Nil(t, again)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid default", func(c *Config) {}, false},
		{"no categories", func(c *Config) { c.Categories = nil }, true},
		{"zero duration", func(c *Config) { c.QuestDurationHours = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
