package uploads

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karmahq/questline/go/internal/models"
	"github.com/karmahq/questline/go/internal/quests"
)

type memBlobStore struct {
	saved map[string][]byte
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{saved: make(map[string][]byte)}
}

func (m *memBlobStore) Save(ctx context.Context, key string, content []byte, contentType string) (string, error) {
	m.saved[key] = content
	return "s3://test-bucket/" + key, nil
}

func (m *memBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	return m.saved[key], nil
}

func (m *memBlobStore) Delete(ctx context.Context, key string) error {
	delete(m.saved, key)
	return nil
}

type fakeRecognizer struct {
	labels      []string
	description string
	describeErr error
	category    string
}

func (f *fakeRecognizer) Labels(ctx context.Context, imageURL string) ([]string, error) {
	return f.labels, nil
}

func (f *fakeRecognizer) Describe(ctx context.Context, labels []string) (string, error) {
	return f.description, f.describeErr
}

func (f *fakeRecognizer) Classify(ctx context.Context, description string, labels, categories []string) (string, error) {
	return f.category, nil
}

type fakeScorer struct {
	points int
}

func (f *fakeScorer) Points(ctx context.Context, category, description string, labels []string) (int, error) {
	return f.points, nil
}

type fakeUploadQuests struct {
	completed []string
	result    *quests.CompletionResult
}

func (f *fakeUploadQuests) CompleteAndNominate(ctx context.Context, questIDStr, uri string, points int) (*quests.CompletionResult, error) {
	f.completed = append(f.completed, questIDStr)
	return f.result, nil
}

type fakeCompletionStore struct {
	awarded []int
	karma   int
	created []*models.Photo
}

func (f *fakeCompletionStore) RecordCompletion(ctx context.Context, userID uuid.UUID, questIDStr, uri string, thumbnailURI *string, points int) (*models.User, *models.Photo, error) {
	f.awarded = append(f.awarded, points)
	f.karma += points
	p := &models.Photo{ID: uuid.New(), UserID: userID, QuestIDStr: questIDStr, URI: uri, ThumbnailURI: thumbnailURI}
	f.created = append(f.created, p)
	return &models.User{ID: userID, Karma: f.karma}, p, nil
}

type fakeUploadOutbox struct {
	eventTypes []string
}

func (f *fakeUploadOutbox) record(name string) func(context.Context, uuid.UUID, []byte) error {
	return func(ctx context.Context, userID uuid.UUID, payload []byte) error {
		f.eventTypes = append(f.eventTypes, name)
		return nil
	}
}

func (f *fakeUploadOutbox) InsertPhotoUploadedEvent(ctx context.Context, userID uuid.UUID, payload []byte) error {
	return f.record("PhotoUploaded")(ctx, userID, payload)
}

func (f *fakeUploadOutbox) InsertKarmaAwardedEvent(ctx context.Context, userID uuid.UUID, payload []byte) error {
	return f.record("KarmaAwarded")(ctx, userID, payload)
}

func (f *fakeUploadOutbox) InsertQuestCompletedEvent(ctx context.Context, userID uuid.UUID, payload []byte) error {
	return f.record("QuestCompleted")(ctx, userID, payload)
}

func (f *fakeUploadOutbox) InsertQuestAssignedEvent(ctx context.Context, userID uuid.UUID, payload []byte) error {
	return f.record("QuestAssigned")(ctx, userID, payload)
}

type staticCategories struct{}

func (staticCategories) Categories() []string {
	return []string{"Recycling Activity", "Litter Pickup"}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestUploadApp(blobs BlobStore) (*App, *fakeCompletionStore, *fakeUploadQuests, *fakeUploadOutbox) {
	store := &fakeCompletionStore{}
	outbox := &fakeUploadOutbox{}
	questsApp := &fakeUploadQuests{
		result: &quests.CompletionResult{
			Completed: &models.Quest{QuestIDStr: "quest-1", UserToID: uuid.New(), TargetCategory: "Litter Pickup"},
			Next:      &models.Quest{QuestIDStr: "quest-2", UserToID: uuid.New(), TargetCategory: "Recycling Activity"},
		},
	}
	recognizer := &fakeRecognizer{
		labels:      []string{"Trash (Score: 0.95)"},
		description: "Someone picking up litter in a park.",
		category:    "Litter Pickup",
	}
	app := NewApp(blobs, store, recognizer, &fakeScorer{points: 15}, questsApp, outbox, staticCategories{})
	return app, store, questsApp, outbox
}

func TestProcessUploadRejectsBadExtension(t *testing.T) {
	blobs := newMemBlobStore()
	app, _, questsApp, _ := newTestUploadApp(blobs)

	_, err := app.ProcessUpload(context.Background(), UploadRequest{
		UserID:     uuid.New(),
		QuestIDStr: "quest-1",
		Filename:   "malware.exe",
		Data:       []byte("not an image"),
	})

	var extErr *ErrInvalidExtension
	require.ErrorAs(t, err, &extErr)
	assert.Contains(t, extErr.Error(), "bmp, gif, heic, heif, jpeg, jpg, png, tiff, webp")
	assert.Empty(t, blobs.saved)
	assert.Empty(t, questsApp.completed)
}

func TestProcessUploadPipeline(t *testing.T) {
	blobs := newMemBlobStore()
	app, store, questsApp, outbox := newTestUploadApp(blobs)

	userID := uuid.New()
	result, err := app.ProcessUpload(context.Background(), UploadRequest{
		UserID:     userID,
		QuestIDStr: "quest-1",
		Filename:   "my deed.png",
		Data:       pngBytes(t, 640, 480),
	})
	require.NoError(t, err)

	// Original and thumbnail both stored under the user's prefix.
	require.Len(t, blobs.saved, 2)
	for key := range blobs.saved {
		assert.True(t, strings.HasPrefix(key, userID.String()+"/"), "key %q not under user prefix", key)
	}

	assert.Equal(t, []int{15}, store.awarded)
	assert.Equal(t, []string{"quest-1"}, questsApp.completed)
	require.Len(t, store.created, 1)
	assert.Equal(t, result.ImageURI, store.created[0].URI)
	assert.NotNil(t, store.created[0].ThumbnailURI)

	assert.Equal(t, []string{"PhotoUploaded", "KarmaAwarded", "QuestCompleted", "QuestAssigned"}, outbox.eventTypes)

	assert.Equal(t, "Litter Pickup", result.Category)
	assert.Equal(t, 15, result.PointsAwarded)
	assert.Equal(t, 15, result.UserKarma)
	assert.Equal(t, "quest-2", result.NextQuestIDStr)
	assert.Equal(t, "/quests?completed=quest-1", result.RedirectURL)
	assert.Contains(t, result.Message, "my_deed.png")
}

func TestProcessUploadDefaultsDescription(t *testing.T) {
	blobs := newMemBlobStore()
	app, _, _, _ := newTestUploadApp(blobs)
	app.recognizer.(*fakeRecognizer).describeErr = fmt.Errorf("model unavailable")
	app.recognizer.(*fakeRecognizer).description = ""

	result, err := app.ProcessUpload(context.Background(), UploadRequest{
		UserID:     uuid.New(),
		QuestIDStr: "quest-1",
		Filename:   "deed.png",
		Data:       pngBytes(t, 32, 32),
	})
	require.NoError(t, err)
	assert.Equal(t, defaultDescription, result.Description)
}

func TestProcessUploadUndecodableImageSkipsThumbnail(t *testing.T) {
	blobs := newMemBlobStore()
	app, store, _, _ := newTestUploadApp(blobs)

	_, err := app.ProcessUpload(context.Background(), UploadRequest{
		UserID:     uuid.New(),
		QuestIDStr: "quest-1",
		Filename:   "photo.heic",
		Data:       []byte("heic bytes the stdlib cannot decode"),
	})
	require.NoError(t, err)

	// Only the original is stored, and the photo record has no thumbnail.
	assert.Len(t, blobs.saved, 1)
	require.Len(t, store.created, 1)
	assert.Nil(t, store.created[0].ThumbnailURI)
}

func TestThumbnailBoundsSize(t *testing.T) {
	thumb, err := Thumbnail(pngBytes(t, 1200, 600))
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(thumb))
	require.NoError(t, err)
	assert.LessOrEqual(t, img.Bounds().Dx(), 300)
	assert.LessOrEqual(t, img.Bounds().Dy(), 300)
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"photo.jpg", "photo.jpg"},
		{"my deed.png", "my_deed.png"},
		{"../../etc/passwd", "passwd"},
		{"we!rd(name).gif", "werdname.gif"},
		{"???", "upload"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeFilename(tt.in), "input %q", tt.in)
	}
}

func TestKeyFromURI(t *testing.T) {
	assert.Equal(t, "u1/abc_photo.jpg", KeyFromURI("s3://bucket/u1/abc_photo.jpg"))
	assert.Equal(t, "/data/blobs/u1/abc_photo.jpg", KeyFromURI("file:///data/blobs/u1/abc_photo.jpg"))
}
