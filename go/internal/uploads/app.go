package uploads

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/karmahq/questline/go/internal/events"
	"github.com/karmahq/questline/go/internal/models"
	"github.com/karmahq/questline/go/internal/quests"
)

// AllowedExtensions lists the accepted upload file extensions.
var AllowedExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
	".tiff": true,
	".heic": true,
	".heif": true,
}

// ErrInvalidExtension is returned for uploads outside AllowedExtensions.
type ErrInvalidExtension struct {
	Extension string
}

func (e *ErrInvalidExtension) Error() string {
	return fmt.Sprintf("invalid file type %q, allowed types are: %s", e.Extension, allowedExtensionList())
}

func allowedExtensionList() string {
	exts := make([]string, 0, len(AllowedExtensions))
	for ext := range AllowedExtensions {
		exts = append(exts, strings.TrimPrefix(ext, "."))
	}
	// Stable order for error messages.
	sort.Strings(exts)
	return strings.Join(exts, ", ")
}

// ImageRecognizer is the slice of the recognizer the pipeline needs.
type ImageRecognizer interface {
	Labels(ctx context.Context, imageURL string) ([]string, error)
	Describe(ctx context.Context, labels []string) (string, error)
	Classify(ctx context.Context, description string, labels, categories []string) (string, error)
}

// ActivityScorer turns a classified activity into karma points.
type ActivityScorer interface {
	Points(ctx context.Context, category, description string, labels []string) (int, error)
}

// QuestsApp is the slice of the quests app the pipeline needs.
type QuestsApp interface {
	CompleteAndNominate(ctx context.Context, questIDStr, completionImageURI string, points int) (*quests.CompletionResult, error)
}

// CompletionRecorder persists the karma award and the photo record as one
// atomic write.
type CompletionRecorder interface {
	RecordCompletion(ctx context.Context, userID uuid.UUID, questIDStr, uri string, thumbnailURI *string, points int) (*models.User, *models.Photo, error)
}

// OutboxApp is the slice of the outbox app the pipeline needs.
type OutboxApp interface {
	InsertPhotoUploadedEvent(ctx context.Context, userID uuid.UUID, payload []byte) error
	InsertKarmaAwardedEvent(ctx context.Context, userID uuid.UUID, payload []byte) error
	InsertQuestCompletedEvent(ctx context.Context, userID uuid.UUID, payload []byte) error
	InsertQuestAssignedEvent(ctx context.Context, userID uuid.UUID, payload []byte) error
}

// CategorySource provides the configured activity categories.
type CategorySource interface {
	Categories() []string
}

// App runs the upload pipeline: store the image, recognize the activity,
// score it, award karma, complete the quest and emit events.
type App struct {
	blobs      BlobStore
	store      CompletionRecorder
	recognizer ImageRecognizer
	scorer     ActivityScorer
	quests     QuestsApp
	outbox     OutboxApp
	categories CategorySource
}

func NewApp(blobs BlobStore, store CompletionRecorder, recognizer ImageRecognizer, scorer ActivityScorer, quests QuestsApp, outbox OutboxApp, categories CategorySource) *App {
	return &App{
		blobs:      blobs,
		store:      store,
		recognizer: recognizer,
		scorer:     scorer,
		quests:     quests,
		outbox:     outbox,
		categories: categories,
	}
}

const defaultDescription = "Activity could not be automatically described from labels."

// ProcessUpload runs the full pipeline for one uploaded image.
func (a *App) ProcessUpload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	ext := strings.ToLower(filepath.Ext(req.Filename))
	if !AllowedExtensions[ext] {
		return nil, &ErrInvalidExtension{Extension: ext}
	}

	filename := sanitizeFilename(req.Filename)
	contentType := req.ContentType
	if contentType == "" {
		contentType = mime.TypeByExtension(ext)
	}

	key := fmt.Sprintf("%s/%s_%s", req.UserID, uuid.New(), filename)
	uri, err := a.blobs.Save(ctx, key, req.Data, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to store image: %w", err)
	}
	log.Info().Str("uri", uri).Str("user_id", req.UserID.String()).Msg("stored uploaded image")

	var thumbnailURI *string
	if thumb, err := Thumbnail(req.Data); err != nil {
		log.Warn().Err(err).Str("filename", filename).Msg("thumbnail generation failed")
	} else {
		thumbKey := strings.TrimSuffix(key, ext) + "_thumb.jpg"
		if turi, err := a.blobs.Save(ctx, thumbKey, thumb, "image/jpeg"); err != nil {
			log.Warn().Err(err).Msg("failed to store thumbnail")
		} else {
			thumbnailURI = &turi
		}
	}

	labels, err := a.recognizer.Labels(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("label extraction failed: %w", err)
	}

	description, err := a.recognizer.Describe(ctx, labels)
	if err != nil || description == "" {
		log.Warn().Err(err).Msg("activity description failed, using default")
		description = defaultDescription
	}

	category, err := a.recognizer.Classify(ctx, description, labels, a.categories.Categories())
	if err != nil {
		return nil, fmt.Errorf("activity classification failed: %w", err)
	}

	points, err := a.scorer.Points(ctx, category, description, labels)
	if err != nil {
		return nil, fmt.Errorf("activity scoring failed: %w", err)
	}

	user, _, err := a.store.RecordCompletion(ctx, req.UserID, req.QuestIDStr, uri, thumbnailURI, points)
	if err != nil {
		return nil, fmt.Errorf("failed to record completion: %w", err)
	}

	result, err := a.quests.CompleteAndNominate(ctx, req.QuestIDStr, uri, points)
	if err != nil {
		return nil, fmt.Errorf("failed to complete quest: %w", err)
	}

	a.emitEvents(ctx, req, uri, category, points, user, result)

	log.Info().
		Str("user_id", req.UserID.String()).
		Str("quest_id", req.QuestIDStr).
		Str("category", category).
		Int("points", points).
		Msg("processed upload")

	upload := &UploadResult{
		Message:       fmt.Sprintf("Image '%s' processed successfully.", filename),
		ImageURI:      uri,
		ThumbnailURI:  thumbnailURI,
		ImageLabels:   labels,
		Description:   description,
		Category:      category,
		PointsAwarded: points,
		UserKarma:     user.Karma,
		RedirectURL:   "/quests?completed=" + req.QuestIDStr,
	}
	if result.Next != nil {
		upload.NextQuestIDStr = result.Next.QuestIDStr
	}
	return upload, nil
}

// emitEvents writes the outbox events for a processed upload. Event failures
// are logged, not returned: the domain changes are already committed.
func (a *App) emitEvents(ctx context.Context, req UploadRequest, uri, category string, points int, user *models.User, result *quests.CompletionResult) {
	now := time.Now().UTC()

	a.insertEvent(ctx, req.UserID, a.outbox.InsertPhotoUploadedEvent, events.PhotoUploadedPayload{
		UserID:     req.UserID.String(),
		QuestIDStr: req.QuestIDStr,
		ImageURI:   uri,
		UploadedAt: now,
	})

	a.insertEvent(ctx, req.UserID, a.outbox.InsertKarmaAwardedEvent, events.KarmaAwardedPayload{
		UserID:     req.UserID.String(),
		Points:     points,
		TotalKarma: user.Karma,
		Category:   category,
		AwardedAt:  now,
	})

	if result.Completed != nil {
		a.insertEvent(ctx, req.UserID, a.outbox.InsertQuestCompletedEvent, events.QuestCompletedPayload{
			QuestIDStr:         result.Completed.QuestIDStr,
			UserID:             result.Completed.UserToID.String(),
			TargetCategory:     result.Completed.TargetCategory,
			CompletionImageURI: uri,
			PointsAwarded:      points,
			CompletedAt:        now,
		})
	}

	if result.Next != nil {
		payload := events.QuestAssignedPayload{
			QuestIDStr:     result.Next.QuestIDStr,
			UserToID:       result.Next.UserToID.String(),
			TargetCategory: result.Next.TargetCategory,
			ExpiresAt:      result.Next.ExpiresAt,
			AssignedAt:     now,
		}
		if result.Next.UserFromID != nil {
			from := result.Next.UserFromID.String()
			payload.UserFromID = &from
		}
		a.insertEvent(ctx, result.Next.UserToID, a.outbox.InsertQuestAssignedEvent, payload)
	}
}

func (a *App) insertEvent(ctx context.Context, userID uuid.UUID, insert func(context.Context, uuid.UUID, []byte) error, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event payload")
		return
	}
	if err := insert(ctx, userID, data); err != nil {
		log.Error().Err(err).Msg("failed to insert outbox event")
	}
}

// sanitizeFilename strips path components and characters outside a safe set.
func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "upload"
	}
	return b.String()
}
