package uploads

import "github.com/google/uuid"

// UploadRequest carries one uploaded quest-completion image.
type UploadRequest struct {
	UserID      uuid.UUID
	QuestIDStr  string
	Filename    string
	ContentType string
	Data        []byte
}

// UploadResult summarizes the processed upload for the API response.
type UploadResult struct {
	Message        string   `json:"message"`
	ImageURI       string   `json:"image_uri"`
	ThumbnailURI   *string  `json:"thumbnail_uri,omitempty"`
	ImageLabels    []string `json:"image_labels"`
	Description    string   `json:"activity_description"`
	Category       string   `json:"classified_category"`
	PointsAwarded  int      `json:"karma_points_awarded"`
	UserKarma      int      `json:"user_current_karma"`
	NextQuestIDStr string   `json:"next_quest_id_str,omitempty"`
	RedirectURL    string   `json:"redirect_url"`
}
