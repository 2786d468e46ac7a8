package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/karmahq/questline/go/internal/events"
	"github.com/karmahq/questline/go/internal/models"
	"github.com/karmahq/questline/go/internal/session"
	"github.com/karmahq/questline/go/internal/uploads"
	"github.com/karmahq/questline/go/internal/users"
)

// attendeeURLPattern extracts the attendee code from a scanned badge URL.
var attendeeURLPattern = regexp.MustCompile(`https://app\.jamhacks\.ca/social/\s*(\d+)`)

// maxUploadBytes bounds how much of a multipart upload is read into memory.
const maxUploadBytes = 20 << 20

// UsersApp is the slice of the users app the handlers need.
type UsersApp interface {
	CreateUser(ctx context.Context, req users.CreateUserRequest) (*models.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByCode(ctx context.Context, code string) (*models.User, error)
	AddFriend(ctx context.Context, id uuid.UUID, friendID uuid.UUID) error
}

// QuestsApp is the slice of the quests app the handlers need.
type QuestsApp interface {
	ListPending(ctx context.Context, userID uuid.UUID) ([]*models.Quest, error)
	GenerateSystemQuest(ctx context.Context, userID uuid.UUID) (*models.Quest, error)
}

// Uploader processes a quest-completion image end to end.
type Uploader interface {
	ProcessUpload(ctx context.Context, req uploads.UploadRequest) (*uploads.UploadResult, error)
}

// AttendeeScraper resolves an attendee code into a name and social links.
type AttendeeScraper interface {
	AttendeeData(ctx context.Context, attendeeCode string) (string, []string, error)
}

// OutboxApp is the slice of the outbox app the handlers need.
type OutboxApp interface {
	InsertQuestAssignedEvent(ctx context.Context, userID uuid.UUID, payload []byte) error
	InsertFriendAddedEvent(ctx context.Context, userID uuid.UUID, payload []byte) error
}

// Handler serves the JSON API the web client talks to.
type Handler struct {
	users    UsersApp
	quests   QuestsApp
	uploader Uploader
	scraper  AttendeeScraper
	outbox   OutboxApp

	dynamsoftLicense string
	allowedReferers  []string
}

func NewHandler(users UsersApp, quests QuestsApp, uploader Uploader, scraper AttendeeScraper, outbox OutboxApp) *Handler {
	return &Handler{
		users:    users,
		quests:   quests,
		uploader: uploader,
		scraper:  scraper,
		outbox:   outbox,
		allowedReferers: []string{
			"http://karmasarelaxingthought.tech", "https://karmasarelaxingthought.tech",
			"http://127.0.0.1", "https://127.0.0.1",
			"http://localhost", "https://localhost",
		},
	}
}

// SetDynamsoftLicense sets the barcode-scanner license handed to the client.
func (h *Handler) SetDynamsoftLicense(license string) {
	h.dynamsoftLicense = license
}

// RegisterRoutes attaches every API route to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/login", h.Login)
	mux.HandleFunc("/logout", h.Logout)
	mux.HandleFunc("/url_to_user", h.URLToUser)
	mux.HandleFunc("/get_user_json", h.GetUserJSON)
	mux.HandleFunc("/get_quests_json", h.GetQuestsJSON)
	mux.HandleFunc("/add_friend", h.AddFriend)
	mux.HandleFunc("/upload_endpoint", h.UploadEndpoint)
	mux.HandleFunc("/get_dynamsoft_license", h.GetDynamsoftLicense)
	mux.HandleFunc("/health", h.Health)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// Login issues the session cookie for an already-known user id.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if _, err := uuid.Parse(req.UserID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid user_id format")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    req.UserID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	log.Info().Str("user_id", req.UserID).Msg("user logged in")
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Login successful, redirecting...",
		"user_id": req.UserID,
	})
}

// Logout clears the session cookie and sends the browser back to login.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/login", http.StatusFound)
}

// URLToUser turns a scanned badge URL into a user id, creating the user from
// scraped attendee data the first time the code is seen.
func (h *Handler) URLToUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeError(w, http.StatusBadRequest, "url payload required")
		return
	}

	match := attendeeURLPattern.FindStringSubmatch(req.URL)
	if match == nil {
		writeError(w, http.StatusBadRequest, "invalid url format")
		return
	}
	code := match[1]

	user, err := h.users.GetUserByCode(r.Context(), code)
	if err == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"user_id":  user.ID.String(),
			"new_user": false,
		})
		return
	}
	if !errors.Is(err, users.ErrNotFound) {
		log.Error().Err(err).Str("code", code).Msg("failed to look up attendee code")
		writeError(w, http.StatusInternalServerError, "failed to resolve user")
		return
	}

	name, socials, err := h.scraper.AttendeeData(r.Context(), code)
	if err != nil {
		log.Error().Err(err).Str("code", code).Msg("failed to scrape attendee data")
		writeError(w, http.StatusInternalServerError, "failed to fetch attendee data")
		return
	}

	created, err := h.users.CreateUser(r.Context(), users.CreateUserRequest{
		AttendeeCode: code,
		Name:         name,
		Socials:      socials,
	})
	if err != nil {
		log.Error().Err(err).Str("code", code).Msg("failed to create user")
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":  created.ID.String(),
		"new_user": true,
	})
}

// userProfile is the profile shape the web client expects. The _id field name
// is kept for compatibility with existing client code.
type userProfile struct {
	ID           string   `json:"_id"`
	AttendeeCode string   `json:"attendee_code"`
	Name         string   `json:"name"`
	Socials      []string `json:"socials"`
	Karma        int      `json:"karma"`
	Phone        *string  `json:"phone"`
	Friends      []string `json:"friends"`
	Quests       []string `json:"quests"`
	Photos       []string `json:"photos"`
}

func profileFromUser(user *models.User) userProfile {
	friends := make([]string, 0, len(user.Friends))
	for _, id := range user.Friends {
		friends = append(friends, id.String())
	}
	profile := userProfile{
		ID:           user.ID.String(),
		AttendeeCode: user.AttendeeCode,
		Name:         user.Name,
		Socials:      user.Socials,
		Karma:        user.Karma,
		Phone:        user.Phone,
		Friends:      friends,
		Quests:       user.Quests,
		Photos:       user.Photos,
	}
	if profile.Socials == nil {
		profile.Socials = []string{}
	}
	if profile.Quests == nil {
		profile.Quests = []string{}
	}
	if profile.Photos == nil {
		profile.Photos = []string{}
	}
	return profile
}

// GetUserJSON returns the full profile for a user id.
func (h *Handler) GetUserJSON(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	id, err := uuid.Parse(req.UserID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user_id format")
		return
	}

	user, err := h.users.GetUser(r.Context(), id)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		log.Error().Err(err).Str("user_id", req.UserID).Msg("failed to get user")
		writeError(w, http.StatusInternalServerError, "failed to get user")
		return
	}

	writeJSON(w, http.StatusOK, profileFromUser(user))
}

// GetQuestsJSON lists the user's pending quests. A user with nothing pending
// gets a fresh system quest so the quest page is never empty.
func (h *Handler) GetQuestsJSON(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	id, err := uuid.Parse(req.UserID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user_id format")
		return
	}

	pending, err := h.quests.ListPending(r.Context(), id)
	if err != nil {
		log.Error().Err(err).Str("user_id", req.UserID).Msg("failed to list quests")
		writeError(w, http.StatusInternalServerError, "failed to list quests")
		return
	}

	if len(pending) == 0 {
		// Generating for an unknown id would leave an orphan quest row.
		if _, err := h.users.GetUser(r.Context(), id); err != nil {
			if errors.Is(err, users.ErrNotFound) {
				writeError(w, http.StatusNotFound, "user not found")
				return
			}
			log.Error().Err(err).Str("user_id", req.UserID).Msg("failed to get user")
			writeError(w, http.StatusInternalServerError, "failed to get user")
			return
		}

		quest, err := h.quests.GenerateSystemQuest(r.Context(), id)
		if err != nil {
			log.Error().Err(err).Str("user_id", req.UserID).Msg("failed to generate quest")
			writeError(w, http.StatusInternalServerError, "failed to generate quest")
			return
		}
		h.emitQuestAssigned(r.Context(), quest)
		pending = []*models.Quest{quest}
	}

	writeJSON(w, http.StatusOK, map[string]any{"quests": pending})
}

func (h *Handler) emitQuestAssigned(ctx context.Context, quest *models.Quest) {
	payload := events.QuestAssignedPayload{
		QuestIDStr:     quest.QuestIDStr,
		UserToID:       quest.UserToID.String(),
		TargetCategory: quest.TargetCategory,
		ExpiresAt:      quest.ExpiresAt,
		AssignedAt:     quest.CreatedAt,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal QuestAssigned payload")
		return
	}
	if err := h.outbox.InsertQuestAssignedEvent(ctx, quest.UserToID, data); err != nil {
		log.Error().Err(err).Str("quest_id", quest.QuestIDStr).Msg("failed to insert QuestAssigned event")
	}
}

// sessionToken prefers the token the session middleware extracted; handlers
// reached without the middleware fall back to the cookie itself.
func sessionToken(r *http.Request) (string, bool) {
	if token, ok := session.TokenFromContext(r.Context()); ok {
		return token, true
	}
	cookie, err := r.Cookie(session.CookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

// AddFriend links the scanned user onto the session user's friend list.
func (h *Handler) AddFriend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	token, ok := sessionToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "login required")
		return
	}
	ownID, err := uuid.Parse(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid session")
		return
	}

	var req struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	friendID, err := uuid.Parse(req.UserID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user_id format")
		return
	}

	if err := h.users.AddFriend(r.Context(), ownID, friendID); err != nil {
		log.Error().Err(err).Str("user_id", ownID.String()).Str("friend_id", req.UserID).Msg("failed to add friend")
		writeError(w, http.StatusBadRequest, "failed to add friend")
		return
	}

	payload, err := json.Marshal(events.FriendAddedPayload{
		UserID:   ownID.String(),
		FriendID: friendID.String(),
		AddedAt:  time.Now().UTC(),
	})
	if err == nil {
		if err := h.outbox.InsertFriendAddedEvent(r.Context(), ownID, payload); err != nil {
			log.Error().Err(err).Msg("failed to insert FriendAdded event")
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "friend added"})
}

// UploadEndpoint accepts the multipart quest-completion upload and runs the
// recognition pipeline on it.
func (h *Handler) UploadEndpoint(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "No image file part in the request.")
		return
	}

	file, header, err := r.FormFile("image_file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No image file part in the request.")
		return
	}
	defer file.Close()

	userIDStr := r.FormValue("user_id")
	if userIDStr == "" {
		writeError(w, http.StatusBadRequest, "User ID is required.")
		return
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user_id format")
		return
	}

	if header.Filename == "" {
		writeError(w, http.StatusBadRequest, "No image selected for uploading.")
		return
	}

	questIDStr := r.FormValue("quest_id_str")
	if questIDStr == "" {
		writeError(w, http.StatusBadRequest, "quest_id_str is required")
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read image file")
		return
	}

	result, err := h.uploader.ProcessUpload(r.Context(), uploads.UploadRequest{
		UserID:      userID,
		QuestIDStr:  questIDStr,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		var extErr *uploads.ErrInvalidExtension
		if errors.As(err, &extErr) {
			writeError(w, http.StatusBadRequest, extErr.Error())
			return
		}
		log.Error().Err(err).Str("user_id", userIDStr).Str("quest_id", questIDStr).Msg("upload pipeline failed")
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to process upload: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GetDynamsoftLicense hands the barcode-scanner license to allowlisted pages.
func (h *Handler) GetDynamsoftLicense(w http.ResponseWriter, r *http.Request) {
	referer := r.Header.Get("Referer")
	allowed := false
	for _, prefix := range h.allowedReferers {
		if strings.HasPrefix(referer, prefix) {
			allowed = true
			break
		}
	}
	if !allowed {
		log.Warn().Str("referer", referer).Msg("unauthorized referer for scanner license")
		writeError(w, http.StatusForbidden, "Unauthorized access")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"license": h.dynamsoftLicense})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
