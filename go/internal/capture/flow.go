package capture

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// User-visible messages. The JSON error branch appends the server's own
// error text.
const (
	MsgNoCapture    = "Take a photo before completing the quest."
	MsgConnectivity = "Could not reach the server. Check your connection and try again."
)

// Flow coordinates camera acquisition, photo capture and the single upload
// round-trip for one quest page. It owns the captured frame: Capture and
// Retake replace it, a successful Submit discards it, a failed Submit keeps
// it so the user can retry.
type Flow struct {
	uploadURL string
	questID   string
	userID    string
	camera    Camera
	navigator Navigator
	notifier  Notifier
	client    *http.Client
	clock     clockwork.Clock

	mu               sync.Mutex
	frame            *Frame
	mode             Mode
	submitEnabled    bool
	fileInputEnabled bool
	inFlight         bool
}

// Option configures a Flow.
type Option func(*Flow)

// WithHTTPClient substitutes the transport, typically for tests.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Flow) {
		f.client = client
	}
}

// WithClock substitutes the clock used for timestamp-derived filenames.
func WithClock(clock clockwork.Clock) Option {
	return func(f *Flow) {
		f.clock = clock
	}
}

// WithUserID attaches the uploader's user id as a form field. The server
// needs it to route the upload; browser pages embed it in the template.
func WithUserID(userID string) Option {
	return func(f *Flow) {
		f.userID = userID
	}
}

// NewFlow creates a capture flow for one quest.
func NewFlow(uploadURL, questID string, camera Camera, navigator Navigator, notifier Notifier, opts ...Option) *Flow {
	f := &Flow{
		uploadURL:        uploadURL,
		questID:          questID,
		camera:           camera,
		navigator:        navigator,
		notifier:         notifier,
		client:           &http.Client{Timeout: 30 * time.Second},
		clock:            clockwork.NewRealClock(),
		mode:             ModeLive,
		fileInputEnabled: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Start requests camera access. Failure surfaces an alert but leaves the
// rest of the page usable; the file-input fallback does not need a camera.
func (f *Flow) Start(ctx context.Context) {
	if err := f.camera.Open(ctx); err != nil {
		log.Warn().Err(err).Msg("camera acquisition failed")
		f.notifier.Alert(fmt.Sprintf("Camera unavailable: %v", err))
	}
}

// Capture snapshots the current video frame, replacing any previously held
// frame, freezes the preview and enables submission. Triggering it again
// acts as a retake.
func (f *Flow) Capture(ctx context.Context) error {
	frame, err := f.camera.Frame(ctx)
	if err != nil {
		f.notifier.Alert(fmt.Sprintf("Could not capture a photo: %v", err))
		return fmt.Errorf("capture frame: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.frame = &frame
	f.mode = ModeFrozen
	f.submitEnabled = true
	return nil
}

// Submit sends the captured frame with the quest identifier. Exactly one
// submission may be in flight: both the submit control and the file input
// are disabled for the duration of the request and re-enabled only on
// failure. On success the flow navigates to the server-provided URL.
func (f *Flow) Submit(ctx context.Context) error {
	f.mu.Lock()
	if f.inFlight {
		f.mu.Unlock()
		return ErrSubmissionInFlight
	}
	if f.frame == nil {
		f.mu.Unlock()
		f.notifier.Alert(MsgNoCapture)
		return ErrNoCapture
	}
	data := f.frame.Data
	f.beginSubmissionLocked()
	f.mu.Unlock()

	filename := fmt.Sprintf("capture_%d.jpg", f.clock.Now().Unix())
	return f.submit(ctx, filename, data, true)
}

// SubmitFile is the fallback path: a user-chosen file goes through the same
// submission discipline without touching the camera or the held frame.
func (f *Flow) SubmitFile(ctx context.Context, filename string, r io.Reader) error {
	f.mu.Lock()
	if f.inFlight {
		f.mu.Unlock()
		return ErrSubmissionInFlight
	}
	f.beginSubmissionLocked()
	f.mu.Unlock()

	data, err := io.ReadAll(r)
	if err != nil {
		f.failSubmission(fmt.Sprintf("Could not read the selected file: %v", err))
		return fmt.Errorf("read file: %w", err)
	}
	return f.submit(ctx, filename, data, false)
}

func (f *Flow) beginSubmissionLocked() {
	f.inFlight = true
	f.submitEnabled = false
	f.fileInputEnabled = false
}

// failSubmission re-enables the controls so the user can retry, keeping any
// captured frame in place.
func (f *Flow) failSubmission(msg string) {
	f.mu.Lock()
	f.inFlight = false
	f.submitEnabled = f.frame != nil
	f.fileInputEnabled = true
	f.mu.Unlock()
	f.notifier.Alert(msg)
}

func (f *Flow) submit(ctx context.Context, filename string, data []byte, fromCamera bool) error {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image_file", filename)
	if err == nil {
		_, err = part.Write(data)
	}
	if err == nil {
		err = writer.WriteField("quest_id_str", f.questID)
	}
	if err == nil && f.userID != "" {
		err = writer.WriteField("user_id", f.userID)
	}
	if err == nil {
		err = writer.Close()
	}
	if err != nil {
		f.failSubmission(MsgConnectivity)
		return fmt.Errorf("build multipart payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.uploadURL, &body)
	if err != nil {
		f.failSubmission(MsgConnectivity)
		return fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := f.client.Do(req)
	if err != nil {
		// Transport-level failure: no response at all.
		log.Warn().Err(err).Msg("upload request failed")
		f.failSubmission(MsgConnectivity)
		return fmt.Errorf("upload request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		f.failSubmission(MsgConnectivity)
		return fmt.Errorf("read upload response: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		f.finishSubmission(fromCamera)
		f.navigator.Navigate(resultURL(resp, respBody))
		return nil
	}

	msg := failureMessage(resp.Header.Get("Content-Type"), resp.StatusCode, respBody)
	f.failSubmission(msg)
	return fmt.Errorf("upload rejected: %s", msg)
}

// finishSubmission discards the frame and leaves every control enabled; the
// navigation that follows supersedes the page anyway.
func (f *Flow) finishSubmission(fromCamera bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight = false
	f.submitEnabled = true
	f.fileInputEnabled = true
	if fromCamera {
		f.frame = nil
		f.mode = ModeLive
	}
}

// resultURL picks the navigation target: a redirect_url in a JSON body wins,
// otherwise the final request URL after any server redirects.
func resultURL(resp *http.Response, body []byte) string {
	var parsed struct {
		RedirectURL string `json:"redirect_url"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.RedirectURL != "" {
		return parsed.RedirectURL
	}
	return resp.Request.URL.String()
}

// failureMessage classifies a server error by content type: a JSON body
// yields its error field, anything else a generic status-based message.
func failureMessage(contentType string, status int, body []byte) string {
	if strings.Contains(contentType, "application/json") {
		var parsed struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != "" {
			return fmt.Sprintf("Upload failed: %s", parsed.Error)
		}
	}
	return fmt.Sprintf("Upload failed (HTTP %d). Please try again.", status)
}

// Mode reports whether the preview is live or frozen.
func (f *Flow) Mode() Mode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mode
}

// HasCapture reports whether a frame is currently held.
func (f *Flow) HasCapture() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frame != nil
}

// SubmitEnabled reports the submit control's state.
func (f *Flow) SubmitEnabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitEnabled
}

// FileInputEnabled reports the fallback file input's state.
func (f *Flow) FileInputEnabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fileInputEnabled
}
