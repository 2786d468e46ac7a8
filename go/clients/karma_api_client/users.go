package karma_api_client

import (
	"context"
	"fmt"
	"net/http"
)

// UserProfile is the payload of POST /get_user_json.
type UserProfile struct {
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

// QuestView is one quest as rendered on the quests page.
type QuestView struct {
	QuestIDStr          string  `json:"quest_id_str"`
	UserFromID          *string `json:"user_from_id"`
	NominatedByImageURI *string `json:"nominated_by_image_uri"`
	TargetCategory      string  `json:"target_category"`
	ExpiryTime          *string `json:"expiry_time"`
}

// URLToUserResponse is the payload of POST /url_to_user.
type URLToUserResponse struct {
	UserID  string `json:"user_id"`
	NewUser bool   `json:"new_user"`
}

// GetUserJSON fetches the profile for a session token's user.
func (c *KarmaApiClient) GetUserJSON(ctx context.Context, userID string) (*UserProfile, error) {
	var profile UserProfile
	if _, err := c.postJSON(ctx, GetUserJSONEndpoint, map[string]string{"user_id": userID}, &profile); err != nil {
		return nil, fmt.Errorf("get user json: %w", err)
	}
	return &profile, nil
}

// GetQuests lists the user's pending quests for the quests page.
func (c *KarmaApiClient) GetQuests(ctx context.Context, userID string) ([]QuestView, error) {
	var out struct {
		Quests []QuestView `json:"quests"`
	}
	if _, err := c.postJSON(ctx, GetQuestsEndpoint, map[string]string{"user_id": userID}, &out); err != nil {
		return nil, fmt.Errorf("get quests: %w", err)
	}
	return out.Quests, nil
}

// URLToUser resolves a scanned badge URL to a user, creating one if needed.
func (c *KarmaApiClient) URLToUser(ctx context.Context, url string) (*URLToUserResponse, error) {
	var out URLToUserResponse
	if _, err := c.postJSON(ctx, URLToUserEndpoint, map[string]string{"url": url}, &out); err != nil {
		return nil, fmt.Errorf("url to user: %w", err)
	}
	return &out, nil
}

// Login establishes a session and returns the raw session cookie pair
// ("user_session=<token>") from the Set-Cookie response header.
func (c *KarmaApiClient) Login(ctx context.Context, userID string) (string, error) {
	resp, err := c.postJSON(ctx, LoginEndpoint, map[string]string{"user_id": userID}, nil)
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}

	for _, cookie := range resp.Cookies() {
		if cookie.Name == "user_session" {
			pair := cookie.Name + "=" + cookie.Value
			c.cookie = pair
			return pair, nil
		}
	}
	return "", fmt.Errorf("login: no user_session cookie in response")
}

// AddFriend adds the given user to the session user's friend list.
func (c *KarmaApiClient) AddFriend(ctx context.Context, userID string) error {
	if _, err := c.postJSON(ctx, AddFriendEndpoint, map[string]string{"user_id": userID}, nil); err != nil {
		return fmt.Errorf("add friend: %w", err)
	}
	return nil
}

// Logout ends the server session. The server answers with a redirect to the
// login page and a cookie-clearing Set-Cookie, so redirects are not followed.
func (c *KarmaApiClient) Logout(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+LogoutEndpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}

	client := *c.client
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("API returned status code: %d", resp.StatusCode)
	}
	c.cookie = ""
	return nil
}

// DynamsoftLicense fetches the barcode-scanner license key.
func (c *KarmaApiClient) DynamsoftLicense(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+DynamsoftLicenseEndpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	if c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API returned status code: %d", resp.StatusCode)
	}

	var out struct {
		License string `json:"license"`
	}
	if err := jsonDecode(resp.Body, &out); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	return out.License, nil
}
