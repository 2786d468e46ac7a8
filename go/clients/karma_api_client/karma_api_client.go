package karma_api_client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// KarmaApiClient talks to the questline server's JSON endpoints. The raw
// session cookie, when set, is attached to every request.
type KarmaApiClient struct {
	baseURL string
	client  *http.Client
	cookie  string
}

func NewKarmaApiClient(baseURL string) *KarmaApiClient {
	return &KarmaApiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetSessionCookie sets the raw Cookie header value sent with requests.
func (c *KarmaApiClient) SetSessionCookie(raw string) {
	c.cookie = raw
}

// SetHTTPClient substitutes the transport, typically for tests.
func (c *KarmaApiClient) SetHTTPClient(client *http.Client) {
	c.client = client
}

func (c *KarmaApiClient) postJSON(ctx context.Context, endpoint string, payload any, out any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(responseBody, &apiErr) == nil && apiErr.Error != "" {
			return resp, fmt.Errorf("API returned status code: %d, error: %s", resp.StatusCode, apiErr.Error)
		}
		return resp, fmt.Errorf("API returned status code: %d, response: %s", resp.StatusCode, string(responseBody))
	}

	if out != nil {
		if err := json.Unmarshal(responseBody, out); err != nil {
			return resp, fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return resp, nil
}

func jsonDecode(r io.Reader, out any) error {
	return json.NewDecoder(r).Decode(out)
}
