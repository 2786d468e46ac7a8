package scraper

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// Scraper fetches an attendee's public profile page and extracts their name
// and social links. The name is the page's first h1; socials are the
// non-empty p elements.
type Scraper struct {
	baseURL      string
	sessionToken string
	client       *http.Client
}

func NewScraper(baseURL, sessionToken string) *Scraper {
	return &Scraper{
		baseURL:      baseURL,
		sessionToken: sessionToken,
		client:       &http.Client{Timeout: 15 * time.Second},
	}
}

// SetHTTPClient overrides the underlying HTTP client.
func (s *Scraper) SetHTTPClient(client *http.Client) {
	s.client = client
}

// AttendeeData fetches the attendee page for a code and extracts name and
// socials.
func (s *Scraper) AttendeeData(ctx context.Context, attendeeCode string) (name string, socials []string, err error) {
	url := fmt.Sprintf("%s/social/%s", s.baseURL, attendeeCode)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create request: %w", err)
	}
	if s.sessionToken != "" {
		req.AddCookie(&http.Cookie{Name: "__Secure-next-auth.session-token", Value: s.sessionToken})
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("failed to fetch attendee page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("attendee page returned status %d", resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return "", nil, fmt.Errorf("failed to parse attendee page: %w", err)
	}

	name, socials = extract(doc)
	if name == "" {
		return "", nil, fmt.Errorf("attendee page has no name heading")
	}
	return name, socials, nil
}

func extract(doc *html.Node) (name string, socials []string) {
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "h1":
				if name == "" {
					name = strings.TrimSpace(text(n))
				}
				return
			case "p":
				if t := strings.TrimSpace(text(n)); t != "" {
					socials = append(socials, t)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return name, socials
}

func text(n *html.Node) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
