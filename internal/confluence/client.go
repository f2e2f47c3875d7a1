// Package confluence is a minimal Confluence REST client covering what the
// results merge needs: reading a page body in storage format, writing it
// back as a new version and looking up the display name of a user.
package confluence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"
)

const (
	pathContent = "/rest/api/content/%s"
	pathUser    = "/rest/api/user"

	// maxErrorBody bounds how much of an error response is read.
	maxErrorBody = 64 << 10
)

// PageNotFoundError is returned when the page does not exist or lives in a
// different space than configured.
type PageNotFoundError struct {
	PageID   string
	SpaceKey string
	// FoundSpace is set when the page exists in another space.
	FoundSpace string
}

func (e *PageNotFoundError) Error() string {
	if e.FoundSpace != "" {
		return fmt.Sprintf("page %s belongs to space %s, not %s", e.PageID, e.FoundSpace, e.SpaceKey)
	}
	return fmt.Sprintf("page %s not found in space %s", e.PageID, e.SpaceKey)
}

// APIError is a non-success response from the REST API.
type APIError struct {
	Method     string
	URL        string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s returned status %d: %s", e.Method, e.URL, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s returned status %d", e.Method, e.URL, e.StatusCode)
}

// Config configures a Client.
type Config struct {
	BaseURL  string
	SpaceKey string
	Timeout  time.Duration
	RetryMax int
}

// Client talks to one Confluence instance as one user.
type Client struct {
	baseURL  *url.URL
	spaceKey string
	creds    Credentials
	http     *retryablehttp.Client
}

// NewClient creates a Client. The logger may be nil.
func NewClient(cfg Config, creds Credentials, logger Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("invalid Confluence URL %q: %w", cfg.BaseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid Confluence URL %q: scheme and host are required", cfg.BaseURL)
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.RetryMax
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if cfg.Timeout > 0 {
		rc.HTTPClient.Timeout = cfg.Timeout
	}
	rc.Logger = nil
	if logger != nil {
		rc.Logger = leveledLogger{logger}
	}

	return &Client{baseURL: u, spaceKey: cfg.SpaceKey, creds: creds, http: rc}, nil
}

// FetchPageBody returns the storage-format body of a page.
func (c *Client) FetchPageBody(ctx context.Context, pageID string) (string, error) {
	data, err := c.getPage(ctx, pageID, "body.storage,version,space")
	if err != nil {
		return "", err
	}
	return gjson.GetBytes(data, "body.storage.value").String(), nil
}

// UpdatePage replaces the body of a page with a new version.
func (c *Client) UpdatePage(ctx context.Context, pageID, title, body string) error {
	data, err := c.getPage(ctx, pageID, "version,space")
	if err != nil {
		return err
	}
	version := gjson.GetBytes(data, "version.number").Int()

	payload := pageUpdate{
		ID:    pageID,
		Type:  "page",
		Title: title,
		Space: spaceRef{Key: gjson.GetBytes(data, "space.key").String()},
		Body: pageBody{Storage: storage{
			Value:          body,
			Representation: "storage",
		}},
		Version: versionRef{Number: version + 1},
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode page update: %w", err)
	}

	_, err = c.do(ctx, http.MethodPut, c.endpoint(fmt.Sprintf(pathContent, url.PathEscape(pageID)), nil), encoded)
	return err
}

// ResolveDisplayName returns the display name of a user, or the username
// itself when the user has none.
func (c *Client) ResolveDisplayName(ctx context.Context, username string) (string, error) {
	q := url.Values{"username": {username}}
	data, err := c.do(ctx, http.MethodGet, c.endpoint(pathUser, q), nil)
	if err != nil {
		return "", fmt.Errorf("failed to look up user %s: %w", username, err)
	}
	if name := gjson.GetBytes(data, "displayName").String(); name != "" {
		return name, nil
	}
	return username, nil
}

// getPage fetches a page and checks it belongs to the configured space.
func (c *Client) getPage(ctx context.Context, pageID, expand string) ([]byte, error) {
	endpoint := c.endpoint(fmt.Sprintf(pathContent, url.PathEscape(pageID)), url.Values{"expand": {expand}})
	data, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		if apiErr, ok := err.(*APIError); ok && apiErr.StatusCode == http.StatusNotFound {
			return nil, &PageNotFoundError{PageID: pageID, SpaceKey: c.spaceKey}
		}
		return nil, err
	}

	space := gjson.GetBytes(data, "space.key").String()
	if c.spaceKey != "" && space != c.spaceKey {
		return nil, &PageNotFoundError{PageID: pageID, SpaceKey: c.spaceKey, FoundSpace: space}
	}
	return data, nil
}

func (c *Client) endpoint(p string, q url.Values) string {
	u := *c.baseURL
	u.Path = path.Join(u.Path, p)
	u.RawQuery = q.Encode()
	return u.String()
}

// do sends an authenticated request and returns the body of a 2xx response.
func (c *Client) do(ctx context.Context, method, endpoint string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request %s %s: %w", method, endpoint, err)
	}
	req.SetBasicAuth(c.creds.Username, c.creds.Password)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s %s failed: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &APIError{
			Method:     method,
			URL:        endpoint,
			StatusCode: resp.StatusCode,
			Message:    gjson.GetBytes(msg, "message").String(),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response of %s %s: %w", method, endpoint, err)
	}
	return data, nil
}

type pageUpdate struct {
	ID      string     `json:"id"`
	Type    string     `json:"type"`
	Title   string     `json:"title"`
	Space   spaceRef   `json:"space"`
	Body    pageBody   `json:"body"`
	Version versionRef `json:"version"`
}

type spaceRef struct {
	Key string `json:"key"`
}

type pageBody struct {
	Storage storage `json:"storage"`
}

type storage struct {
	Value          string `json:"value"`
	Representation string `json:"representation"`
}

type versionRef struct {
	Number int64 `json:"number"`
}
