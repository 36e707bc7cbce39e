// Package newsapi is a small client for the NewsAPI "everything" endpoint.
package newsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vk/newsdag/internal/ctxlog"
)

const (
	// DefaultBaseURL is the public NewsAPI endpoint.
	DefaultBaseURL = "https://newsapi.org"
	dateLayout     = "2006-01-02"
)

// Client calls NewsAPI. The zero value is not usable; use NewClient.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithBaseURL points the client at another host, e.g. a test server.
func WithBaseURL(u string) Option {
	return func(cl *Client) { cl.baseURL = strings.TrimRight(u, "/") }
}

// NewClient creates a client authenticated with apiKey.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Query selects articles from the everything endpoint.
type Query struct {
	Q        string
	From     time.Time
	To       time.Time
	Language string
	SortBy   string
	PageSize int
	// MaxPages bounds pagination; values below 1 mean one page.
	MaxPages int
}

// Article is one article as returned by the API.
type Article struct {
	Source      Source    `json:"source"`
	Author      *string   `json:"author"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	URL         string    `json:"url"`
	URLToImage  *string   `json:"urlToImage"`
	PublishedAt time.Time `json:"publishedAt"`
	Content     *string   `json:"content"`
}

// Source identifies the publisher of an article.
type Source struct {
	ID   *string `json:"id"`
	Name string  `json:"name"`
}

// APIError is a non-ok response from NewsAPI.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("newsapi: %s (http %d): %s", e.Code, e.StatusCode, e.Message)
}

type response struct {
	Status       string    `json:"status"`
	TotalResults int       `json:"totalResults"`
	Articles     []Article `json:"articles"`
	Code         string    `json:"code"`
	Message      string    `json:"message"`
}

// Everything returns the articles matching q, following pagination up to
// q.MaxPages pages.
func (c *Client) Everything(ctx context.Context, q Query) ([]Article, error) {
	logger := ctxlog.FromContext(ctx)
	maxPages := q.MaxPages
	if maxPages < 1 {
		maxPages = 1
	}

	var all []Article
	for page := 1; page <= maxPages; page++ {
		resp, err := c.fetchPage(ctx, q, page)
		if err != nil {
			return nil, err
		}
		all = append(all, resp.Articles...)
		logger.Debug("Fetched news page.", "page", page, "articles", len(resp.Articles), "total_results", resp.TotalResults)

		if len(resp.Articles) == 0 || len(all) >= resp.TotalResults {
			break
		}
	}
	return all, nil
}

func (c *Client) fetchPage(ctx context.Context, q Query, page int) (*response, error) {
	params := url.Values{}
	params.Set("q", q.Q)
	if !q.From.IsZero() {
		params.Set("from", q.From.UTC().Format(dateLayout))
	}
	if !q.To.IsZero() {
		params.Set("to", q.To.UTC().Format(dateLayout))
	}
	if q.Language != "" {
		params.Set("language", q.Language)
	}
	if q.SortBy != "" {
		params.Set("sortBy", q.SortBy)
	}
	if q.PageSize > 0 {
		params.Set("pageSize", strconv.Itoa(q.PageSize))
	}
	params.Set("page", strconv.Itoa(page))

	endpoint := c.baseURL + "/v2/everything?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var out response
	if err := json.Unmarshal(body, &out); err != nil {
		if resp.StatusCode/100 != 2 {
			return nil, &APIError{StatusCode: resp.StatusCode, Code: "http_error", Message: strings.TrimSpace(string(body))}
		}
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if resp.StatusCode/100 != 2 || out.Status != "ok" {
		return nil, &APIError{StatusCode: resp.StatusCode, Code: out.Code, Message: out.Message}
	}
	return &out, nil
}
