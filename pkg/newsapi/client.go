// Package newsapi provides a client for the NewsAPI "everything" search endpoint.
package newsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"feed-ai-go/internal/config"
	"feed-ai-go/pkg/log"
)

// Client defines the interface for a news search client.
type Client interface {
	Search(ctx context.Context, q Query) ([]Article, error)
}

// Query describes one keyword search.
type Query struct {
	Keyword  string
	Language string
	SortBy   string
	PageSize int
}

// Source is the publisher of an article.
type Source struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Article is a single search hit.
type Article struct {
	Source      Source `json:"source"`
	Author      string `json:"author"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	PublishedAt string `json:"publishedAt"`
	Content     string `json:"content"`
}

// Text returns the description, falling back to the content.
func (a Article) Text() string {
	if a.Description != "" {
		return a.Description
	}
	return a.Content
}

// Error is returned for every failed search. Retryable marks failures that may
// succeed later: connectivity problems, timeouts, 429 and 5xx responses.
type Error struct {
	StatusCode int
	Code       string
	Message    string
	Retryable  bool
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("newsapi: status %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("newsapi: %s", e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// IsRetryable reports whether err is a retryable news search failure.
func IsRetryable(err error) bool {
	var ne *Error
	return errors.As(err, &ne) && ne.Retryable
}

type httpClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewClient creates a new NewsAPI client from config.
func NewClient(cfg config.NewsAPIConfig) Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &httpClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type searchResponse struct {
	Status       string    `json:"status"`
	Code         string    `json:"code"`
	Message      string    `json:"message"`
	TotalResults int       `json:"totalResults"`
	Articles     []Article `json:"articles"`
}

// Search calls GET /v2/everything.
func (c *httpClient) Search(ctx context.Context, q Query) ([]Article, error) {
	params := url.Values{}
	params.Set("q", q.Keyword)
	if q.Language != "" {
		params.Set("language", q.Language)
	}
	if q.SortBy != "" {
		params.Set("sortBy", q.SortBy)
	}
	if q.PageSize > 0 {
		params.Set("pageSize", strconv.Itoa(q.PageSize))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v2/everything?"+params.Encode(), nil)
	if err != nil {
		return nil, &Error{Message: "failed to create request", Err: err}
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	log.Infof("[NewsAPI] searching keyword=%q language=%s pageSize=%d", q.Keyword, q.Language, q.PageSize)
	resp, err := c.client.Do(req)
	if err != nil {
		log.Errorf("[NewsAPI] request failed, error: %v", err)
		return nil, &Error{Message: "request failed", Retryable: isTransient(err), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, &Error{StatusCode: resp.StatusCode, Message: "failed to read response", Retryable: true, Err: err}
	}

	var sr searchResponse
	decodeErr := json.Unmarshal(body, &sr)

	if resp.StatusCode != http.StatusOK || sr.Status == "error" {
		msg := sr.Message
		if msg == "" {
			msg = resp.Status
		}
		log.Errorf("[NewsAPI] search returned status %d code=%s message=%s", resp.StatusCode, sr.Code, msg)
		return nil, &Error{
			StatusCode: resp.StatusCode,
			Code:       sr.Code,
			Message:    msg,
			Retryable:  resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
		}
	}
	if decodeErr != nil {
		return nil, &Error{StatusCode: resp.StatusCode, Message: "failed to decode response", Err: decodeErr}
	}

	log.Infof("[NewsAPI] keyword=%q returned %d articles (total %d)", q.Keyword, len(sr.Articles), sr.TotalResults)
	return sr.Articles, nil
}

func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	// *url.Error itself implements net.Error, so classify on the wrapped cause
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
