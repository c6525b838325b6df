// Package oddsfeed fetches match context, bookmaker prices and settled results
// from the upstream ingestion and odds services.
package oddsfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/matchedge/internal/config"
	"github.com/yourusername/matchedge/internal/models"
)

// Client talks to the odds and match data API.
type Client struct {
	http    *RateLimitedHTTPClient
	baseURL string
	apiKey  string
	log     *logrus.Entry
}

// OddsSnapshot is the provider payload for one match's prices.
type OddsSnapshot struct {
	MatchID    string               `json:"match_id"`
	Bookmakers models.BookmakerOdds `json:"bookmakers"`
	Closing    *models.OutcomeOdds  `json:"closing,omitempty"`
	CapturedAt time.Time            `json:"captured_at"`
}

// NewClient creates a client from configuration.
func NewClient(cfg config.OddsFeedConfig, log *logrus.Logger) *Client {
	httpCfg := DefaultHTTPClientConfig()
	if cfg.TimeoutSeconds > 0 {
		httpCfg.Timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	if cfg.MaxRetries > 0 {
		httpCfg.MaxRetries = cfg.MaxRetries
	}
	if cfg.RequestsPerSecond > 0 {
		httpCfg.RateLimit = cfg.RequestsPerSecond
	}

	return NewClientWithHTTP(NewRateLimitedHTTPClient(httpCfg, log), cfg.BaseURL, cfg.APIKey, log)
}

// NewClientWithHTTP wraps an existing HTTP client.
func NewClientWithHTTP(httpClient *RateLimitedHTTPClient, baseURL, apiKey string, log *logrus.Logger) *Client {
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		log:     log.WithField("component", "oddsfeed"),
	}
}

// FetchMatchContext retrieves the raw context of an upcoming match.
func (c *Client) FetchMatchContext(ctx context.Context, matchID string) (*models.RawMatchContext, error) {
	var out models.RawMatchContext
	if err := c.getJSON(ctx, "/matches/"+url.PathEscape(matchID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchOdds retrieves current bookmaker prices and, once known, closing odds.
func (c *Client) FetchOdds(ctx context.Context, matchID string) (*OddsSnapshot, error) {
	var out OddsSnapshot
	if err := c.getJSON(ctx, "/matches/"+url.PathEscape(matchID)+"/odds", nil, &out); err != nil {
		return nil, err
	}
	if out.MatchID == "" {
		out.MatchID = matchID
	}
	return &out, nil
}

// FetchResults retrieves settled matches of a league kicked off in [start, end).
func (c *Client) FetchResults(ctx context.Context, league string, start, end time.Time) ([]*models.HistoricalMatch, error) {
	query := url.Values{}
	query.Set("league", league)
	query.Set("from", start.UTC().Format(time.RFC3339))
	query.Set("to", end.UTC().Format(time.RFC3339))

	var out []*models.HistoricalMatch
	if err := c.getJSON(ctx, "/results", query, &out); err != nil {
		return nil, err
	}

	c.log.WithFields(logrus.Fields{
		"league":  league,
		"results": len(out),
	}).Debug("Fetched settled results")
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, dest interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return newFeedError(path, CodeNetwork, "failed to create request", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return newFeedError(path, CodeNetwork, "request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return newFeedError(path, CodeUnauthorized, "invalid API key", nil)
	case resp.StatusCode == http.StatusNotFound:
		return newFeedError(path, CodeNotFound, "resource not found", ErrNotFound)
	case resp.StatusCode == http.StatusTooManyRequests:
		return newFeedError(path, CodeRateLimited, "rate limit exceeded", nil)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return newFeedError(path, CodeServer, fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, string(body)), nil)
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return newFeedError(path, CodeInvalidData, "failed to parse response", err)
	}
	return nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	return c.http.Close()
}
