// Package profile resolves player profile snapshots from the profile service.
package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/squadforge/squadforge/internal/services/matchmaking/domain"
)

// DefaultTimeout bounds one profile lookup round trip.
const DefaultTimeout = 5 * time.Second

// Client fetches profile snapshots over the profile service HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Options tunes optional client behavior; zero values select defaults.
type Options struct {
	HTTPClient *http.Client
	Timeout    time.Duration
}

// NewClient constructs a profile client for the provided base URL.
func NewClient(baseURL string, opts Options) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("profile base url is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse profile base url: %w", err)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &Client{baseURL: baseURL, httpClient: httpClient}, nil
}

type gameStatsPayload struct {
	MatchesPlayed int     `json:"matchesPlayed"`
	Wins          int     `json:"wins"`
	KDRatio       float64 `json:"kdRatio"`
}

type profilePayload struct {
	Username    string                      `json:"username"`
	DisplayName string                      `json:"displayName"`
	AvatarURL   string                      `json:"avatarUrl"`
	GameStats   map[string]gameStatsPayload `json:"gameStats"`
}

// ProfileByID loads one user's profile snapshot. Lookup failures, including
// unknown users, report domain.ErrProfileUnavailable so ticket creation can
// refuse to proceed without a snapshot.
func (c *Client) ProfileByID(ctx context.Context, userID string) (domain.ProfileSnapshot, error) {
	if c == nil || c.httpClient == nil {
		return domain.ProfileSnapshot{}, fmt.Errorf("%w: profile client is not configured", domain.ErrProfileUnavailable)
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.ProfileSnapshot{}, domain.ErrCallerRequired
	}

	endpoint := c.baseURL + "/api/profiles/" + url.PathEscape(userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.ProfileSnapshot{}, fmt.Errorf("build profile request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.ProfileSnapshot{}, fmt.Errorf("%w: %v", domain.ErrProfileUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.ProfileSnapshot{}, fmt.Errorf("%w: profile service returned %d", domain.ErrProfileUnavailable, resp.StatusCode)
	}

	var payload profilePayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return domain.ProfileSnapshot{}, fmt.Errorf("%w: decode profile response: %v", domain.ErrProfileUnavailable, err)
	}

	snapshot := domain.ProfileSnapshot{
		Username:    payload.Username,
		DisplayName: payload.DisplayName,
		AvatarURL:   payload.AvatarURL,
	}
	if len(payload.GameStats) > 0 {
		snapshot.GameStats = make(map[string]domain.GameStats, len(payload.GameStats))
		for game, stats := range payload.GameStats {
			snapshot.GameStats[game] = domain.GameStats{
				MatchesPlayed: stats.MatchesPlayed,
				Wins:          stats.Wins,
				KDRatio:       stats.KDRatio,
			}
		}
	}
	return snapshot, nil
}
