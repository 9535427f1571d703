package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"portalrecruit/ingestion/internal/config"
	"portalrecruit/ingestion/internal/envelope"
	"portalrecruit/ingestion/internal/metrics"

	"github.com/rs/zerolog/log"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 8

	// TeamsPageSize is the take used for the teams endpoint.
	TeamsPageSize = 500
	// GamesPageSize is the take used when paging a team's games.
	GamesPageSize = 100
	// StatsPageSize is the take used when paging play-type stat reports.
	StatsPageSize = 512
)

// ResponseCache stores raw response bodies of slowly changing endpoints.
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CacheTTLs configures how long each cacheable endpoint is kept. A zero TTL
// disables caching for that endpoint.
type CacheTTLs struct {
	Seasons time.Duration
	Teams   time.Duration
	Rosters time.Duration
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
	Throttle   *Throttle
	HTTPClient *http.Client
	Cache      ResponseCache
	CacheTTLs  CacheTTLs

	// Sleep replaces the backoff sleeper; tests use it to avoid real waits.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Client is the Synergy basketball API client
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	throttle   *Throttle
	maxRetries int
	cache      ResponseCache
	ttls       CacheTTLs
	sleep      func(ctx context.Context, d time.Duration) error

	mu         sync.Mutex
	lastStatus int
	lastError  string
}

// NewClient creates a new Synergy API client. An empty API key is a
// configuration error.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, &config.ConfigurationError{Field: "SYNERGY_API_KEY", Reason: "is required"}
	}
	if opts.BaseURL == "" {
		return nil, &config.ConfigurationError{Field: "SYNERGY_BASE_URL", Reason: "is required"}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	throttle := opts.Throttle
	if throttle == nil {
		throttle = NewThrottle(DefaultThrottleConfig())
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		httpClient: httpClient,
		throttle:   throttle,
		maxRetries: maxRetries,
		cache:      opts.Cache,
		ttls:       opts.CacheTTLs,
		sleep:      sleep,
	}, nil
}

// NewClientFromConfig builds a client and its throttle from application config.
func NewClientFromConfig(cfg *config.Config, cache ResponseCache) (*Client, error) {
	throttle := NewThrottle(ThrottleConfig{
		Base:          cfg.ThrottleBase,
		Floor:         cfg.ThrottleFloor,
		Ceiling:       cfg.ThrottleCeiling,
		Penalty:       750 * time.Millisecond,
		Decay:         0.95,
		Cooldown:      cfg.ThrottleCooldown,
		CooldownEvery: cfg.ThrottleCooldownAt,
	})

	opts := Options{
		BaseURL:    cfg.SynergyBaseURL,
		APIKey:     cfg.SynergyAPIKey,
		Timeout:    cfg.SynergyTimeout,
		MaxRetries: cfg.MaxRetries,
		Throttle:   throttle,
		Cache:      cache,
		CacheTTLs: CacheTTLs{
			Seasons: time.Duration(cfg.CacheTTLSeasons) * time.Second,
			Teams:   time.Duration(cfg.CacheTTLTeams) * time.Second,
			Rosters: time.Duration(cfg.CacheTTLRosters) * time.Second,
		},
	}
	return NewClient(opts)
}

// Throttle returns the shared throttle.
func (c *Client) Throttle() *Throttle {
	return c.throttle
}

// LastStatus returns the HTTP status of the most recent response, or 0 when
// the last attempt never got one.
func (c *Client) LastStatus() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastStatus
}

// LastError returns the message of the most recent failure, or "".
func (c *Client) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastError
}

func (c *Client) setLast(status int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastStatus = status
	if err != nil {
		c.lastError = err.Error()
	} else {
		c.lastError = ""
	}
}

// get performs a throttled GET with the adaptive retry policy:
//   - 429 honours a numeric Retry-After, else min(90s, 3s*2^n) + 0.7s*n,
//     and widens the throttle
//   - 5xx and network errors wait min(45s, 3s + 3s*n)
//   - any other 4xx is terminal
func (c *Client) get(ctx context.Context, name, path string, params url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var lastErr *APIError
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		cooldown, err := c.throttle.Wait(ctx)
		if err != nil {
			return nil, err
		}
		if cooldown > 0 {
			if err := c.sleep(ctx, cooldown); err != nil {
				return nil, err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		// Add headers
		req.Header.Set("x-api-key", c.apiKey)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Content-Type", "application/json")

		log.Debug().
			Str("url", u).
			Int("attempt", attempt+1).
			Msg("Making API request")

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			metrics.RecordAPICall(name, "network_error", time.Since(start).Seconds())
			lastErr = &APIError{Kind: KindNetworkError, Endpoint: path, Err: err}
			c.setLast(0, lastErr)
			if err := c.backoff(ctx, attempt, lastErr, serverBackoff(attempt)); err != nil {
				return nil, err
			}
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		status := resp.StatusCode
		metrics.RecordAPICall(name, strconv.Itoa(status), time.Since(start).Seconds())

		switch {
		case status >= 200 && status < 300:
			if readErr != nil {
				lastErr = &APIError{Kind: KindNetworkError, Status: status, Endpoint: path, Err: readErr}
				c.setLast(status, lastErr)
				if err := c.backoff(ctx, attempt, lastErr, serverBackoff(attempt)); err != nil {
					return nil, err
				}
				continue
			}
			c.setLast(status, nil)
			c.throttle.Relax()
			log.Debug().
				Str("url", u).
				Int("status", status).
				Int("size", len(body)).
				Msg("API request successful")
			return body, nil

		case status == http.StatusTooManyRequests:
			interval := c.throttle.Penalize()
			metrics.RecordRateLimit()
			lastErr = &APIError{Kind: KindRateLimited, Status: status, Endpoint: path}
			c.setLast(status, lastErr)
			wait := rateLimitBackoff(attempt, resp.Header.Get("Retry-After"))
			log.Warn().
				Str("url", u).
				Int("attempt", attempt+1).
				Dur("wait", wait).
				Dur("interval", interval).
				Msg("Rate limited, pausing")
			if err := c.backoff(ctx, attempt, lastErr, wait); err != nil {
				return nil, err
			}

		case status >= 500:
			lastErr = &APIError{Kind: KindServerError, Status: status, Endpoint: path, Err: fmt.Errorf("%s", snippet(body))}
			c.setLast(status, lastErr)
			log.Warn().
				Str("url", u).
				Int("status", status).
				Int("attempt", attempt+1).
				Msg("Received server error, will retry")
			if err := c.backoff(ctx, attempt, lastErr, serverBackoff(attempt)); err != nil {
				return nil, err
			}

		default:
			// Don't retry auth, not-found or other client errors
			apiErr := &APIError{Kind: KindAuthOrNotFound, Status: status, Endpoint: path, Err: fmt.Errorf("%s", snippet(body))}
			c.setLast(status, apiErr)
			metrics.RecordError("client", apiErr.Kind.String())
			log.Warn().
				Str("url", u).
				Int("status", status).
				Msg("API request rejected")
			return nil, apiErr
		}
	}

	exhausted := &APIError{Kind: KindRetriesExhausted, Endpoint: path}
	if lastErr != nil {
		exhausted.Status = lastErr.Status
		exhausted.Err = lastErr
	}
	c.setLast(exhausted.Status, exhausted)
	metrics.RecordError("client", exhausted.Kind.String())
	log.Error().
		Str("url", u).
		Int("attempts", c.maxRetries).
		Msg("API request failed after retries")
	return nil, exhausted
}

// backoff sleeps before the next attempt; the final attempt does not wait.
func (c *Client) backoff(ctx context.Context, attempt int, cause *APIError, wait time.Duration) error {
	metrics.RecordRetry(cause.Kind.String())
	if attempt >= c.maxRetries-1 {
		return nil
	}
	return c.sleep(ctx, wait)
}

// rateLimitBackoff returns the wait after a 429.
func rateLimitBackoff(attempt int, retryAfter string) time.Duration {
	if secs, err := strconv.Atoi(strings.TrimSpace(retryAfter)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	exp := min(90*time.Second, 3*time.Second*time.Duration(1<<uint(min(attempt, 10))))
	return exp + time.Duration(attempt)*700*time.Millisecond
}

// serverBackoff returns the wait after a 5xx or network failure.
func serverBackoff(attempt int) time.Duration {
	return min(45*time.Second, 3*time.Second+time.Duration(attempt)*3*time.Second)
}

func snippet(body []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		return s[:limit]
	}
	return s
}

// cached wraps get with the response cache for slowly changing endpoints.
func (c *Client) cached(ctx context.Context, name, path string, params url.Values, ttl time.Duration) ([]byte, error) {
	if c.cache == nil || ttl <= 0 {
		return c.get(ctx, name, path, params)
	}

	key := "synergy:" + path
	if len(params) > 0 {
		key += "?" + params.Encode()
	}

	if body, ok, err := c.cache.Get(ctx, key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Cache read failed")
	} else if ok {
		metrics.RecordCacheHit()
		return body, nil
	}
	metrics.RecordCacheMiss()

	body, err := c.get(ctx, name, path, params)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, key, body, ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Cache write failed")
	}
	return body, nil
}

func records(name string, body []byte) []envelope.Record {
	return page(name, body).Records
}

// page unwraps a response body. Entries keeps the count the upstream
// sent so a full page with malformed entries is still seen as full.
func page(name string, body []byte) envelope.Page {
	recs, dropped := envelope.Unwrap(body)
	if dropped > 0 {
		metrics.RecordDropped(name, dropped)
		log.Debug().
			Str("endpoint", name).
			Int("dropped", dropped).
			Msg("Dropped malformed entries")
	}
	return envelope.Page{Records: recs, Entries: len(recs) + dropped}
}

// Seasons fetches the seasons visible to the API key
func (c *Client) Seasons(ctx context.Context, league string) ([]envelope.Record, error) {
	path := fmt.Sprintf("/%s/seasons", url.PathEscape(league))
	body, err := c.cached(ctx, "seasons", path, nil, c.ttls.Seasons)
	if err != nil {
		return nil, err
	}
	return records("seasons", body), nil
}

// Teams fetches the teams of a season
func (c *Client) Teams(ctx context.Context, league, seasonID string) ([]envelope.Record, error) {
	path := fmt.Sprintf("/%s/teams", url.PathEscape(league))
	params := url.Values{}
	params.Set("seasonId", seasonID)
	params.Set("take", strconv.Itoa(TeamsPageSize))

	body, err := c.cached(ctx, "teams", path, params, c.ttls.Teams)
	if err != nil {
		return nil, err
	}
	return records("teams", body), nil
}

// Games fetches one page of a team's games in a season
func (c *Client) Games(ctx context.Context, league, seasonID, teamID string, take, skip int) (envelope.Page, error) {
	path := fmt.Sprintf("/%s/games", url.PathEscape(league))
	params := url.Values{}
	params.Set("seasonId", seasonID)
	params.Set("take", strconv.Itoa(take))
	params.Set("skip", strconv.Itoa(skip))
	if teamID != "" {
		params.Set("teamId", teamID)
	}

	body, err := c.get(ctx, "games", path, params)
	if err != nil {
		return envelope.Page{}, err
	}
	return page("games", body), nil
}

// GameEvents fetches the play-by-play events of a game
func (c *Client) GameEvents(ctx context.Context, league, gameID string) ([]envelope.Record, error) {
	path := fmt.Sprintf("/%s/games/%s/events", url.PathEscape(league), url.PathEscape(gameID))
	body, err := c.get(ctx, "game_events", path, nil)
	if err != nil {
		return nil, err
	}
	return records("game_events", body), nil
}

// TeamPlayers fetches a team's roster
func (c *Client) TeamPlayers(ctx context.Context, league, teamID string) ([]envelope.Record, error) {
	path := fmt.Sprintf("/%s/teams/%s/players", url.PathEscape(league), url.PathEscape(teamID))
	body, err := c.cached(ctx, "team_players", path, nil, c.ttls.Rosters)
	if err != nil {
		return nil, err
	}
	return records("team_players", body), nil
}

// PlayerPlayTypeStats fetches one page of the per-player play-type report
func (c *Client) PlayerPlayTypeStats(ctx context.Context, league, seasonID, playType, teamID string, take, skip int) (envelope.Page, error) {
	path := fmt.Sprintf("/%s/seasons/%s/events/reports/playerplaytypestats", url.PathEscape(league), url.PathEscape(seasonID))
	params := url.Values{}
	params.Set("playType", playType)
	params.Set("take", strconv.Itoa(take))
	params.Set("skip", strconv.Itoa(skip))
	if teamID != "" {
		params.Set("teamId", teamID)
	}

	body, err := c.get(ctx, "player_playtype_stats", path, params)
	if err != nil {
		return envelope.Page{}, err
	}
	return page("player_playtype_stats", body), nil
}
