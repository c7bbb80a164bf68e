package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/time/rate"

	"reelqueue/internal/config"
	"reelqueue/internal/queue"
	"reelqueue/internal/services"
)

const (
	listNowPlaying = "now_playing"
	listTopRated   = "top_rated"
	listPopular    = "popular"
)

type listResponse struct {
	Page       int `json:"page"`
	TotalPages int `json:"total_pages"`
	Results    []struct {
		ID int64 `json:"id"`
	} `json:"results"`
}

// Client provides access to the TMDB movie endpoints.
type Client struct {
	apiKey     string
	baseURL    string
	language   string
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      *ttlcache.Cache[int64, *Details]
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRateLimit caps outgoing requests at rps with the given burst. A
// non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithDetailsCache keeps detail responses for ttl. Zero disables the cache.
func WithDetailsCache(ttl time.Duration) Option {
	return func(c *Client) {
		if ttl <= 0 {
			c.cache = nil
			return
		}
		c.cache = ttlcache.New(
			ttlcache.WithTTL[int64, *Details](ttl),
			ttlcache.WithCapacity[int64, *Details](10000),
			ttlcache.WithDisableTouchOnHit[int64, *Details](),
		)
	}
}

// New creates a TMDB client.
func New(apiKey, baseURL, language string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("tmdb api key required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("tmdb base url required")
	}
	client := &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		language:   strings.TrimSpace(language),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// NewFromConfig builds a client from the [tmdb] section.
func NewFromConfig(cfg *config.Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if err := cfg.RequireTMDB(); err != nil {
		return nil, err
	}
	t := cfg.TMDB
	burst := int(t.RequestsPerSecond)
	return New(t.APIKey, t.BaseURL, t.Language,
		WithHTTPClient(&http.Client{Timeout: time.Duration(t.TimeoutSeconds) * time.Second}),
		WithRateLimit(t.RequestsPerSecond, burst),
		WithDetailsCache(time.Duration(t.DetailsCacheSeconds)*time.Second),
	)
}

// GetMovieDetails fetches a movie with keywords and credits appended.
func (c *Client) GetMovieDetails(ctx context.Context, movieID int64) (*queue.Movie, error) {
	details, err := c.Details(ctx, movieID)
	if err != nil {
		return nil, err
	}
	return details.Movie(), nil
}

// Details fetches the raw details payload, consulting the cache first.
func (c *Client) Details(ctx context.Context, movieID int64) (*Details, error) {
	if movieID <= 0 {
		return nil, services.Wrap(services.ErrValidation, "tmdb", "details", "movie id must be positive", nil)
	}
	if c.cache != nil {
		if item := c.cache.Get(movieID); item != nil {
			return item.Value(), nil
		}
	}
	params := url.Values{}
	params.Set("append_to_response", "keywords,credits")
	var payload Details
	if err := c.get(ctx, fmt.Sprintf("/movie/%d", movieID), params, "movie details", &payload); err != nil {
		return nil, err
	}
	if payload.ID == 0 {
		payload.ID = movieID
	}
	if c.cache != nil {
		c.cache.Set(movieID, &payload, ttlcache.DefaultTTL)
	}
	return &payload, nil
}

// NowPlayingIDs returns the ids on one page of the now playing listing.
func (c *Client) NowPlayingIDs(ctx context.Context, page int) ([]int64, error) {
	return c.listIDs(ctx, listNowPlaying, page)
}

// TopRatedIDs returns the ids on one page of the top rated listing.
func (c *Client) TopRatedIDs(ctx context.Context, page int) ([]int64, error) {
	return c.listIDs(ctx, listTopRated, page)
}

// PopularIDs returns the ids on one page of the popular listing.
func (c *Client) PopularIDs(ctx context.Context, page int) ([]int64, error) {
	return c.listIDs(ctx, listPopular, page)
}

func (c *Client) listIDs(ctx context.Context, list string, page int) ([]int64, error) {
	if page < 1 {
		page = 1
	}
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	var payload listResponse
	if err := c.get(ctx, "/movie/"+list, params, list+" listing", &payload); err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(payload.Results))
	for _, r := range payload.Results {
		if r.ID > 0 {
			ids = append(ids, r.ID)
		}
	}
	return ids, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, what string, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("tmdb rate limit wait: %w", err)
		}
	}
	endpoint, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("parse tmdb url: %w", err)
	}
	if params == nil {
		params = url.Values{}
	}
	bearer := isBearerToken(c.apiKey)
	if !bearer {
		params.Set("api_key", c.apiKey)
	}
	if c.language != "" {
		params.Set("language", c.language)
	}
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if bearer {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return services.Wrap(services.ErrTimeout, "tmdb", what, fmt.Sprintf("latency=%v", latency), err)
		}
		return services.Wrap(services.ErrTransient, "tmdb", what, fmt.Sprintf("execute request (latency=%v)", latency), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return services.Wrap(services.ErrNotFound, "tmdb", what, fmt.Sprintf("returned 404 (latency=%v)", latency), nil)
	case resp.StatusCode == http.StatusUnauthorized:
		return services.Wrap(services.ErrConfiguration, "tmdb", what, fmt.Sprintf("returned 401, check tmdb.api_key (latency=%v)", latency), nil)
	case resp.StatusCode != http.StatusOK:
		return services.Wrap(services.ErrTransient, "tmdb", what, fmt.Sprintf("returned %d (latency=%v)", resp.StatusCode, latency), nil)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return services.Wrap(services.ErrExternalService, "tmdb", what, "decode response", err)
	}
	return nil
}

// v4 read access tokens are JWTs; v3 keys are 32 hex characters.
func isBearerToken(key string) bool {
	return strings.HasPrefix(key, "eyJ")
}
