package geocode

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

	"backend-nlmap/internal/logging"
	"backend-nlmap/internal/shared/geo"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	SuggestLimit = 5
	LookupLimit  = 1

	regionSuffix = ", Newfoundland and Labrador"
	cacheTTL     = 10 * time.Minute
)

var ErrNoMatch = errors.New("no matching place")

type Client struct {
	baseURL   string
	userAgent string
	bounds    geo.Bounds
	http      *http.Client
	cache     *redis.Client
	logger    *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithCache(rdb *redis.Client) Option {
	return func(c *Client) { c.cache = rdb }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func NewClient(baseURL, userAgent string, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		bounds:    geo.NLBounds,
		http:      &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.OrNop(c.logger)
	return c
}

// Search runs one bounded place search. The caller decides how to treat
// errors; Suggest and Lookup below are the two policies the app uses.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]Place, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Place{}, nil
	}

	key := cacheKey(query, limit)
	if places, ok := c.cached(ctx, key); ok {
		return places, nil
	}

	params := url.Values{}
	params.Set("format", "json")
	params.Set("limit", strconv.Itoa(limit))
	params.Set("bounded", "1")
	params.Set("viewbox", c.bounds.Viewbox())
	params.Set("q", query+regionSuffix)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocoder returned %s", resp.Status)
	}

	var raw []nominatimPlace
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}

	places := make([]Place, 0, len(raw))
	for _, r := range raw {
		lat, err := strconv.ParseFloat(r.Lat, 64)
		if err != nil {
			continue
		}
		lng, err := strconv.ParseFloat(r.Lon, 64)
		if err != nil {
			continue
		}
		places = append(places, Place{ID: r.PlaceID, Label: r.DisplayName, Lat: lat, Lng: lng})
	}

	c.store(ctx, key, places)
	return places, nil
}

// Suggest returns up to SuggestLimit places; any failure yields an empty list.
func (c *Client) Suggest(ctx context.Context, query string) []Place {
	places, err := c.Search(ctx, query, SuggestLimit)
	if err != nil {
		c.logger.Warn("geocoder suggest failed", zap.String("query", query), zap.Error(err))
		return []Place{}
	}
	return places
}

// Lookup resolves a submitted query to its single best place.
func (c *Client) Lookup(ctx context.Context, query string) (Place, error) {
	places, err := c.Search(ctx, query, LookupLimit)
	if err != nil {
		return Place{}, err
	}
	if len(places) == 0 {
		return Place{}, ErrNoMatch
	}
	return places[0], nil
}

func (c *Client) cached(ctx context.Context, key string) ([]Place, bool) {
	if c.cache == nil {
		return nil, false
	}
	data, err := c.cache.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("geocoder cache read failed", zap.Error(err))
		}
		return nil, false
	}
	var places []Place
	if err := json.Unmarshal(data, &places); err != nil {
		return nil, false
	}
	return places, true
}

func (c *Client) store(ctx context.Context, key string, places []Place) {
	if c.cache == nil {
		return
	}
	data, err := json.Marshal(places)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, data, cacheTTL).Err(); err != nil {
		c.logger.Warn("geocoder cache write failed", zap.Error(err))
	}
}

func cacheKey(query string, limit int) string {
	return "geocode:" + strconv.Itoa(limit) + ":" + strings.ToLower(query)
}
