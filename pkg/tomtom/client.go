// Package tomtom is a client for the TomTom Traffic Flow Segment Data API.
package tomtom

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/billboard-signals/internal/fetcher"
	"github.com/sells-group/billboard-signals/internal/resilience"
)

const (
	defaultBaseURL = "https://api.tomtom.com"
	// defaultZoom selects road detail; 10 includes arterial roads.
	defaultZoom = 10
)

// ErrNoSegment is returned when TomTom has no road segment near the point.
var ErrNoSegment = eris.New("tomtom: no road segment near point")

// FlowSegment is the flowSegmentData object of a flow response.
type FlowSegment struct {
	FRC                string  `json:"frc"`
	CurrentSpeed       float64 `json:"currentSpeed"`
	FreeFlowSpeed      float64 `json:"freeFlowSpeed"`
	CurrentTravelTime  int     `json:"currentTravelTime"`
	FreeFlowTravelTime int     `json:"freeFlowTravelTime"`
	Confidence         float64 `json:"confidence"`
	RoadClosure        bool    `json:"roadClosure"`
}

type flowResponse struct {
	FlowSegmentData *FlowSegment `json:"flowSegmentData"`
}

// Client fetches live flow data for the road segment closest to a point.
type Client interface {
	FlowSegment(ctx context.Context, lat, lon float64) (*FlowSegment, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithFetcher overrides the HTTP transport.
func WithFetcher(f fetcher.Fetcher) Option {
	return func(c *httpClient) { c.fetch = f }
}

// WithBreaker sets the circuit breaker guarding the API.
func WithBreaker(b *resilience.Breaker) Option {
	return func(c *httpClient) { c.breaker = b }
}

// WithZoom sets the map zoom level used to pick the segment (0-22).
func WithZoom(z int) Option {
	return func(c *httpClient) {
		if z >= 0 && z <= 22 {
			c.zoom = z
		}
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	zoom    int
	fetch   fetcher.Fetcher
	breaker *resilience.Breaker
}

// NewClient creates a TomTom traffic client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		zoom:    defaultZoom,
	}
	for _, o := range opts {
		o(c)
	}
	if c.fetch == nil {
		c.fetch = fetcher.NewHTTPFetcher(fetcher.HTTPOptions{})
	}
	if c.breaker == nil {
		c.breaker = resilience.NewBreaker("tomtom", resilience.DefaultBreakerConfig())
	}
	return c
}

func (c *httpClient) flowURL(lat, lon float64) string {
	q := url.Values{}
	q.Set("point", strconv.FormatFloat(lat, 'f', 6, 64)+","+strconv.FormatFloat(lon, 'f', 6, 64))
	q.Set("unit", "KMPH")
	q.Set("key", c.apiKey)
	return fmt.Sprintf("%s/traffic/services/4/flowSegmentData/absolute/%d/json?%s", c.baseURL, c.zoom, q.Encode())
}

func (c *httpClient) FlowSegment(ctx context.Context, lat, lon float64) (*FlowSegment, error) {
	if c.apiKey == "" {
		return nil, eris.New("tomtom: api key not configured")
	}

	body, err := resilience.ExecuteVal(ctx, c.breaker, func(ctx context.Context) ([]byte, error) {
		return c.fetch.Get(ctx, c.flowURL(lat, lon))
	})
	if err != nil {
		// TomTom answers 400 when the point is too far from any segment.
		var se *fetcher.StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusBadRequest {
			return nil, ErrNoSegment
		}
		return nil, eris.Wrap(err, "tomtom: flow segment")
	}

	resp, err := fetcher.DecodeJSONObject[flowResponse](body)
	if err != nil {
		return nil, eris.Wrap(err, "tomtom: unmarshal response")
	}
	if resp.FlowSegmentData == nil {
		return nil, ErrNoSegment
	}
	return resp.FlowSegmentData, nil
}
