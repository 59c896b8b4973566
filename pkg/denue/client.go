// Package denue is a client for INEGI's DENUE business directory API
// (Directorio Estadístico Nacional de Unidades Económicas).
package denue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/billboard-signals/internal/fetcher"
	"github.com/sells-group/billboard-signals/internal/resilience"
)

const (
	defaultBaseURL = "https://www.inegi.org.mx/app/api/denue/v1/consulta"
	// MaxRadiusMeters is the largest search radius the API accepts.
	MaxRadiusMeters = 5000
)

// Establishment is one business unit as returned by Buscar.
type Establishment struct {
	ID        string `json:"Id"`
	Name      string `json:"Nombre"`
	LegalName string `json:"Razon_social"`
	Activity  string `json:"Clase_actividad"`
	Stratum   string `json:"Estrato"`
	CLEE      string `json:"CLEE"`
	Street    string `json:"Calle"`
	Colonia   string `json:"Colonia"`
	Latitude  string `json:"Latitud"`
	Longitude string `json:"Longitud"`
}

// SCIAN returns the six-digit activity code embedded in the CLEE key
// (state 2, municipality 3, activity 6, ...), or "" when the key is short.
func (e Establishment) SCIAN() string {
	clee := strings.TrimSpace(e.CLEE)
	if len(clee) < 11 {
		return ""
	}
	return clee[5:11]
}

// Client searches establishments around a point.
type Client interface {
	Search(ctx context.Context, lat, lon float64, radiusMeters int) ([]Establishment, error)
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

type httpClient struct {
	token   string
	baseURL string
	fetch   fetcher.Fetcher
	breaker *resilience.Breaker
}

// NewClient creates a DENUE client authenticated by token.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{token: token, baseURL: defaultBaseURL}
	for _, o := range opts {
		o(c)
	}
	if c.fetch == nil {
		c.fetch = fetcher.NewHTTPFetcher(fetcher.HTTPOptions{})
	}
	if c.breaker == nil {
		c.breaker = resilience.NewBreaker("denue", resilience.DefaultBreakerConfig())
	}
	return c
}

func (c *httpClient) searchURL(lat, lon float64, radius int) string {
	return fmt.Sprintf("%s/Buscar/todos/%s,%s/%d/%s",
		c.baseURL,
		strconv.FormatFloat(lat, 'f', 6, 64),
		strconv.FormatFloat(lon, 'f', 6, 64),
		radius,
		c.token,
	)
}

func (c *httpClient) Search(ctx context.Context, lat, lon float64, radiusMeters int) ([]Establishment, error) {
	if c.token == "" {
		return nil, eris.New("denue: token not configured")
	}
	if radiusMeters <= 0 || radiusMeters > MaxRadiusMeters {
		return nil, eris.Errorf("denue: radius %d outside (0, %d]", radiusMeters, MaxRadiusMeters)
	}

	body, err := resilience.ExecuteVal(ctx, c.breaker, func(ctx context.Context) ([]byte, error) {
		return c.fetch.Get(ctx, c.searchURL(lat, lon, radiusMeters))
	})
	if err != nil {
		return nil, eris.Wrap(err, "denue: search")
	}

	raw, err := fetcher.CollectJSONArray[json.RawMessage](ctx, body)
	if err != nil {
		return nil, eris.Wrap(err, "denue: unmarshal response")
	}
	return decodeEstablishments(raw), nil
}

// decodeEstablishments keeps the object elements of a response; the API
// mixes status strings and nulls into its arrays.
func decodeEstablishments(raw []json.RawMessage) []Establishment {
	out := make([]Establishment, 0, len(raw))
	skipped := 0
	for _, elem := range raw {
		trimmed := bytes.TrimSpace(elem)
		if len(trimmed) == 0 || trimmed[0] != '{' {
			skipped++
			continue
		}
		var e Establishment
		if err := json.Unmarshal(trimmed, &e); err != nil {
			skipped++
			continue
		}
		out = append(out, e)
	}
	if skipped > 0 {
		zap.L().Debug("denue: skipped non-establishment elements", zap.Int("skipped", skipped))
	}
	return out
}
