// Package cemaden fetches recent rain-gauge readings from the CEMADEN
// telemetry API.
package cemaden

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/couchcryptid/flood-risk-etl/internal/config"
	"github.com/couchcryptid/flood-risk-etl/internal/domain"
	"github.com/couchcryptid/flood-risk-etl/internal/observability"
)

// ErrNoToken is returned when the token endpoint answers without a token.
var ErrNoToken = errors.New("cemaden: response did not contain a token")

// noResultsMarker is the Info message CEMADEN sends for stations without data.
const noResultsMarker = "Nenhum resultado foi encontrado"

// Client talks to the CEMADEN token and PCD data endpoints.
type Client struct {
	httpClient *http.Client
	tokenURL   string
	dataURL    string
	email      string
	password   string
	uf         string
	rede       string
	sensor     string
	stations   []string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a CEMADEN client for the configured stations.
func NewClient(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.CemadenTimeout},
		tokenURL:   cfg.CemadenTokenURL,
		dataURL:    cfg.CemadenDataURL,
		email:      cfg.CemadenEmail,
		password:   cfg.CemadenPassword,
		uf:         cfg.CemadenUF,
		rede:       cfg.CemadenRede,
		sensor:     cfg.CemadenSensor,
		stations:   cfg.CemadenStations,
		metrics:    metrics,
		logger:     logger,
	}
}

// Token exchanges the account credentials for an access token.
func (c *Client) Token(ctx context.Context) (string, error) {
	body, err := json.Marshal(map[string]string{"email": c.email, "password": c.password})
	if err != nil {
		return "", fmt.Errorf("encode login: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	raw, err := c.do(req, "token")
	if err != nil {
		return "", err
	}

	var resp tokenResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if resp.Token == "" {
		return "", ErrNoToken
	}
	return resp.Token, nil
}

// FetchStation returns the recent readings for one station, converted to
// Recife civil time. A "no results" answer yields no samples and no error.
func (c *Client) FetchStation(ctx context.Context, token, code string) ([]domain.RainfallSample, error) {
	params := url.Values{
		"codestacao": {code},
		"uf":         {c.uf},
		"rede":       {c.rede},
		"sensor":     {c.sensor},
		"formato":    {"JSON"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.dataURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("token", token)

	raw, err := c.do(req, "data")
	if err != nil {
		return nil, fmt.Errorf("station %s: %w", code, err)
	}

	records, err := decodeRecords(raw)
	if err != nil {
		return nil, fmt.Errorf("station %s: %w", code, err)
	}

	samples := make([]domain.RainfallSample, 0, len(records))
	dropped := 0
	for _, rec := range records {
		s, ok := rec.sample()
		if !ok {
			dropped++
			continue
		}
		samples = append(samples, s)
	}
	if dropped > 0 {
		c.metrics.RowsDropped.WithLabelValues("rainfall").Add(float64(dropped))
		c.logger.Warn("dropped unparseable cemaden readings", "station", code, "dropped", dropped)
	}
	if len(samples) == 0 {
		c.logger.Info("no readings for station", "station", code)
	}
	return samples, nil
}

// FetchRainfall obtains a token and then fetches every configured station.
// Station failures are collected; samples from the stations that answered are
// returned alongside the combined error.
func (c *Client) FetchRainfall(ctx context.Context) ([]domain.RainfallSample, error) {
	token, err := c.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("obtain token: %w", err)
	}

	var (
		all  []domain.RainfallSample
		errs *multierror.Error
	)
	for _, code := range c.stations {
		if ctx.Err() != nil {
			errs = multierror.Append(errs, ctx.Err())
			break
		}
		samples, err := c.FetchStation(ctx, token, code)
		if err != nil {
			c.logger.Warn("station fetch failed", "station", code, "error", err)
			errs = multierror.Append(errs, err)
			continue
		}
		all = append(all, samples...)
	}
	c.metrics.SamplesIngested.Add(float64(len(all)))
	return all, errs.ErrorOrNil()
}

func (c *Client) do(req *http.Request, operation string) ([]byte, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.CemadenAPIDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.CemadenRequests.WithLabelValues(operation, "error").Inc()
		return nil, fmt.Errorf("%s request: %w", operation, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.CemadenRequests.WithLabelValues(operation, "error").Inc()
		return nil, fmt.Errorf("read %s response: %w", operation, err)
	}
	if resp.StatusCode != http.StatusOK {
		c.metrics.CemadenRequests.WithLabelValues(operation, "error").Inc()
		return nil, fmt.Errorf("cemaden API error: status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	c.metrics.CemadenRequests.WithLabelValues(operation, "ok").Inc()
	return body, nil
}

// decodeRecords accepts an array of readings, a single reading object, or an
// Info object reporting that nothing was found.
func decodeRecords(raw []byte) ([]record, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	switch raw[0] {
	case '[':
		var recs []record
		if err := json.Unmarshal(raw, &recs); err != nil {
			return nil, fmt.Errorf("decode readings: %w", err)
		}
		return recs, nil
	case '{':
		var rec record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("decode reading: %w", err)
		}
		if strings.Contains(rec.Info, noResultsMarker) {
			return nil, nil
		}
		return []record{rec}, nil
	default:
		return nil, fmt.Errorf("unexpected response body %.40q", raw)
	}
}

// CEMADEN API response types.

type tokenResponse struct {
	Token string `json:"token"`
}

type record struct {
	StationCode string    `json:"codestacao"`
	City        string    `json:"cidade"`
	StationName string    `json:"nome"`
	State       string    `json:"uf"`
	Timestamp   string    `json:"datahora"` // UTC
	Value       flexFloat `json:"valor"`
	Info        string    `json:"Info,omitempty"`
}

var utcLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02 15:04",
}

func (r record) sample() (domain.RainfallSample, bool) {
	if strings.TrimSpace(r.StationName) == "" || !r.Value.valid {
		return domain.RainfallSample{}, false
	}
	ts, ok := parseUTC(r.Timestamp)
	if !ok {
		return domain.RainfallSample{}, false
	}
	return domain.RainfallSample{
		StationCode: strings.TrimSpace(r.StationCode),
		StationName: strings.TrimSpace(r.StationName),
		City:        strings.TrimSpace(r.City),
		State:       strings.TrimSpace(r.State),
		Timestamp:   ts.In(domain.Recife),
		Millimeters: r.Value.value,
	}, true
}

func parseUTC(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range utcLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// flexFloat decodes a reading sent either as a JSON number or as a string.
type flexFloat struct {
	value float64
	valid bool
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*f = flexFloat{}
		return nil
	}
	v, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		*f = flexFloat{}
		return nil
	}
	*f = flexFloat{value: v, valid: true}
	return nil
}
