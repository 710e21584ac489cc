package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/fire-timeline-service/internal/config"
	"github.com/couchcryptid/fire-timeline-service/internal/domain"
	"github.com/couchcryptid/fire-timeline-service/internal/observability"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// maxErrorBody bounds how much of a failed response is kept in the error.
const maxErrorBody = 512

// Client talks to the fire backend over HTTP+JSON. All calls share one rate limiter.
// It implements playback.Backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a backend client from the service configuration.
func NewClient(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BackendURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.BackendTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.BackendRateLimit), cfg.BackendRateBurst),
		metrics: metrics,
		logger:  logger,
	}
}

// StatusError is returned for non-2xx backend responses.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend %s: status %d: %s", e.Endpoint, e.StatusCode, e.Message)
}

// Health calls GET /health.
func (c *Client) Health(ctx context.Context) (domain.HealthReport, error) {
	var out domain.HealthReport
	err := c.doJSON(ctx, http.MethodGet, "/health", nil, &out)
	return out, err
}

// Fires calls GET /fires, optionally filtered by minimum confidence.
func (c *Client) Fires(ctx context.Context, minConf domain.Confidence) (domain.FeatureCollection, error) {
	q := url.Values{}
	if minConf != "" {
		q.Set("min_conf", string(minConf))
	}
	var out domain.FeatureCollection
	err := c.doJSON(ctx, http.MethodGet, "/fires", q, &out)
	return out, err
}

// FetchNow calls POST /admin/fetch_now and returns the number of records added.
func (c *Client) FetchNow(ctx context.Context) (int, error) {
	var out struct {
		Status string `json:"status"`
		Added  int    `json:"added"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/admin/fetch_now", nil, &out); err != nil {
		return 0, err
	}
	return out.Added, nil
}

// HistoryDaily calls GET /history_daily for an inclusive UTC day range.
func (c *Client) HistoryDaily(ctx context.Context, start, end string, minConf domain.Confidence) (domain.HistoryResponse, error) {
	q := url.Values{
		"start_date": {start},
		"end_date":   {end},
	}
	if minConf != "" {
		q.Set("min_conf", string(minConf))
	}
	var out domain.HistoryResponse
	err := c.doJSON(ctx, http.MethodGet, "/history_daily", q, &out)
	return out, err
}

// Weather calls GET /weather. A provider failure comes back as a report
// with Error set, not as a transport error.
func (c *Client) Weather(ctx context.Context) (domain.WeatherReport, error) {
	var out domain.WeatherReport
	err := c.doJSON(ctx, http.MethodGet, "/weather", nil, &out)
	return out, err
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait canceled: %w", err)
	}

	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.BackendDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Debug("backend error response",
			"endpoint", path,
			"status", resp.StatusCode,
			"request_id", requestID,
		)
		return &StatusError{Endpoint: path, StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// errorMessage extracts FastAPI's {"detail": ...} when present.
func errorMessage(body []byte) string {
	var detail struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &detail); err == nil && detail.Detail != "" {
		return detail.Detail
	}
	return strings.TrimSpace(string(body))
}
