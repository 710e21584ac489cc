package backend

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/couchcryptid/fire-timeline-service/internal/config"
	"github.com/couchcryptid/fire-timeline-service/internal/domain"
	"github.com/couchcryptid/fire-timeline-service/internal/observability"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

const (
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

func testClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		limiter:    rate.NewLimiter(rate.Inf, 1),
		metrics:    observability.NewMetricsForTesting(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set(headerContentType, contentTypeJSON)
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestClient_Fires(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/fires", r.URL.Path)
		assert.Equal(t, "n", r.URL.Query().Get("min_conf"))
		assert.Equal(t, contentTypeJSON, r.Header.Get("Accept"))
		_, err := uuid.Parse(r.Header.Get("X-Request-ID"))
		assert.NoError(t, err)

		_, _ = io.WriteString(w, `{"type":"FeatureCollection","features":[
		  {"type":"Feature","geometry":{"type":"Point","coordinates":[-7.4,42.1]},
		   "properties":{"uid":"a","confidence":"h","frp":3.5,"ts_utc":"2024-01-01T10:00:00+00:00"}}]}`)
	}))
	defer srv.Close()

	fc, err := testClient(srv.URL).Fires(context.Background(), domain.ConfidenceNominal)
	require.NoError(t, err)

	require.Len(t, fc.Features, 1)
	f := fc.Features[0]
	assert.Equal(t, "a", f.Properties.UID)
	assert.Equal(t, domain.ConfidenceHigh, f.Properties.Confidence)
	assert.Equal(t, []float64{-7.4, 42.1}, f.Geometry.Coordinates)
}

func TestClient_Fires_NoFilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.RawQuery)
		writeJSON(t, w, domain.FeatureCollection{Type: "FeatureCollection"})
	}))
	defer srv.Close()

	fc, err := testClient(srv.URL).Fires(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, fc.Features)
}

func TestClient_Health(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		_, _ = io.WriteString(w, `{"total":12,"last_fetch":"2024-01-03T10:00:00+00:00","last_error":null,"config_dataset":"VIIRS_SNPP_NRT"}`)
	}))
	defer srv.Close()

	h, err := testClient(srv.URL).Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, h.Total)
	assert.Equal(t, "2024-01-03T10:00:00+00:00", h.LastFetch)
	assert.Empty(t, h.LastError)
	assert.Equal(t, "VIIRS_SNPP_NRT", h.Dataset)
}

func TestClient_FetchNow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/admin/fetch_now", r.URL.Path)
		writeJSON(t, w, map[string]any{"status": "ok", "added": 17})
	}))
	defer srv.Close()

	added, err := testClient(srv.URL).FetchNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 17, added)
}

func TestClient_HistoryDaily(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/history_daily", r.URL.Path)
		assert.Equal(t, "2024-01-01", r.URL.Query().Get("start_date"))
		assert.Equal(t, "2024-01-07", r.URL.Query().Get("end_date"))
		assert.Equal(t, "h", r.URL.Query().Get("min_conf"))
		writeJSON(t, w, domain.HistoryResponse{
			Days: []domain.HistoryDay{
				{Date: "2024-01-02", Count: 1, Features: []domain.Feature{{Properties: domain.FeatureProperties{UID: "x", TSUTC: "2024-01-02T00:00:00Z"}}}},
			},
			Total:        1,
			FetchedExtra: true,
		})
	}))
	defer srv.Close()

	h, err := testClient(srv.URL).HistoryDaily(context.Background(), "2024-01-01", "2024-01-07", domain.ConfidenceHigh)
	require.NoError(t, err)
	assert.Equal(t, 1, h.Total)
	assert.True(t, h.FetchedExtra)
	require.Len(t, h.Features(), 1)
}

func TestClient_Weather(t *testing.T) {
	t.Run("live", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, `{"provider":"open-meteo","windspeed":14.2,"winddirection":250,"time":"2024-01-03T15:00","source":"open-meteo"}`)
		}))
		defer srv.Close()

		rep, err := testClient(srv.URL).Weather(context.Background())
		require.NoError(t, err)
		require.NotNil(t, rep.WindSpeed)
		assert.InDelta(t, 14.2, *rep.WindSpeed, 1e-9)
		assert.Equal(t, "open-meteo", rep.Provider)
		assert.Empty(t, rep.Error)
	})

	t.Run("provider error body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, `{"error":"Open-Meteo HTTP 500"}`)
		}))
		defer srv.Close()

		rep, err := testClient(srv.URL).Weather(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "Open-Meteo HTTP 500", rep.Error)
	})
}

func TestClient_StatusErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"fastapi detail", http.StatusBadRequest, `{"detail":"Máximo 7 días"}`, "Máximo 7 días"},
		{"plain text", http.StatusBadGateway, "upstream down\n", "upstream down"},
		{"server error", http.StatusInternalServerError, `{"detail":"fetch error: boom"}`, "fetch error: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := testClient(srv.URL).Fires(context.Background(), "")
			require.Error(t, err)

			var se *StatusError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.status, se.StatusCode)
			assert.Equal(t, "/fires", se.Endpoint)
			assert.Equal(t, tt.wantMsg, se.Message)
		})
	}
}

func TestClient_MalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"features": [`)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Fires(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode /fires response")
}

func TestClient_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := testClient(url).Health(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GET /health")
}

func TestClient_RateLimitWaitCanceled(t *testing.T) {
	c := testClient("http://127.0.0.1:1")
	c.limiter = rate.NewLimiter(rate.Every(time.Hour), 1)
	require.True(t, c.limiter.Allow())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Health(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit wait canceled")
}

func TestNewClient(t *testing.T) {
	cfg := &config.Config{
		BackendURL:       "http://backend:8089/",
		BackendTimeout:   3 * time.Second,
		BackendRateLimit: 2,
		BackendRateBurst: 4,
	}

	c := NewClient(cfg, observability.NewMetricsForTesting(), slog.Default())

	assert.Equal(t, "http://backend:8089", c.baseURL)
	assert.Equal(t, 3*time.Second, c.httpClient.Timeout)
	assert.Equal(t, 4, c.limiter.Burst())
	assert.InDelta(t, 2, float64(c.limiter.Limit()), 0)
}
