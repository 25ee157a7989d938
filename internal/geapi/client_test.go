package geapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testClient(baseURL string) *Client {
	return NewClient(Options{
		BaseURL:   baseURL,
		UserAgent: "test-agent",
		Timeout:   time.Second,
		RateRPS:   1000,
		RateBurst: 1000,
	}, zerolog.Nop())
}

func TestClientSendsUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{}})
	}))
	defer srv.Close()

	if _, err := testClient(srv.URL).FetchLatest(context.Background()); err != nil {
		t.Fatalf("FetchLatest should succeed: %v", err)
	}
	if gotUA != "test-agent" {
		t.Fatalf("expected User-Agent test-agent, got %q", gotUA)
	}
}

func TestClientRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchLatest(context.Background())
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestFetchLatestParsesSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"4151": map[string]any{"high": 1100, "highTime": 1700000000, "low": 1000, "lowTime": 1700000050},
				"2":    map[string]any{"high": nil, "highTime": nil, "low": 5, "lowTime": 1700000000},
				"abc":  map[string]any{"high": 1, "highTime": 1, "low": 1, "lowTime": 1},
			},
		})
	}))
	defer srv.Close()

	prices, err := testClient(srv.URL).FetchLatest(context.Background())
	if err != nil {
		t.Fatalf("FetchLatest failed: %v", err)
	}
	if len(prices) != 2 {
		t.Fatalf("expected 2 parsed entries, got %d", len(prices))
	}

	whip, ok := prices[4151]
	if !ok {
		t.Fatal("expected item 4151 in snapshot")
	}
	if whip.High == nil || *whip.High != 1100 {
		t.Fatalf("unexpected high for 4151: %+v", whip)
	}
	if whip.LowTime == nil || *whip.LowTime != 1700000050 {
		t.Fatalf("unexpected lowTime for 4151: %+v", whip)
	}

	if partial, ok := prices[2]; !ok || partial.High != nil || partial.Low == nil {
		t.Fatalf("expected one-sided entry for item 2, got %+v", partial)
	}
}

func TestFetchMappingHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "boom"})
	}))
	defer srv.Close()

	if _, err := testClient(srv.URL).FetchMapping(context.Background()); err == nil {
		t.Fatal("HTTP 500 should return an error")
	}
}

func TestFetchTimeseriesQuery(t *testing.T) {
	var gotID, gotStep string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = r.URL.Query().Get("id")
		gotStep = r.URL.Query().Get("timestep")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"timestamp": 1700000000, "avgHighPrice": 1100, "avgLowPrice": 1000, "highPriceVolume": 10, "lowPriceVolume": 20},
			},
		})
	}))
	defer srv.Close()

	points, err := testClient(srv.URL).FetchTimeseries(context.Background(), 4151, "5m")
	if err != nil {
		t.Fatalf("FetchTimeseries failed: %v", err)
	}
	if gotID != "4151" || gotStep != "5m" {
		t.Fatalf("unexpected query: id=%q timestep=%q", gotID, gotStep)
	}
	if len(points) != 1 || points[0].AvgHighPrice == nil || *points[0].AvgHighPrice != 1100 {
		t.Fatalf("unexpected points: %+v", points)
	}
}
