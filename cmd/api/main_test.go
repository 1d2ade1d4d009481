package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	appconfig "github.com/wolfman30/clinic-scheduler/internal/config"
	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

func TestSetupMetricsExposesMetrics(t *testing.T) {
	handler, metrics := setupMetrics()
	if handler == nil || metrics == nil {
		t.Fatalf("expected non-nil handler and metrics")
	}

	metrics.ObserveBooking("booked")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "clinic_scheduling_booking_total") {
		t.Fatalf("expected booking counter to be exported")
	}
}

func testConfig(upstreamURL string) *appconfig.Config {
	return &appconfig.Config{
		LogLevel:         "error",
		EkaBaseURL:       upstreamURL,
		EkaAccessToken:   "static-token",
		BookingUTCOffset: "+05:30",
		DedupBackend:     "memory",
		DedupCapacity:    20,
	}
}

func TestBuildHandlerServesScheduling(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer static-token" {
			t.Errorf("unexpected auth header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"schedule":{"c-1":[{"service_name":"Consultation","slots":[
			{"s":"2025-01-10T09:00:00+05:30","e":"2025-01-10T09:15:00+05:30","available":true}
		]}]}}}`))
	}))
	defer upstream.Close()

	metricsHandler, m := setupMetrics()
	handler, cleanup, err := buildHandler(context.Background(), testConfig(upstream.URL), logging.New("error"), m, metricsHandler)
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	defer cleanup()

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/doctors/do1/clinics/c-1/slots?date=2025-01-10", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var summary struct {
		AllSlots []string `json:"all_slots"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(summary.AllSlots) != 1 || summary.AllSlots[0] != "09:00" {
		t.Fatalf("unexpected slots %v", summary.AllSlots)
	}
}

func TestBuildHandlerRejectsBadConfig(t *testing.T) {
	metricsHandler, m := setupMetrics()
	logger := logging.New("error")

	cfg := testConfig("https://api.example")
	cfg.BookingUTCOffset = "IST"
	if _, _, err := buildHandler(context.Background(), cfg, logger, m, metricsHandler); err == nil {
		t.Fatalf("expected error for bad offset")
	}

	cfg = testConfig("https://api.example")
	cfg.EkaAccessToken = ""
	if _, _, err := buildHandler(context.Background(), cfg, logger, m, metricsHandler); err == nil {
		t.Fatalf("expected error without upstream credentials")
	}

	cfg = testConfig("https://api.example")
	cfg.DedupBackend = "postgres"
	if _, _, err := buildHandler(context.Background(), cfg, logger, m, metricsHandler); err == nil {
		t.Fatalf("expected error for postgres backend without DATABASE_URL")
	}
}
