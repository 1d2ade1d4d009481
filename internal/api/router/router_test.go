package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wolfman30/clinic-scheduler/internal/availability"
	"github.com/wolfman30/clinic-scheduler/internal/http/handlers"
	"github.com/wolfman30/clinic-scheduler/internal/schedule"
	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

type fakeAvailability struct{}

func (fakeAvailability) GetAvailableDates(ctx context.Context, doctorID, clinicID, start, end string) (schedule.DateAvailability, error) {
	return schedule.DateAvailability{AvailableDates: []string{start}, DateRange: schedule.DateRange{Start: start, End: end}}, nil
}

func (fakeAvailability) GetAvailableSlots(ctx context.Context, doctorID, clinicID, date string) (schedule.DaySummary, error) {
	return schedule.DaySummary{Date: date, DoctorID: doctorID, ClinicID: clinicID, AllSlots: []string{"09:00"}}, nil
}

func (fakeAvailability) Resolve(ctx context.Context, req availability.ResolveRequest) (availability.Resolution, error) {
	return availability.Resolution{DoctorEntry: availability.DoctorEntry{DoctorID: req.DoctorID}}, nil
}

func newTestRouter(t *testing.T, mutate func(*Config)) http.Handler {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	logger := logging.Default()
	cfg := &Config{
		Context: ctx,
		Logger:  logger,
		Scheduling: handlers.NewSchedulingHandler(handlers.SchedulingConfig{
			Availability: fakeAvailability{},
			Logger:       logger,
		}),
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("# metrics\n"))
		}),
	}
	if mutate != nil {
		mutate(cfg)
	}
	return New(cfg)
}

func TestRouterHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}

	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", resp["status"])
	}
}

func TestRouterMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
}

func TestRouterMountsSchedulingRoutes(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/doctors/do1/clinics/c-1/slots?date=2025-01-10", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}
	var summary schedule.DaySummary
	if err := json.NewDecoder(rr.Body).Decode(&summary); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if summary.DoctorID != "do1" || summary.ClinicID != "c-1" {
		t.Fatalf("path params not forwarded: %+v", summary)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestRouterRequiresJWTWhenConfigured(t *testing.T) {
	router := newTestRouter(t, func(cfg *Config) { cfg.APIJWTSecret = "secret" })

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/doctors/do1/availability", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rr.Code)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "agent",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	})
	signed, err := token.SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/v1/doctors/do1/availability", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("health must stay public, got %d", rr.Code)
	}
}

func TestRouterRateLimitsV1(t *testing.T) {
	router := newTestRouter(t, func(cfg *Config) {
		cfg.RateLimitRPS = 0.001
		cfg.RateLimitBurst = 1
	})

	send := func() int {
		req := httptest.NewRequest(http.MethodGet, "/v1/doctors/do1/availability", nil)
		req.RemoteAddr = "198.51.100.7:4000"
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr.Code
	}

	if code := send(); code != http.StatusOK {
		t.Fatalf("expected first request allowed, got %d", code)
	}
	if code := send(); code != http.StatusTooManyRequests {
		t.Fatalf("expected second request limited, got %d", code)
	}
}

func TestRouterCORSPreflightCoversMountedMethods(t *testing.T) {
	router := newTestRouter(t, func(cfg *Config) {
		cfg.CORSAllowedOrigins = []string{"https://agent.example"}
		cfg.APIJWTSecret = "secret"
	})

	req := httptest.NewRequest(http.MethodOptions, "/v1/dedup", nil)
	req.Header.Set("Origin", "https://agent.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodDelete)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Methods"); got != "DELETE, GET, POST, OPTIONS" {
		t.Fatalf("unexpected allow methods %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/v1/appointments", nil)
	req.Header.Set("Origin", "https://agent.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status %d for unserved method, got %d", http.StatusMethodNotAllowed, rr.Code)
	}
}

func TestRouteMethods(t *testing.T) {
	scheduling := handlers.NewSchedulingHandler(handlers.SchedulingConfig{
		Availability: fakeAvailability{},
	}).Routes()

	got := routeMethods(scheduling)
	want := []string{http.MethodDelete, http.MethodGet, http.MethodPost}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}
