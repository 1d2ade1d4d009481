package emr

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name:    "client credentials",
			cfg:     Config{BaseURL: "https://api.eka.care", ClientID: "id", ClientSecret: "secret"},
			wantErr: false,
		},
		{
			name:    "static token",
			cfg:     Config{BaseURL: "https://api.eka.care", AccessToken: "tok"},
			wantErr: false,
		},
		{
			name:    "missing base URL",
			cfg:     Config{ClientID: "id", ClientSecret: "secret"},
			wantErr: true,
		},
		{
			name:    "missing credentials",
			cfg:     Config{BaseURL: "https://api.eka.care", ClientID: "id"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, client)
		})
	}
}

func TestGetAppointmentSlotsLogsInAndReusesToken(t *testing.T) {
	var logins int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case loginPath:
			atomic.AddInt32(&logins, 1)
			var body map[string]string
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "id", body["client_id"])
			assert.Equal(t, "secret", body["client_secret"])
			assert.Equal(t, "key", body["api_key"])
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token":  "tok-1",
				"refresh_token": "ref-1",
				"expires_in":    1800,
			})
		case "/dr/v1/doctor/doc-1/clinic/clinic-1/appointment/slot":
			assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
			assert.Equal(t, "id", r.Header.Get("client-id"))
			assert.Equal(t, "key", r.Header.Get("X-API-Key"))
			assert.NotEmpty(t, r.Header.Get("X-Request-Id"))
			assert.Equal(t, "2025-01-10T00:00:00.000Z", r.URL.Query().Get("start_date"))
			assert.Equal(t, "2025-01-10T23:59:59.000Z", r.URL.Query().Get("end_date"))
			_, _ = io.WriteString(w, `{"data":{"schedule":{"clinic-1":[{"service_name":"Consultation","fee":500,"slots":[{"s":"2025-01-10T09:00:00+05:30","e":"2025-01-10T09:15:00+05:30","available":true}]}]}}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client, err := New(Config{BaseURL: server.URL, ClientID: "id", ClientSecret: "secret", APIKey: "key"})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		resp, err := client.GetAppointmentSlots(context.Background(), "doc-1", "clinic-1", "2025-01-10", "2025-01-10")
		require.NoError(t, err)
		blocks := resp.Blocks("clinic-1")
		require.Len(t, blocks, 1)
		require.Len(t, blocks[0].Slots, 1)
		assert.Equal(t, 500.0, *blocks[0].Fee)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&logins))
}

func TestDoReturnsAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = io.WriteString(w, `{"message":"slot already booked","code":"APPOINTMENT_CONFLICT"}`)
	}))
	defer server.Close()

	client, err := New(Config{BaseURL: server.URL, AccessToken: "static"})
	require.NoError(t, err)

	_, err = client.BookAppointment(context.Background(), AppointmentRequest{ClinicID: "c", DoctorID: "d", PatientID: "p"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "APPOINTMENT_CONFLICT", apiErr.Code)
	assert.Equal(t, "slot already booked", apiErr.Message)
}

func TestDoPlainTextErrorIsTruncated(t *testing.T) {
	long := make([]byte, 500)
	for i := range long {
		long[i] = 'x'
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write(long)
	}))
	defer server.Close()

	client, err := New(Config{BaseURL: server.URL, AccessToken: "static"})
	require.NoError(t, err)

	_, err = client.GetBusinessEntities(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Len(t, apiErr.Message, 300)
	assert.Empty(t, apiErr.Code)
}

func TestBookAppointmentEmptyBodyIsSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer static", r.Header.Get("Authorization"))
		var req AppointmentRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(1736479800), req.Details.StartTime)
		assert.Equal(t, "in_clinic", req.Details.Mode)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client, err := New(Config{BaseURL: server.URL, AccessToken: "static"})
	require.NoError(t, err)

	resp, err := client.BookAppointment(context.Background(), AppointmentRequest{
		ClinicID:  "c",
		DoctorID:  "d",
		PatientID: "p",
		Details:   AppointmentDetails{StartTime: 1736479800, EndTime: 1736480700, Mode: "in_clinic"},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true}`, string(resp))
}

func TestRefreshFallsBackToLogin(t *testing.T) {
	var logins, refreshes int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case loginPath:
			atomic.AddInt32(&logins, 1)
			_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "fresh", "refresh_token": "r", "expires_in": 1800})
		case refreshPath:
			atomic.AddInt32(&refreshes, 1)
			w.WriteHeader(http.StatusUnauthorized)
		default:
			assert.Equal(t, "Bearer fresh", r.Header.Get("Authorization"))
			_, _ = io.WriteString(w, `{"data":{"clinics":[],"doctors":[]}}`)
		}
	}))
	defer server.Close()

	client, err := New(Config{BaseURL: server.URL, ClientID: "id", ClientSecret: "secret"})
	require.NoError(t, err)
	client.accessToken = "stale"
	client.refreshToken = "old"

	_, err = client.GetBusinessEntities(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&refreshes))
	assert.Equal(t, int32(1), atomic.LoadInt32(&logins))
}

func TestGetDoctorProfileDecodesEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/dr/v1/doctor/doc-1", r.URL.Path)
		_, _ = io.WriteString(w, `{"data":{"id":"doc-1","profile":{"personal":{"first_name":"Asha","last_name":"Rao"},"professional":{"major_speciality":{"name":"Dermatology"}}}}}`)
	}))
	defer server.Close()

	client, err := New(Config{BaseURL: server.URL, AccessToken: "static"})
	require.NoError(t, err)

	profile, err := client.GetDoctorProfile(context.Background(), "doc-1")
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, "Asha Rao", profile.FullName())
	assert.Equal(t, "Dermatology", profile.Profile.Professional.MajorSpeciality.Name)
}
