package emr

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/wolfman30/clinic-scheduler/internal/schedule"
)

type envelope[T any] struct {
	Data T `json:"data"`
}

// GetAppointmentSlots fetches a doctor's schedule at a clinic between two
// dates (YYYY-MM-DD, inclusive).
// GET /dr/v1/doctor/{doctorID}/clinic/{clinicID}/appointment/slot
func (c *Client) GetAppointmentSlots(ctx context.Context, doctorID, clinicID, startDate, endDate string) (*schedule.Response, error) {
	params := url.Values{}
	params.Set("start_date", startDate+"T00:00:00.000Z")
	params.Set("end_date", endDate+"T23:59:59.000Z")

	path := fmt.Sprintf("/dr/v1/doctor/%s/clinic/%s/appointment/slot", url.PathEscape(doctorID), url.PathEscape(clinicID))
	var resp schedule.Response
	if err := c.Do(ctx, http.MethodGet, path, params, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetBusinessEntities fetches the workspace's clinics and doctors.
// GET /dr/v1/business/entities
func (c *Client) GetBusinessEntities(ctx context.Context) (*BusinessEntities, error) {
	var resp envelope[BusinessEntities]
	if err := c.Do(ctx, http.MethodGet, "/dr/v1/business/entities", nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// GetDoctorProfile fetches a doctor's profile. A missing profile yields an
// *APIError with status 404.
// GET /dr/v1/doctor/{doctorID}
func (c *Client) GetDoctorProfile(ctx context.Context, doctorID string) (*DoctorProfile, error) {
	var resp envelope[*DoctorProfile]
	if err := c.Do(ctx, http.MethodGet, "/dr/v1/doctor/"+url.PathEscape(doctorID), nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// BookAppointment submits an appointment and returns the raw confirmation.
// POST /dr/v1/appointment
func (c *Client) BookAppointment(ctx context.Context, req AppointmentRequest) (json.RawMessage, error) {
	var resp json.RawMessage
	if err := c.Do(ctx, http.MethodPost, "/dr/v1/appointment", nil, req, &resp); err != nil {
		return nil, err
	}
	return successIfEmpty(resp), nil
}

// AddPatient creates a patient profile and returns the raw response.
// POST /profiles/v1/patient/
func (c *Client) AddPatient(ctx context.Context, patient PatientInput) (json.RawMessage, error) {
	var resp json.RawMessage
	if err := c.Do(ctx, http.MethodPost, "/profiles/v1/patient/", nil, patient, &resp); err != nil {
		return nil, err
	}
	return successIfEmpty(resp), nil
}

func successIfEmpty(resp json.RawMessage) json.RawMessage {
	if len(resp) == 0 {
		return json.RawMessage(`{"success":true}`)
	}
	return resp
}
