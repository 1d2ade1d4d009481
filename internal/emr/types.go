package emr

import (
	"encoding/json"
	"fmt"
	"strings"
)

// APIError is returned when the upstream scheduling API answers with a
// status of 400 or above.
type APIError struct {
	Status  int
	Message string
	Code    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("emr: API error (status %d, code %s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("emr: API error (status %d): %s", e.Status, e.Message)
}

// NotFound reports whether the upstream returned 404.
func (e *APIError) NotFound() bool { return e != nil && e.Status == 404 }

func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
		Code    string `json:"code"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && (payload.Message != "" || payload.Error != "" || payload.Code != "") {
		apiErr.Message = payload.Message
		apiErr.Code = payload.Code
		if apiErr.Code == "" {
			apiErr.Code = payload.Error
		}
		if apiErr.Message == "" {
			apiErr.Message = fmt.Sprintf("API error: %d", status)
		}
		return apiErr
	}
	apiErr.Message = truncate(strings.TrimSpace(string(body)), 300)
	if apiErr.Message == "" {
		apiErr.Message = fmt.Sprintf("API error: %d", status)
	}
	return apiErr
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}

// BusinessEntities is the workspace directory of clinics and doctors.
type BusinessEntities struct {
	Business json.RawMessage `json:"business,omitempty"`
	Clinics  []ClinicEntity  `json:"clinics"`
	Doctors  []DoctorEntity  `json:"doctors"`
}

// ClinicEntity lists a clinic and the doctors practicing there.
type ClinicEntity struct {
	ClinicID string   `json:"clinic_id"`
	Name     string   `json:"name"`
	City     string   `json:"city,omitempty"`
	State    string   `json:"state,omitempty"`
	RegionID string   `json:"region_id,omitempty"`
	Doctors  []string `json:"doctors"`
}

// DoctorEntity is a doctor in the business directory.
type DoctorEntity struct {
	DoctorID string `json:"doctor_id"`
	Name     string `json:"name,omitempty"`
}

// DoctorProfile is the upstream doctor profile.
type DoctorProfile struct {
	ID      string `json:"id"`
	Profile struct {
		Personal struct {
			FirstName string `json:"first_name"`
			LastName  string `json:"last_name"`
			Pic       string `json:"pic,omitempty"`
		} `json:"personal"`
		Professional struct {
			MajorSpeciality *NamedRef       `json:"major_speciality,omitempty"`
			Speciality      []NamedRef      `json:"speciality,omitempty"`
			Language        json.RawMessage `json:"language,omitempty"`
			Clinics         []ProfileClinic `json:"clinics,omitempty"`
		} `json:"professional"`
	} `json:"profile"`
}

// NamedRef is a {name} reference used for specialities.
type NamedRef struct {
	Name string `json:"name"`
}

// ProfileClinic is a clinic listed on a doctor's profile.
type ProfileClinic struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address struct {
		City  string `json:"city,omitempty"`
		State string `json:"state,omitempty"`
	} `json:"address"`
}

// FullName joins the doctor's first and last name.
func (p *DoctorProfile) FullName() string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(p.Profile.Personal.FirstName + " " + p.Profile.Personal.LastName)
}

// AppointmentRequest is the payload submitted to book an appointment.
type AppointmentRequest struct {
	ClinicID  string             `json:"clinic_id"`
	DoctorID  string             `json:"doctor_id"`
	PatientID string             `json:"patient_id"`
	Details   AppointmentDetails `json:"appointment_details"`
}

// AppointmentDetails carries Unix-second timestamps for the booked interval.
type AppointmentDetails struct {
	StartTime int64  `json:"start_time"`
	EndTime   int64  `json:"end_time"`
	Mode      string `json:"mode"`
	Reason    string `json:"reason,omitempty"`
}

// PatientInput is the payload for creating a patient profile.
type PatientInput struct {
	FullName string `json:"fln"`
	DOB      string `json:"dob"`
	Gender   string `json:"gen"`
	Mobile   string `json:"mobile,omitempty"`
	Email    string `json:"email,omitempty"`
	Address  string `json:"address,omitempty"`
}
