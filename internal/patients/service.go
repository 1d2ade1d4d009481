// Package patients registers patient profiles with the EMR, collapsing
// accidental double submissions through the request deduplicator.
package patients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/clinic-scheduler/internal/dedup"
	"github.com/wolfman30/clinic-scheduler/internal/emr"
	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

const addPatientOp = "add_patient"

// Upstream creates patient profiles.
type Upstream interface {
	AddPatient(ctx context.Context, patient emr.PatientInput) (json.RawMessage, error)
}

// ValidationError reports a malformed patient payload.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("patients: invalid %s: %s", e.Field, e.Reason)
}

// Result is the outcome of an add call.
type Result struct {
	Response  json.RawMessage `json:"data"`
	Duplicate bool            `json:"duplicate"`
}

type Service struct {
	upstream Upstream
	dedup    *dedup.Deduplicator
	logger   *logging.Logger
}

func NewService(upstream Upstream, d *dedup.Deduplicator, logger *logging.Logger) *Service {
	if upstream == nil {
		panic("patients: upstream required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{upstream: upstream, dedup: d, logger: logger}
}

// Add creates the patient unless an identical payload was submitted
// recently, in which case the earlier response is returned.
func (s *Service) Add(ctx context.Context, input emr.PatientInput) (*Result, error) {
	input = normalize(input)
	if err := validate(input); err != nil {
		return nil, err
	}

	create := func(ctx context.Context) (json.RawMessage, error) {
		resp, err := s.upstream.AddPatient(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("patients: add: %w", err)
		}
		return resp, nil
	}

	if s.dedup == nil {
		resp, err := create(ctx)
		if err != nil {
			return nil, err
		}
		return &Result{Response: resp}, nil
	}

	params, err := dedup.ParamsOf(input)
	if err != nil {
		return nil, err
	}
	resp, duplicate, err := s.dedup.Do(ctx, addPatientOp, params, create)
	if err != nil {
		if errors.Is(err, dedup.ErrInFlight) {
			s.logger.Warn("patient registration already in progress", "name", input.FullName)
		}
		return nil, err
	}
	if duplicate {
		s.logger.Info("returning cached patient registration", "name", input.FullName)
	}
	return &Result{Response: resp, Duplicate: duplicate}, nil
}

func normalize(in emr.PatientInput) emr.PatientInput {
	in.FullName = strings.TrimSpace(in.FullName)
	in.DOB = strings.TrimSpace(in.DOB)
	in.Gender = strings.ToUpper(strings.TrimSpace(in.Gender))
	in.Mobile = strings.TrimSpace(in.Mobile)
	in.Email = strings.TrimSpace(in.Email)
	in.Address = strings.TrimSpace(in.Address)
	return in
}

func validate(in emr.PatientInput) error {
	if in.FullName == "" {
		return &ValidationError{Field: "fln", Reason: "required"}
	}
	if in.DOB == "" {
		return &ValidationError{Field: "dob", Reason: "required"}
	}
	if _, err := time.Parse("2006-01-02", in.DOB); err != nil {
		return &ValidationError{Field: "dob", Reason: "expected YYYY-MM-DD"}
	}
	if in.Gender == "" {
		return &ValidationError{Field: "gen", Reason: "required"}
	}
	return nil
}
