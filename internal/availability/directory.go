package availability

import (
	"encoding/json"

	"github.com/wolfman30/clinic-scheduler/internal/emr"
)

// DoctorClinics inverts the business directory, where clinics list their
// doctors, into the clinics a single doctor attends.
func DoctorClinics(entities *emr.BusinessEntities, doctorID string) []emr.ClinicEntity {
	if entities == nil {
		return nil
	}
	var out []emr.ClinicEntity
	for _, clinic := range entities.Clinics {
		for _, id := range clinic.Doctors {
			if id == doctorID {
				out = append(out, clinic)
				break
			}
		}
	}
	return out
}

// ResolveClinic returns requested when the doctor attends it, otherwise the
// doctor's first known clinic. It returns "" when the doctor has no clinics.
func ResolveClinic(clinics []emr.ClinicEntity, requested string) string {
	if requested != "" {
		for _, clinic := range clinics {
			if clinic.ClinicID == requested {
				return requested
			}
		}
	}
	if len(clinics) > 0 {
		return clinics[0].ClinicID
	}
	return ""
}

// Hospital is a clinic rendered for the doctor card.
type Hospital struct {
	HospitalID string `json:"hospital_id"`
	Name       string `json:"name"`
	City       string `json:"city"`
	State      string `json:"state"`
	RegionID   string `json:"region_id"`
}

// DoctorDetails is the doctor card summary.
type DoctorDetails struct {
	Name       string          `json:"name"`
	Specialty  string          `json:"specialty"`
	Hospitals  []Hospital      `json:"hospitals"`
	ProfilePic string          `json:"profile_pic,omitempty"`
	Languages  json.RawMessage `json:"languages,omitempty"`
}

// BuildDoctorDetails summarizes a profile. Hospitals come from the directory
// clinics, or from the profile's own clinic list when the directory has none.
func BuildDoctorDetails(profile *emr.DoctorProfile, clinics []emr.ClinicEntity) DoctorDetails {
	details := DoctorDetails{Hospitals: []Hospital{}}
	if profile == nil {
		return details
	}
	details.Name = profile.FullName()

	professional := profile.Profile.Professional
	switch {
	case professional.MajorSpeciality != nil && professional.MajorSpeciality.Name != "":
		details.Specialty = professional.MajorSpeciality.Name
	case len(professional.Speciality) > 0:
		details.Specialty = professional.Speciality[0].Name
	}

	if len(clinics) > 0 {
		for _, c := range clinics {
			details.Hospitals = append(details.Hospitals, Hospital{
				HospitalID: c.ClinicID,
				Name:       c.Name,
				City:       c.City,
				State:      c.State,
				RegionID:   c.RegionID,
			})
		}
	} else {
		for _, c := range professional.Clinics {
			details.Hospitals = append(details.Hospitals, Hospital{
				HospitalID: c.ID,
				Name:       c.Name,
				City:       c.Address.City,
				State:      c.Address.State,
			})
		}
	}

	details.ProfilePic = profile.Profile.Personal.Pic
	if len(professional.Language) > 0 && string(professional.Language) != "null" && string(professional.Language) != "[]" {
		details.Languages = professional.Language
	}
	return details
}
