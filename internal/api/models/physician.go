package models

import (
	"github.com/vitalink/vitalink/internal/aggregate"
	"github.com/vitalink/vitalink/internal/principal"
)

// PhysicianView is one physician in the public listing. Only the identifier
// and email are exposed; hashes and access times never leave the store.
type PhysicianView struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// PhysicianListResponse is the physician directory served to patients choosing
// a physician to link to.
type PhysicianListResponse struct {
	Success    bool            `json:"success"`
	Physicians []PhysicianView `json:"physicians"`
}

// PhysicianViewsFrom converts physicians into listing views.
func PhysicianViewsFrom(physicians []*principal.Physician) []PhysicianView {
	views := make([]PhysicianView, 0, len(physicians))
	for _, p := range physicians {
		views = append(views, PhysicianView{ID: p.ID, Email: p.Email})
	}
	return views
}

// RosterPatient is one roster entry with trailing-week heart-rate statistics.
type RosterPatient struct {
	UserID  string            `json:"user_id"`
	Email   string            `json:"email"`
	Devices []string          `json:"devices"`
	Stats   aggregate.Summary `json:"stats"`
	NoData  bool              `json:"no_data"`
}

// RosterResponse is the physician's patient list.
type RosterResponse struct {
	Success  bool            `json:"success"`
	Patients []RosterPatient `json:"patients"`
}

// PatientSummaryResponse is the trailing-week view of one patient: aggregate
// statistics plus chart series and the patient's device bindings.
type PatientSummaryResponse struct {
	Success bool                    `json:"success"`
	UserID  string                  `json:"user_id"`
	Email   string                  `json:"email"`
	Devices []DeviceView            `json:"devices"`
	Weekly  aggregate.WeeklySummary `json:"weekly"`
}

// RosterPatientFrom builds a roster entry from a patient and their stats.
func RosterPatientFrom(p *principal.Patient, stats aggregate.Summary, noData bool) RosterPatient {
	devices := p.DeviceIDs()
	if devices == nil {
		devices = []string{}
	}
	return RosterPatient{
		UserID:  p.ID,
		Email:   p.Email,
		Devices: devices,
		Stats:   stats,
		NoData:  noData,
	}
}
