package directory

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/caredesk/scheduling/internal/domain/schedule"
)

var (
	ErrProviderNotFound = errors.New("provider not found")
	ErrPatientNotFound  = errors.New("patient not found")
)

// ProviderProfile is the slice of the provider directory record this
// service consumes: display data plus raw working-hours configuration.
type ProviderProfile struct {
	ID                uuid.UUID         `json:"id"`
	Name              string            `json:"name"`
	Surname           string            `json:"surname"`
	Specialization    string            `json:"specialization"`
	WorkingHoursStart schedule.FlexTime `json:"workingHoursStart"`
	WorkingHoursEnd   schedule.FlexTime `json:"workingHoursEnd"`
	WorkingDays       string            `json:"workingDays"`
}

// WorkingSchedule resolves the profile's raw configuration.
func (p *ProviderProfile) WorkingSchedule() schedule.WorkingSchedule {
	return schedule.Resolve(p.WorkingHoursStart, p.WorkingHoursEnd, p.WorkingDays)
}

type PatientProfile struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Surname string    `json:"surname"`
	Email   string    `json:"email"`
}

// Directory is the external profile collaborator. Only provider existence is
// load-bearing for the engine (availability fails NotFound on an unknown
// provider); patient lookups feed display enrichment and degrade gracefully.
type Directory interface {
	GetProvider(ctx context.Context, id uuid.UUID) (*ProviderProfile, error)
	GetPatient(ctx context.Context, id uuid.UUID) (*PatientProfile, error)
}
