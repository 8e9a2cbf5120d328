package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/caredesk/scheduling/internal/directory"
	"github.com/caredesk/scheduling/internal/domain/appointment"
)

// Placeholder display values when a directory lookup fails. Enrichment is
// best-effort: a missing profile must not hide the appointment itself.
const (
	unknownPatientName  = "Patient not found"
	unknownProviderName = "Provider not found"
	notAvailable        = "N/A"
)

// AppointmentDetail is an appointment joined with display data from the
// patient and provider directories.
type AppointmentDetail struct {
	appointment.Appointment
	PatientName            string `json:"patientName"`
	PatientEmail           string `json:"patientEmail"`
	ProviderName           string `json:"providerName"`
	ProviderSpecialization string `json:"providerSpecialization"`
}

// DetailService joins appointments with directory display data.
type DetailService struct {
	appointments *AppointmentService
	dir          directory.Directory
}

func NewDetailService(appointments *AppointmentService, dir directory.Directory) *DetailService {
	return &DetailService{appointments: appointments, dir: dir}
}

func (s *DetailService) GetDetail(ctx context.Context, id uuid.UUID, caller Caller) (*AppointmentDetail, error) {
	a, err := s.appointments.Get(ctx, id, caller)
	if err != nil {
		return nil, err
	}

	detail := &AppointmentDetail{Appointment: *a}
	s.fillPatient(ctx, detail, nil)
	s.fillProvider(ctx, detail)
	return detail, nil
}

// ListDetailsByProvider enriches a provider's appointments with patient
// display data, memoizing lookups so one patient is fetched at most once
// per request.
func (s *DetailService) ListDetailsByProvider(ctx context.Context, providerID uuid.UUID) ([]*AppointmentDetail, error) {
	appointments, err := s.appointments.ListByProvider(ctx, providerID)
	if err != nil {
		return nil, err
	}

	patients := make(map[uuid.UUID]*directory.PatientProfile)
	details := make([]*AppointmentDetail, 0, len(appointments))
	for _, a := range appointments {
		detail := &AppointmentDetail{Appointment: *a}
		s.fillPatient(ctx, detail, patients)
		// The caller already identifies the provider; skip the round trip.
		detail.ProviderName = "Current Provider"
		detail.ProviderSpecialization = notAvailable
		details = append(details, detail)
	}
	return details, nil
}

// ListDetailsByPatient enriches a patient's appointments with provider
// display data. The patient profile is fetched once for the whole list.
func (s *DetailService) ListDetailsByPatient(ctx context.Context, patientID uuid.UUID, caller Caller) ([]*AppointmentDetail, error) {
	appointments, err := s.appointments.ListByPatient(ctx, patientID, caller)
	if err != nil {
		return nil, err
	}

	patient, patientErr := s.dir.GetPatient(ctx, patientID)

	details := make([]*AppointmentDetail, 0, len(appointments))
	for _, a := range appointments {
		detail := &AppointmentDetail{Appointment: *a}
		if patientErr == nil {
			detail.PatientName = patient.Name + " " + patient.Surname
			detail.PatientEmail = patient.Email
		} else {
			detail.PatientName = unknownPatientName
			detail.PatientEmail = notAvailable
		}
		s.fillProvider(ctx, detail)
		details = append(details, detail)
	}
	return details, nil
}

func (s *DetailService) fillPatient(ctx context.Context, detail *AppointmentDetail, memo map[uuid.UUID]*directory.PatientProfile) {
	var patient *directory.PatientProfile
	if memo != nil {
		if p, seen := memo[detail.PatientID]; seen {
			patient = p
		} else {
			if p, err := s.dir.GetPatient(ctx, detail.PatientID); err == nil {
				patient = p
			}
			memo[detail.PatientID] = patient
		}
	} else if p, err := s.dir.GetPatient(ctx, detail.PatientID); err == nil {
		patient = p
	}

	if patient == nil {
		detail.PatientName = unknownPatientName
		detail.PatientEmail = notAvailable
		return
	}
	detail.PatientName = patient.Name + " " + patient.Surname
	detail.PatientEmail = patient.Email
}

func (s *DetailService) fillProvider(ctx context.Context, detail *AppointmentDetail) {
	provider, err := s.dir.GetProvider(ctx, detail.ProviderID)
	if err != nil {
		detail.ProviderName = unknownProviderName
		detail.ProviderSpecialization = notAvailable
		return
	}
	detail.ProviderName = provider.Name + " " + provider.Surname
	detail.ProviderSpecialization = provider.Specialization
}
