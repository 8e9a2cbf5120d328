package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/caredesk/scheduling/internal/domain/appointment"
	"github.com/caredesk/scheduling/internal/service"
)

type AppointmentHandler struct {
	appointments *service.AppointmentService
	details      *service.DetailService
	availability *AvailabilityHandler
	log          *zap.Logger
}

func NewAppointmentHandler(
	appointments *service.AppointmentService,
	details *service.DetailService,
	availability *AvailabilityHandler,
	log *zap.Logger,
) *AppointmentHandler {
	return &AppointmentHandler{
		appointments: appointments,
		details:      details,
		availability: availability,
		log:          log,
	}
}

type createAppointmentRequest struct {
	PatientID       uuid.UUID `json:"patientId" binding:"required"`
	ProviderID      uuid.UUID `json:"providerId" binding:"required"`
	StartTime       time.Time `json:"startTime" binding:"required"`
	DurationMinutes int       `json:"durationMinutes"`
	Reason          string    `json:"reason"`
}

func (h *AppointmentHandler) Create(c *gin.Context) {
	var req createAppointmentRequest
	if !bindJSON(c, &req) {
		return
	}

	a, err := h.appointments.Create(c.Request.Context(), &appointment.CreateCommand{
		PatientID:    req.PatientID,
		ProviderID:   req.ProviderID,
		StartTime:    req.StartTime,
		DurationMins: req.DurationMinutes,
		Reason:       req.Reason,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	h.availability.Invalidate(c.Request.Context(), a.ProviderID, a.StartTime)
	respondCreated(c, a)
}

func (h *AppointmentHandler) Get(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	a, err := h.appointments.Get(c.Request.Context(), id, callerFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, a)
}

func (h *AppointmentHandler) List(c *gin.Context) {
	if raw := c.Query("status"); raw != "" && c.Query("page") == "" {
		appointments, err := h.appointments.ListByStatus(c.Request.Context(), appointment.Status(raw))
		if err != nil {
			respondServiceError(c, err)
			return
		}
		respondOK(c, appointments)
		return
	}

	q := &appointment.ListQuery{
		Page:       parseQueryInt(c, "page", 1),
		PageSize:   parseQueryInt(c, "size", 20),
		SortBy:     c.DefaultQuery("sortBy", "startTime"),
		Descending: c.Query("direction") == "desc",
	}
	if raw := c.Query("status"); raw != "" {
		status := appointment.Status(raw)
		q.Status = &status
	}

	paged, err := h.appointments.List(c.Request.Context(), q, callerFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, paged)
}

func (h *AppointmentHandler) ListByPatient(c *gin.Context) {
	patientID, ok := parseUUID(c, "patientId")
	if !ok {
		return
	}
	appointments, err := h.appointments.ListByPatient(c.Request.Context(), patientID, callerFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, appointments)
}

func (h *AppointmentHandler) ListByProvider(c *gin.Context) {
	providerID, ok := parseUUID(c, "providerId")
	if !ok {
		return
	}
	appointments, err := h.appointments.ListByProvider(c.Request.Context(), providerID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, appointments)
}

type updateAppointmentRequest struct {
	PatientID       *uuid.UUID          `json:"patientId"`
	ProviderID      *uuid.UUID          `json:"providerId"`
	StartTime       *time.Time          `json:"startTime"`
	DurationMinutes *int                `json:"durationMinutes"`
	Status          *appointment.Status `json:"status"`
	Notes           *string             `json:"notes"`
	Reason          *string             `json:"reason"`
}

func (h *AppointmentHandler) Update(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req updateAppointmentRequest
	if !bindJSON(c, &req) {
		return
	}

	a, err := h.appointments.Update(c.Request.Context(), id, &appointment.UpdateCommand{
		PatientID:    req.PatientID,
		ProviderID:   req.ProviderID,
		StartTime:    req.StartTime,
		DurationMins: req.DurationMinutes,
		Status:       req.Status,
		Notes:        req.Notes,
		Reason:       req.Reason,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	h.availability.Invalidate(c.Request.Context(), a.ProviderID, a.StartTime)
	respondOK(c, a)
}

func (h *AppointmentHandler) Delete(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	a, err := h.appointments.Get(c.Request.Context(), id, callerFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if err := h.appointments.Delete(c.Request.Context(), id); err != nil {
		respondServiceError(c, err)
		return
	}

	h.availability.Invalidate(c.Request.Context(), a.ProviderID, a.StartTime)
	c.Status(http.StatusNoContent)
}

func (h *AppointmentHandler) GetDetail(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	detail, err := h.details.GetDetail(c.Request.Context(), id, callerFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, detail)
}

func (h *AppointmentHandler) ListDetailsByProvider(c *gin.Context) {
	providerID, ok := parseUUID(c, "providerId")
	if !ok {
		return
	}
	details, err := h.details.ListDetailsByProvider(c.Request.Context(), providerID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, details)
}

func (h *AppointmentHandler) ListDetailsByPatient(c *gin.Context) {
	patientID, ok := parseUUID(c, "patientId")
	if !ok {
		return
	}
	details, err := h.details.ListDetailsByPatient(c.Request.Context(), patientID, callerFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, details)
}

func (h *AppointmentHandler) Approve(c *gin.Context) {
	h.statusTransition(c, func(id uuid.UUID) (*appointment.Appointment, error) {
		return h.appointments.Approve(c.Request.Context(), id)
	})
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *AppointmentHandler) Reject(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req rejectRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	a, err := h.appointments.Reject(c.Request.Context(), id, req.Reason)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	h.availability.Invalidate(c.Request.Context(), a.ProviderID, a.StartTime)
	respondOK(c, a)
}

type rescheduleRequest struct {
	NewStartTime    time.Time `json:"newStartTime" binding:"required"`
	DurationMinutes *int      `json:"durationMinutes"`
}

func (h *AppointmentHandler) Reschedule(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req rescheduleRequest
	if !bindJSON(c, &req) {
		return
	}

	// Remember the old interval so both days drop out of the cache.
	old, err := h.appointments.Get(c.Request.Context(), id, callerFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	a, err := h.appointments.Reschedule(c.Request.Context(), id, &appointment.RescheduleCommand{
		NewStartTime: req.NewStartTime,
		DurationMins: req.DurationMinutes,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	h.availability.Invalidate(c.Request.Context(), old.ProviderID, old.StartTime)
	h.availability.Invalidate(c.Request.Context(), a.ProviderID, a.StartTime)
	respondOK(c, a)
}

func (h *AppointmentHandler) Cancel(c *gin.Context) {
	h.statusTransition(c, func(id uuid.UUID) (*appointment.Appointment, error) {
		return h.appointments.Cancel(c.Request.Context(), id, callerFrom(c))
	})
}

func (h *AppointmentHandler) Confirm(c *gin.Context) {
	h.statusTransition(c, func(id uuid.UUID) (*appointment.Appointment, error) {
		return h.appointments.Confirm(c.Request.Context(), id)
	})
}

func (h *AppointmentHandler) MarkInProgress(c *gin.Context) {
	h.statusTransition(c, func(id uuid.UUID) (*appointment.Appointment, error) {
		return h.appointments.MarkInProgress(c.Request.Context(), id)
	})
}

func (h *AppointmentHandler) MarkCompleted(c *gin.Context) {
	h.statusTransition(c, func(id uuid.UUID) (*appointment.Appointment, error) {
		return h.appointments.MarkCompleted(c.Request.Context(), id)
	})
}

func (h *AppointmentHandler) MarkNoShow(c *gin.Context) {
	h.statusTransition(c, func(id uuid.UUID) (*appointment.Appointment, error) {
		return h.appointments.MarkNoShow(c.Request.Context(), id)
	})
}

func (h *AppointmentHandler) statusTransition(c *gin.Context, fn func(uuid.UUID) (*appointment.Appointment, error)) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	a, err := fn(id)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	h.availability.Invalidate(c.Request.Context(), a.ProviderID, a.StartTime)
	respondOK(c, a)
}
