package v1

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/caredesk/scheduling/pkg/auth"
	"github.com/caredesk/scheduling/pkg/metrics"
)

// RegisterRoutes mounts the v1 API. Patient- and provider-scoped listings
// live under their own resource prefixes so the :id wildcard on
// /appointments stays unambiguous.
func RegisterRoutes(
	r *gin.Engine,
	appointments *AppointmentHandler,
	availability *AvailabilityHandler,
	verifier *auth.Verifier,
	m *metrics.Collector,
	log *zap.Logger,
	devMode bool,
) {
	r.Use(RequestLogger(log), Metrics(m))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.MetricsHandler()))

	api := r.Group("/api/v1")
	api.Use(Authenticate(verifier, devMode))

	appts := api.Group("/appointments")
	{
		appts.GET("", appointments.List)
		appts.POST("", appointments.Create)
		appts.GET("/:id", appointments.Get)
		appts.PUT("/:id", appointments.Update)
		appts.DELETE("/:id", appointments.Delete)
		appts.GET("/:id/details", appointments.GetDetail)

		appts.PATCH("/:id/approve", appointments.Approve)
		appts.PATCH("/:id/reject", appointments.Reject)
		appts.PATCH("/:id/reschedule", appointments.Reschedule)
		appts.PATCH("/:id/confirm", appointments.Confirm)
		appts.PATCH("/:id/in-progress", appointments.MarkInProgress)
		appts.PATCH("/:id/complete", appointments.MarkCompleted)
		appts.PATCH("/:id/no-show", appointments.MarkNoShow)
		appts.PATCH("/:id/cancel", appointments.Cancel)
	}

	patients := api.Group("/patients/:patientId")
	{
		patients.GET("/appointments", appointments.ListByPatient)
		patients.GET("/appointments/details", appointments.ListDetailsByPatient)
	}

	providers := api.Group("/providers/:providerId")
	{
		providers.GET("/appointments", appointments.ListByProvider)
		providers.GET("/appointments/details", appointments.ListDetailsByProvider)
		providers.GET("/available-slots", availability.GetAvailableSlots)
	}
}
