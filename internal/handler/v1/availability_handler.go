package v1

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/caredesk/scheduling/internal/domain/schedule"
	"github.com/caredesk/scheduling/internal/service"
	"github.com/caredesk/scheduling/pkg/cache"
	"github.com/caredesk/scheduling/pkg/metrics"
)

// AvailabilityHandler serves the advisory slot read, fronted by a TTL cache.
// The cache lives here rather than in the engine so that invalidation on
// writes stays an explicit call instead of hidden memoization.
type AvailabilityHandler struct {
	availability *service.AvailabilityService
	cache        cache.Cache
	cacheTTL     time.Duration
	metrics      *metrics.Collector
	log          *zap.Logger
}

func NewAvailabilityHandler(
	availability *service.AvailabilityService,
	c cache.Cache,
	cacheTTL time.Duration,
	m *metrics.Collector,
	log *zap.Logger,
) *AvailabilityHandler {
	return &AvailabilityHandler{
		availability: availability,
		cache:        c,
		cacheTTL:     cacheTTL,
		metrics:      m,
		log:          log,
	}
}

func availabilityKey(providerID uuid.UUID, date time.Time) string {
	return fmt.Sprintf("availability:%s:%s", providerID, date.Format("2006-01-02"))
}

// Invalidate drops the cached slot list for a provider's day. Called by the
// write handlers after every successful mutation.
func (h *AvailabilityHandler) Invalidate(ctx context.Context, providerID uuid.UUID, startTime time.Time) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Delete(ctx, availabilityKey(providerID, startTime)); err != nil {
		h.log.Warn("availability cache invalidation failed", zap.Error(err))
	}
}

// GetAvailableSlots handles GET /providers/:providerId/available-slots.
func (h *AvailabilityHandler) GetAvailableSlots(c *gin.Context) {
	providerID, ok := parseUUID(c, "providerId")
	if !ok {
		return
	}

	date, err := time.Parse("2006-01-02", c.Query("date"))
	if err != nil {
		respondError(c, 400, "invalid date: expected YYYY-MM-DD")
		return
	}

	excludeID := uuid.Nil
	if raw := c.Query("excludeAppointmentId"); raw != "" {
		excludeID, err = uuid.Parse(raw)
		if err != nil {
			respondError(c, 400, "invalid excludeAppointmentId: must be a valid UUID")
			return
		}
	}

	// Only plain reads are cacheable; an exclusion is caller-specific.
	cacheable := h.cache != nil && excludeID == uuid.Nil
	key := availabilityKey(providerID, date)

	if cacheable {
		var cached []schedule.TimeSlot
		if err := h.cache.GetJSON(c.Request.Context(), key, &cached); err == nil {
			h.metrics.AvailabilityCacheHits.Inc()
			respondOK(c, cached)
			return
		}
		h.metrics.AvailabilityCacheMisses.Inc()
	}

	start := time.Now()
	slots, err := h.availability.GetAvailableSlots(c.Request.Context(), providerID, date, excludeID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	h.metrics.SlotScansTotal.Inc()
	h.metrics.SlotScanDuration.Observe(time.Since(start).Seconds())

	if cacheable {
		if err := h.cache.SetJSON(c.Request.Context(), key, slots, h.cacheTTL); err != nil {
			h.log.Warn("availability cache write failed", zap.Error(err))
		}
	}

	respondOK(c, slots)
}
