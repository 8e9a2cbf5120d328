package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/caredesk/scheduling/internal/directory"
	"github.com/caredesk/scheduling/internal/domain/appointment"
	"github.com/caredesk/scheduling/internal/domain/schedule"
	"github.com/caredesk/scheduling/pkg/clock"
)

// AvailabilityService computes the bookable slot list for a provider and
// date. The result is advisory: the repository re-runs the overlap check
// atomically at write time, so a stale read can cost a caller a retry but
// never a double booking.
type AvailabilityService struct {
	repo appointment.Repository
	dir  directory.Directory
	clk  clock.Clock
	log  *zap.Logger
}

func NewAvailabilityService(
	repo appointment.Repository,
	dir directory.Directory,
	clk clock.Clock,
	log *zap.Logger,
) *AvailabilityService {
	return &AvailabilityService{repo: repo, dir: dir, clk: clk, log: log}
}

// GetAvailableSlots returns the ordered 30-minute slots for the provider on
// date, each flagged available or not. excludeID (uuid.Nil for none) skips
// one appointment during conflict checks so a reschedule does not collide
// with itself. Unknown providers fail with directory.ErrProviderNotFound;
// malformed working-hours configuration degrades to defaults instead.
func (s *AvailabilityService) GetAvailableSlots(ctx context.Context, providerID uuid.UUID, date time.Time, excludeID uuid.UUID) ([]schedule.TimeSlot, error) {
	provider, err := s.dir.GetProvider(ctx, providerID)
	if err != nil {
		return nil, err
	}

	ws := provider.WorkingSchedule()
	if !ws.Includes(date) {
		return []schedule.TimeSlot{}, nil
	}

	slots := schedule.GenerateSlots(date, ws)
	if len(slots) == 0 {
		return []schedule.TimeSlot{}, nil
	}

	dayStart := ws.DayStart.At(date)
	dayEnd := ws.DayEnd.At(date)
	existing, err := s.repo.FindByProviderAndDateRange(ctx, providerID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}

	schedule.MarkAvailability(slots, existing, s.clk.Now(), excludeID)
	return slots, nil
}
