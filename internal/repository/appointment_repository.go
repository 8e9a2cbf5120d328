package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/caredesk/scheduling/internal/domain/appointment"
	"github.com/caredesk/scheduling/pkg/metrics"
)

// AppointmentRepository is the GORM/Postgres implementation of
// appointment.Repository. The conflict and status-race checks run inside
// transactions so the guarantees hold by construction rather than by
// caller discipline.
type AppointmentRepository struct {
	db      *gorm.DB
	metrics *metrics.Collector
}

func NewAppointmentRepository(db *gorm.DB, m *metrics.Collector) *AppointmentRepository {
	return &AppointmentRepository{db: db, metrics: m}
}

func (r *AppointmentRepository) observe(operation string, start time.Time) {
	r.metrics.DBQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

var _ appointment.Repository = (*AppointmentRepository)(nil)

func (r *AppointmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	defer r.observe("get", time.Now())
	var a appointment.Appointment
	err := r.db.WithContext(ctx).
		Where("id = ? AND deleted_at IS NULL", id).
		First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, appointment.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading appointment: %w", err)
	}
	return &a, nil
}

func (r *AppointmentRepository) List(ctx context.Context, q *appointment.ListQuery) (*appointment.PagedAppointments, error) {
	defer r.observe("list", time.Now())
	tx := r.db.WithContext(ctx).
		Model(&appointment.Appointment{}).
		Where("deleted_at IS NULL")

	if q.PatientID != nil {
		tx = tx.Where("patient_id = ?", *q.PatientID)
	}
	if q.ProviderID != nil {
		tx = tx.Where("provider_id = ?", *q.ProviderID)
	}
	if q.Status != nil {
		tx = tx.Where("status = ?", *q.Status)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("counting appointments: %w", err)
	}

	sortBy := q.SortBy
	switch sortBy {
	case "startTime", "":
		sortBy = "start_time"
	case "createdAt":
		sortBy = "created_at"
	case "status":
		sortBy = "status"
	default:
		sortBy = "start_time"
	}

	var appointments []*appointment.Appointment
	err := tx.Order(clause.OrderByColumn{
		Column: clause.Column{Name: sortBy},
		Desc:   q.Descending,
	}).
		Offset((q.Page - 1) * q.PageSize).
		Limit(q.PageSize).
		Find(&appointments).Error
	if err != nil {
		return nil, fmt.Errorf("listing appointments: %w", err)
	}

	return &appointment.PagedAppointments{
		Appointments: appointments,
		TotalCount:   total,
		Page:         q.Page,
		PageSize:     q.PageSize,
		TotalPages:   int(math.Ceil(float64(total) / float64(q.PageSize))),
	}, nil
}

func (r *AppointmentRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*appointment.Appointment, error) {
	return r.listWhere(ctx, "patient_id = ?", patientID)
}

func (r *AppointmentRepository) ListByProvider(ctx context.Context, providerID uuid.UUID) ([]*appointment.Appointment, error) {
	return r.listWhere(ctx, "provider_id = ?", providerID)
}

func (r *AppointmentRepository) ListByStatus(ctx context.Context, status appointment.Status) ([]*appointment.Appointment, error) {
	return r.listWhere(ctx, "status = ?", status)
}

func (r *AppointmentRepository) listWhere(ctx context.Context, cond string, arg any) ([]*appointment.Appointment, error) {
	var appointments []*appointment.Appointment
	err := r.db.WithContext(ctx).
		Where(cond, arg).
		Where("deleted_at IS NULL").
		Order("start_time ASC").
		Find(&appointments).Error
	if err != nil {
		return nil, fmt.Errorf("listing appointments: %w", err)
	}
	return appointments, nil
}

func (r *AppointmentRepository) FindByProviderAndDateRange(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]*appointment.Appointment, error) {
	defer r.observe("find_range", time.Now())
	var appointments []*appointment.Appointment
	err := r.db.WithContext(ctx).
		Where("provider_id = ? AND start_time BETWEEN ? AND ? AND deleted_at IS NULL", providerID, from, to).
		Order("start_time ASC").
		Find(&appointments).Error
	if err != nil {
		return nil, fmt.Errorf("loading appointments in range: %w", err)
	}
	return appointments, nil
}

func (r *AppointmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&appointment.Appointment{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Update("deleted_at", time.Now())
	if res.Error != nil {
		return fmt.Errorf("deleting appointment: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return appointment.ErrNotFound
	}
	return nil
}

// overlapExists runs the authoritative overlap query. Callers must already
// be inside a transaction holding the provider's booking lock.
func overlapExists(tx *gorm.DB, a *appointment.Appointment) (bool, error) {
	var count int64
	err := tx.Model(&appointment.Appointment{}).
		Where("provider_id = ?", a.ProviderID).
		Where("id <> ?", a.ID).
		Where("status <> ?", appointment.StatusCancelled).
		Where("deleted_at IS NULL").
		Where("start_time < ? AND start_time + (duration_mins * interval '1 minute') > ?", a.EndsAt(), a.StartTime).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("checking overlap: %w", err)
	}
	return count > 0, nil
}

// lockProviderBookings serializes concurrent writes for one provider with a
// transaction-scoped advisory lock, closing the window between the overlap
// check and the insert.
func lockProviderBookings(tx *gorm.DB, providerID uuid.UUID) error {
	return tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", providerID.String()).Error
}

func (r *AppointmentRepository) CreateIfNoConflict(ctx context.Context, a *appointment.Appointment) error {
	defer r.observe("create", time.Now())
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockProviderBookings(tx, a.ProviderID); err != nil {
			return err
		}
		conflict, err := overlapExists(tx, a)
		if err != nil {
			return err
		}
		if conflict {
			r.metrics.WriteConflictsTotal.Inc()
			return appointment.ErrConflict
		}
		return tx.Create(a).Error
	})
}

func (r *AppointmentRepository) UpdateIfNoConflict(ctx context.Context, a *appointment.Appointment, expected appointment.Status) error {
	defer r.observe("update", time.Now())
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockProviderBookings(tx, a.ProviderID); err != nil {
			return err
		}
		conflict, err := overlapExists(tx, a)
		if err != nil {
			return err
		}
		if conflict {
			r.metrics.WriteConflictsTotal.Inc()
			return appointment.ErrConflict
		}

		// Conditional on the prior status: a transition that landed after the
		// caller's read must not be overwritten (terminal states stay terminal).
		res := tx.Model(&appointment.Appointment{}).
			Where("id = ? AND status = ? AND deleted_at IS NULL", a.ID, expected).
			Updates(map[string]any{
				"patient_id":    a.PatientID,
				"provider_id":   a.ProviderID,
				"start_time":    a.StartTime,
				"duration_mins": a.DurationMins,
				"status":        a.Status,
				"notes":         a.Notes,
				"reason":        a.Reason,
			})
		if res.Error != nil {
			return fmt.Errorf("updating appointment: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&appointment.Appointment{}).
				Where("id = ? AND deleted_at IS NULL", a.ID).
				Count(&count).Error; err != nil {
				return fmt.Errorf("rechecking appointment: %w", err)
			}
			if count == 0 {
				return appointment.ErrNotFound
			}
			r.metrics.WriteConflictsTotal.Inc()
			return appointment.ErrStatusRace
		}
		return nil
	})
}

func (r *AppointmentRepository) UpdateStatusIf(ctx context.Context, a *appointment.Appointment, expected appointment.Status) error {
	defer r.observe("update_status", time.Now())
	res := r.db.WithContext(ctx).
		Model(&appointment.Appointment{}).
		Where("id = ? AND status = ? AND deleted_at IS NULL", a.ID, expected).
		Updates(map[string]any{
			"status": a.Status,
			"notes":  a.Notes,
		})
	if res.Error != nil {
		return fmt.Errorf("updating status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// Either the row vanished or a concurrent transition won.
		var count int64
		if err := r.db.WithContext(ctx).
			Model(&appointment.Appointment{}).
			Where("id = ? AND deleted_at IS NULL", a.ID).
			Count(&count).Error; err != nil {
			return fmt.Errorf("rechecking appointment: %w", err)
		}
		if count == 0 {
			return appointment.ErrNotFound
		}
		r.metrics.WriteConflictsTotal.Inc()
		return appointment.ErrStatusRace
	}
	return nil
}
