package postgres

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gravadigital/billetterie-api/internal/domain/common"
	"github.com/gravadigital/billetterie-api/internal/domain/event"
	"github.com/gravadigital/billetterie-api/internal/logger"
)

// ActivityRepository implements repository.ActivityRepository using GORM
type ActivityRepository struct {
	db  *gorm.DB
	log *log.Logger
}

// NewActivityRepository creates a new PostgreSQL activity repository
func NewActivityRepository(db *gorm.DB) *ActivityRepository {
	return &ActivityRepository{
		db:  db,
		log: logger.Repository("activity"),
	}
}

// withLedger preloads the registrations in ledger order
func withLedger(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Registrations", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("registration_time ASC, participant_id ASC")
		}).
		Preload("Registrations.Participant")
}

func (r *ActivityRepository) Create(ctx context.Context, a *event.Activity) error {
	r.log.Debug("Creating activity", "event_id", a.EventID, "title", a.Title)

	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(a).Error; err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("event %s: %w", a.EventID, common.ErrNotFound)
		}
		r.log.Error("Failed to create activity", "error", err)
		return fmt.Errorf("failed to create activity: %w", err)
	}

	r.log.Info("Activity created successfully", "id", a.ID, "event_id", a.EventID)
	return nil
}

func (r *ActivityRepository) GetByID(ctx context.Context, id uuid.UUID) (*event.Activity, error) {
	var a event.Activity
	if err := withLedger(r.db.WithContext(ctx)).First(&a, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "activity "+id.String())
	}
	return &a, nil
}

func (r *ActivityRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*event.Activity, error) {
	// lock first, preloads run as separate statements
	var locked event.Activity
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		First(&locked, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, "activity "+id.String())
	}
	return r.GetByID(ctx, id)
}

func (r *ActivityRepository) GetByEventID(ctx context.Context, eventID uuid.UUID) ([]*event.Activity, error) {
	var activities []*event.Activity
	err := withLedger(r.db.WithContext(ctx)).
		Where("event_id = ?", eventID).
		Order("start_time ASC, id ASC").
		Find(&activities).Error
	if err != nil {
		r.log.Error("Failed to get activities", "event_id", eventID, "error", err)
		return nil, fmt.Errorf("failed to get activities: %w", err)
	}
	return activities, nil
}

func (r *ActivityRepository) Save(ctx context.Context, a *event.Activity) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&event.Activity{}).Where("id = ?", a.ID).Updates(map[string]any{
			"event_id":          a.EventID,
			"title":             a.Title,
			"description":       a.Description,
			"start_time":        a.StartTime,
			"max_participants":  a.MaxParticipants,
			"max_waiting_queue": a.MaxWaitingQueue,
		})
		if res.Error != nil {
			if isForeignKeyViolation(res.Error) {
				return fmt.Errorf("event %s: %w", a.EventID, common.ErrNotFound)
			}
			return fmt.Errorf("failed to update activity: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("activity %s: %w", a.ID, common.ErrNotFound)
		}

		var stored []event.Registration
		if err := tx.Where("activity_id = ?", a.ID).Find(&stored).Error; err != nil {
			return fmt.Errorf("failed to load registrations: %w", err)
		}
		existing := make(map[uuid.UUID]*event.Registration, len(stored))
		for i := range stored {
			existing[stored[i].ParticipantID] = &stored[i]
		}

		keep := make([]uuid.UUID, 0, len(a.Registrations))
		seen := make(map[uuid.UUID]bool, len(a.Registrations))
		for _, reg := range a.Registrations {
			if seen[reg.ParticipantID] {
				return fmt.Errorf("activity %s, participant %s: %w", a.ID, reg.ParticipantID, common.ErrDuplicateRegistration)
			}
			seen[reg.ParticipantID] = true
			keep = append(keep, reg.ParticipantID)

			if prev, ok := existing[reg.ParticipantID]; ok {
				if !ledgerEntryChanged(prev, reg) {
					continue
				}
				err := tx.Model(&event.Registration{}).
					Where("activity_id = ? AND participant_id = ?", a.ID, reg.ParticipantID).
					Updates(map[string]any{
						"is_waiting":    reg.IsWaiting,
						"check_in_time": reg.CheckInTime,
					}).Error
				if err != nil {
					return fmt.Errorf("failed to update registration: %w", err)
				}
				continue
			}

			row := *reg
			row.ActivityID = a.ID
			row.Participant = nil
			if err := tx.Omit(clause.Associations).Create(&row).Error; err != nil {
				switch {
				case isUniqueViolation(err):
					return fmt.Errorf("activity %s, participant %s: %w", a.ID, reg.ParticipantID, common.ErrDuplicateRegistration)
				case isForeignKeyViolation(err):
					return fmt.Errorf("participant %s: %w", reg.ParticipantID, common.ErrNotFound)
				default:
					return fmt.Errorf("failed to insert registration: %w", err)
				}
			}
		}

		// orphan removal
		del := tx.Where("activity_id = ?", a.ID)
		if len(keep) > 0 {
			del = del.Where("participant_id NOT IN ?", keep)
		}
		if err := del.Delete(&event.Registration{}).Error; err != nil {
			return fmt.Errorf("failed to delete registrations: %w", err)
		}

		r.log.Debug("Activity saved", "id", a.ID, "registrations", len(a.Registrations))
		return nil
	})
}

// ledgerEntryChanged reports whether the mutable columns of a stored row differ
func ledgerEntryChanged(stored, current *event.Registration) bool {
	if stored.IsWaiting != current.IsWaiting {
		return true
	}
	switch {
	case stored.CheckInTime == nil && current.CheckInTime == nil:
		return false
	case stored.CheckInTime == nil || current.CheckInTime == nil:
		return true
	default:
		return !stored.CheckInTime.Equal(*current.CheckInTime)
	}
}

func (r *ActivityRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&event.Activity{}, "id = ?", id)
	if res.Error != nil {
		r.log.Error("Failed to delete activity", "id", id, "error", res.Error)
		return fmt.Errorf("failed to delete activity: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("activity %s: %w", id, common.ErrNotFound)
	}
	return nil
}
