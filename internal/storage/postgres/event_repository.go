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

// EventRepository implements repository.EventRepository using GORM
type EventRepository struct {
	db  *gorm.DB
	log *log.Logger
}

// NewEventRepository creates a new PostgreSQL event repository
func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{
		db:  db,
		log: logger.Repository("event"),
	}
}

func withActivities(db *gorm.DB) *gorm.DB {
	return db.Preload("Activities", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("start_time ASC, id ASC")
	})
}

func (r *EventRepository) Create(ctx context.Context, e *event.Event) error {
	r.log.Debug("Creating event", "title", e.Title, "date", e.Date.Format(event.DateLayout))

	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(e).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("event %s: %w", e.ID, common.ErrConflict)
		}
		r.log.Error("Failed to create event", "error", err)
		return fmt.Errorf("failed to create event: %w", err)
	}

	r.log.Info("Event created successfully", "id", e.ID)
	return nil
}

func (r *EventRepository) GetByID(ctx context.Context, id uuid.UUID) (*event.Event, error) {
	var e event.Event
	if err := withActivities(r.db.WithContext(ctx)).First(&e, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "event "+id.String())
	}
	return &e, nil
}

func (r *EventRepository) GetActive(ctx context.Context) (*event.Event, error) {
	var e event.Event
	if err := withActivities(r.db.WithContext(ctx)).Where("active = ?", true).First(&e).Error; err != nil {
		return nil, notFound(err, "active event")
	}
	return &e, nil
}

func (r *EventRepository) GetAll(ctx context.Context) ([]*event.Event, error) {
	var events []*event.Event
	if err := r.db.WithContext(ctx).Order("date DESC, title ASC").Find(&events).Error; err != nil {
		r.log.Error("Failed to get all events", "error", err)
		return nil, fmt.Errorf("failed to get events: %w", err)
	}

	r.log.Debug("Retrieved all events", "count", len(events))
	return events, nil
}

func (r *EventRepository) Update(ctx context.Context, e *event.Event) error {
	res := r.db.WithContext(ctx).Model(&event.Event{}).Where("id = ?", e.ID).Updates(map[string]any{
		"title":       e.Title,
		"description": e.Description,
		"location":    e.Location,
		"date":        e.Date,
		"active":      e.Active,
	})
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return fmt.Errorf("another event is already active: %w", common.ErrConflict)
		}
		r.log.Error("Failed to update event", "id", e.ID, "error", res.Error)
		return fmt.Errorf("failed to update event: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("event %s: %w", e.ID, common.ErrNotFound)
	}
	return nil
}

func (r *EventRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&event.Event{}, "id = ?", id)
	if res.Error != nil {
		r.log.Error("Failed to delete event", "id", id, "error", res.Error)
		return fmt.Errorf("failed to delete event: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("event %s: %w", id, common.ErrNotFound)
	}

	r.log.Info("Event deleted", "id", id)
	return nil
}

func (r *EventRepository) DeactivateAllExcept(ctx context.Context, id uuid.UUID) error {
	err := r.db.WithContext(ctx).Model(&event.Event{}).
		Where("active = ? AND id <> ?", true, id).
		Update("active", false).Error
	if err != nil {
		return fmt.Errorf("failed to deactivate events: %w", err)
	}
	return nil
}
