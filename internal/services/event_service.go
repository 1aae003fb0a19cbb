package services

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/gravadigital/billetterie-api/internal/domain/common"
	"github.com/gravadigital/billetterie-api/internal/domain/event"
	"github.com/gravadigital/billetterie-api/internal/domain/participant"
	"github.com/gravadigital/billetterie-api/internal/logger"
	"github.com/gravadigital/billetterie-api/internal/storage/objects"
	"github.com/gravadigital/billetterie-api/internal/storage/repository"
	"github.com/gravadigital/billetterie-api/internal/validation"
)

// EventService maneja la lógica de negocio de eventos y actividades
type EventService struct {
	store     repository.Container
	images    objects.Store
	validator *validation.Validator
	log       *log.Logger
}

// NewEventService crea una nueva instancia del servicio de eventos
func NewEventService(store repository.Container, images objects.Store, v *validation.Validator) *EventService {
	return &EventService{
		store:     store,
		images:    images,
		validator: v,
		log:       logger.Service("event"),
	}
}

// EventRequest representa una solicitud para crear o actualizar un evento
type EventRequest struct {
	Title       string `json:"title" validate:"notblank,max=200"`
	Description string `json:"description"`
	Location    string `json:"location" validate:"max=200"`
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	// Active is only honoured on update; nil leaves the flag unchanged
	Active *bool `json:"active,omitempty"`
}

func (r EventRequest) date() time.Time {
	d, _ := time.Parse(event.DateLayout, r.Date)
	return d
}

// ActivityRequest representa una solicitud para crear o actualizar una actividad.
// Time is the wall clock start on the event date.
type ActivityRequest struct {
	Title           string `json:"title" validate:"notblank,max=200"`
	Description     string `json:"description"`
	Time            string `json:"time" validate:"required,datetime=15:04"`
	MaxParticipants int    `json:"max_participants" validate:"gte=0"`
	MaxWaitingQueue int    `json:"max_waiting_queue" validate:"gte=0"`
}

// CreateEvent crea un nuevo evento inactivo
func (s *EventService) CreateEvent(ctx context.Context, req EventRequest) (*event.Event, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	e := event.NewEvent(req.Title, req.Description, req.Location, req.date())
	if err := e.Validate(); err != nil {
		return nil, common.NewValidationError("event", err.Error())
	}
	if err := s.store.Events().Create(ctx, e); err != nil {
		return nil, err
	}

	s.log.Info("Event created", "event_id", e.ID, "title", e.Title)
	return e, nil
}

// GetAllEvents obtiene todos los eventos, los más recientes primero
func (s *EventService) GetAllEvents(ctx context.Context) ([]*event.Event, error) {
	return s.store.Events().GetAll(ctx)
}

// GetEventByID obtiene un evento con sus actividades
func (s *EventService) GetEventByID(ctx context.Context, id uuid.UUID) (*event.Event, error) {
	return s.store.Events().GetByID(ctx, id)
}

// GetActiveEvent returns the event currently open for bookings
func (s *EventService) GetActiveEvent(ctx context.Context) (*event.Event, error) {
	return s.store.Events().GetActive(ctx)
}

// UpdateEvent changes the event fields. Activating it deactivates every other event.
func (s *EventService) UpdateEvent(ctx context.Context, id uuid.UUID, req EventRequest) (*event.Event, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	var updated *event.Event
	err := s.store.WithinTransaction(ctx, func(tx repository.Container) error {
		e, err := tx.Events().GetByID(ctx, id)
		if err != nil {
			return err
		}

		e.Title = strings.TrimSpace(req.Title)
		e.Description = req.Description
		e.Location = strings.TrimSpace(req.Location)
		e.Date = req.date()
		if req.Active != nil {
			e.Active = *req.Active
		}

		if e.Active {
			if err := tx.Events().DeactivateAllExcept(ctx, e.ID); err != nil {
				return err
			}
		}
		if err := tx.Events().Update(ctx, e); err != nil {
			return err
		}
		updated = e
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Event updated", "event_id", id, "active", updated.Active)
	return updated, nil
}

// SetActive makes the event the only active one
func (s *EventService) SetActive(ctx context.Context, id uuid.UUID) (*event.Event, error) {
	var activated *event.Event
	err := s.store.WithinTransaction(ctx, func(tx repository.Container) error {
		e, err := tx.Events().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.Events().DeactivateAllExcept(ctx, id); err != nil {
			return err
		}
		e.Active = true
		if err := tx.Events().Update(ctx, e); err != nil {
			return err
		}
		activated = e
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Event activated", "event_id", id)
	return activated, nil
}

// DeleteEvent elimina un evento junto con sus actividades e inscripciones
func (s *EventService) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	e, err := s.store.Events().GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Events().Delete(ctx, id); err != nil {
		return err
	}

	if err := s.images.Delete(ctx, e.ImagePath()); err != nil {
		s.log.Warn("Failed to delete event image", "event_id", id, "error", err)
	}
	s.log.Info("Event deleted", "event_id", id)
	return nil
}

// CreateActivity adds an activity to the event
func (s *EventService) CreateActivity(ctx context.Context, eventID uuid.UUID, req ActivityRequest) (*event.Activity, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	e, err := s.store.Events().GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	start, err := e.AtTime(req.Time)
	if err != nil {
		return nil, common.NewValidationError("time", err.Error())
	}

	a := event.NewActivity(e.ID, req.Title, req.Description, start, req.MaxParticipants, req.MaxWaitingQueue)
	if err := a.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.Activities().Create(ctx, a); err != nil {
		return nil, err
	}

	s.log.Info("Activity created", "event_id", eventID, "activity_id", a.ID, "max_participants", a.MaxParticipants, "max_waiting_queue", a.MaxWaitingQueue)
	return a, nil
}

// GetActivity returns an activity of the event with its ledger
func (s *EventService) GetActivity(ctx context.Context, eventID, activityID uuid.UUID) (*event.Activity, error) {
	a, err := s.store.Activities().GetByID(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if a.EventID != eventID {
		return nil, fmt.Errorf("activity %s of event %s: %w", activityID, eventID, common.ErrNotFound)
	}
	return a, nil
}

// UpdateActivity changes an activity. Lowering the capacity never removes
// entries; the partitions are recomputed from the ledger.
func (s *EventService) UpdateActivity(ctx context.Context, eventID, activityID uuid.UUID, req ActivityRequest) (*event.Activity, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	var updated *event.Activity
	err := s.store.WithinTransaction(ctx, func(tx repository.Container) error {
		e, err := tx.Events().GetByID(ctx, eventID)
		if err != nil {
			return err
		}
		a, err := tx.Activities().GetByIDForUpdate(ctx, activityID)
		if err != nil {
			return err
		}
		if a.EventID != e.ID {
			return fmt.Errorf("activity %s of event %s: %w", activityID, eventID, common.ErrNotFound)
		}

		start, err := e.AtTime(req.Time)
		if err != nil {
			return common.NewValidationError("time", err.Error())
		}
		a.Title = strings.TrimSpace(req.Title)
		a.Description = req.Description
		a.StartTime = start
		a.MaxParticipants = req.MaxParticipants
		a.MaxWaitingQueue = req.MaxWaitingQueue
		if err := a.Validate(); err != nil {
			return err
		}
		if err := tx.Activities().Save(ctx, a); err != nil {
			return err
		}
		updated = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Activity updated", "activity_id", activityID, "status", updated.Status())
	return updated, nil
}

// DeleteActivity removes an activity and its registrations
func (s *EventService) DeleteActivity(ctx context.Context, eventID, activityID uuid.UUID) error {
	if _, err := s.GetActivity(ctx, eventID, activityID); err != nil {
		return err
	}
	if err := s.store.Activities().Delete(ctx, activityID); err != nil {
		return err
	}
	s.log.Info("Activity deleted", "event_id", eventID, "activity_id", activityID)
	return nil
}

// LedgerEntry is a registration as shown to staff
type LedgerEntry struct {
	Participant      *participant.Participant `json:"participant"`
	Position         int                      `json:"position"`
	RegistrationTime time.Time                `json:"registration_time"`
	CheckInTime      *time.Time               `json:"check_in_time,omitempty"`
}

// ActivityStatus is the occupancy of one activity
type ActivityStatus struct {
	Activity     *event.Activity          `json:"activity"`
	Status       event.RegistrationStatus `json:"status"`
	RegularCount int                      `json:"regular_count"`
	WaitingCount int                      `json:"waiting_count"`
	Registered   []LedgerEntry            `json:"registered"`
	Waiting      []LedgerEntry            `json:"waiting"`
}

// EventStatus lists every activity of an event with its partitions
type EventStatus struct {
	Event      *event.Event      `json:"event"`
	Activities []*ActivityStatus `json:"activities"`
}

// GetEventStatus returns the occupancy of every activity of the event
func (s *EventService) GetEventStatus(ctx context.Context, id uuid.UUID) (*EventStatus, error) {
	e, err := s.store.Events().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	activities, err := s.store.Activities().GetByEventID(ctx, id)
	if err != nil {
		return nil, err
	}

	header := *e
	header.Activities = nil
	status := &EventStatus{Event: &header, Activities: make([]*ActivityStatus, 0, len(activities))}
	for _, a := range activities {
		regular := a.NonWaitingParticipants()
		status.Activities = append(status.Activities, &ActivityStatus{
			Activity:     a,
			Status:       a.Status(),
			RegularCount: a.RegularCount(),
			WaitingCount: a.WaitingCount(),
			Registered:   ledgerEntries(regular, 0),
			Waiting:      ledgerEntries(a.WaitingParticipants(), len(regular)),
		})
	}
	return status, nil
}

func ledgerEntries(regs []*event.Registration, offset int) []LedgerEntry {
	entries := make([]LedgerEntry, 0, len(regs))
	for i, r := range regs {
		entries = append(entries, LedgerEntry{
			Participant:      r.Participant,
			Position:         offset + i,
			RegistrationTime: r.RegistrationTime,
			CheckInTime:      r.CheckInTime,
		})
	}
	return entries
}

// UploadImage stores the event image under the event's image path
func (s *EventService) UploadImage(ctx context.Context, id uuid.UUID, r io.Reader, size int64, contentType string) (string, error) {
	e, err := s.store.Events().GetByID(ctx, id)
	if err != nil {
		return "", err
	}

	path := e.ImagePath()
	if err := s.images.Put(ctx, path, r, size, contentType); err != nil {
		return "", err
	}

	s.log.Info("Event image stored", "event_id", id, "path", path, "size", size)
	return path, nil
}

// GetImage opens an event image by file name, e.g. "<event id>.png"
func (s *EventService) GetImage(ctx context.Context, file string) (*objects.Object, error) {
	id, err := uuid.Parse(strings.TrimSuffix(file, ".png"))
	if err != nil {
		return nil, fmt.Errorf("image %s: %w", file, common.ErrNotFound)
	}
	return s.images.Get(ctx, (&event.Event{ID: id}).ImagePath())
}
