package memory

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/gravadigital/billetterie-api/internal/domain/common"
	"github.com/gravadigital/billetterie-api/internal/domain/event"
)

type activityRepository struct {
	c *Container
}

func storedActivity(a *event.Activity) event.Activity {
	row := *a
	row.Registrations = nil
	return row
}

func (r *activityRepository) Create(ctx context.Context, a *event.Activity) error {
	st := r.c.lock()
	defer r.c.unlock()

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if _, ok := st.events[a.EventID]; !ok {
		return fmt.Errorf("event %s: %w", a.EventID, common.ErrNotFound)
	}
	if _, exists := st.activities[a.ID]; exists {
		return fmt.Errorf("activity %s: %w", a.ID, common.ErrConflict)
	}
	st.activities[a.ID] = storedActivity(a)
	return nil
}

func (r *activityRepository) GetByID(ctx context.Context, id uuid.UUID) (*event.Activity, error) {
	st := r.c.lock()
	defer r.c.unlock()

	row, ok := st.activities[id]
	if !ok {
		return nil, fmt.Errorf("activity %s: %w", id, common.ErrNotFound)
	}
	return loadActivity(st, row), nil
}

// GetByIDForUpdate needs no extra locking: transactions already hold the store lock
func (r *activityRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*event.Activity, error) {
	return r.GetByID(ctx, id)
}

func (r *activityRepository) GetByEventID(ctx context.Context, eventID uuid.UUID) ([]*event.Activity, error) {
	st := r.c.lock()
	defer r.c.unlock()

	var activities []*event.Activity
	for _, row := range st.activities {
		if row.EventID == eventID {
			activities = append(activities, loadActivity(st, row))
		}
	}
	sortActivities(activities)
	return activities, nil
}

func (r *activityRepository) Save(ctx context.Context, a *event.Activity) error {
	st := r.c.lock()
	defer r.c.unlock()

	if _, ok := st.activities[a.ID]; !ok {
		return fmt.Errorf("activity %s: %w", a.ID, common.ErrNotFound)
	}
	if _, ok := st.events[a.EventID]; !ok {
		return fmt.Errorf("event %s: %w", a.EventID, common.ErrNotFound)
	}

	// validate the whole collection before writing anything
	keep := make(map[regKey]struct{}, len(a.Registrations))
	for _, reg := range a.Registrations {
		key := regKey{activityID: a.ID, participantID: reg.ParticipantID}
		if _, dup := keep[key]; dup {
			return fmt.Errorf("activity %s, participant %s: %w", a.ID, reg.ParticipantID, common.ErrDuplicateRegistration)
		}
		if _, ok := st.participants[reg.ParticipantID]; !ok {
			return fmt.Errorf("participant %s: %w", reg.ParticipantID, common.ErrNotFound)
		}
		keep[key] = struct{}{}
	}

	st.activities[a.ID] = storedActivity(a)

	for _, reg := range a.Registrations {
		key := regKey{activityID: a.ID, participantID: reg.ParticipantID}
		row := *reg
		row.ActivityID = a.ID
		row.Participant = nil
		row.CheckInTime = clonePtr(reg.CheckInTime)
		if existing, ok := st.registrations[key]; ok {
			// registration time is write-once
			row.RegistrationTime = existing.RegistrationTime
		}
		st.registrations[key] = row
	}
	for key := range st.registrations {
		if key.activityID != a.ID {
			continue
		}
		if _, ok := keep[key]; !ok {
			delete(st.registrations, key)
		}
	}
	return nil
}

func (r *activityRepository) Delete(ctx context.Context, id uuid.UUID) error {
	st := r.c.lock()
	defer r.c.unlock()

	if _, ok := st.activities[id]; !ok {
		return fmt.Errorf("activity %s: %w", id, common.ErrNotFound)
	}
	deleteActivity(st, id)
	return nil
}

func deleteActivity(st *state, id uuid.UUID) {
	for key := range st.registrations {
		if key.activityID == id {
			delete(st.registrations, key)
		}
	}
	delete(st.activities, id)
}

// loadActivity attaches the ordered ledger with participant copies
func loadActivity(st *state, row event.Activity) *event.Activity {
	a := row
	a.Registrations = nil
	for key, reg := range st.registrations {
		if key.activityID != a.ID {
			continue
		}
		entry := reg
		entry.CheckInTime = clonePtr(reg.CheckInTime)
		if p, ok := st.participants[key.participantID]; ok {
			entry.Participant = &p
		}
		a.Registrations = append(a.Registrations, &entry)
	}
	event.SortRegistrations(a.Registrations)
	return &a
}
