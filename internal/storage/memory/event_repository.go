package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/gravadigital/billetterie-api/internal/domain/common"
	"github.com/gravadigital/billetterie-api/internal/domain/event"
)

type eventRepository struct {
	c *Container
}

func storedEvent(e *event.Event) event.Event {
	row := *e
	row.Activities = nil
	return row
}

func checkSingleActive(st *state, e *event.Event) error {
	if !e.Active {
		return nil
	}
	for id, other := range st.events {
		if id != e.ID && other.Active {
			return fmt.Errorf("event %s is already active: %w", id, common.ErrConflict)
		}
	}
	return nil
}

func (r *eventRepository) Create(ctx context.Context, e *event.Event) error {
	st := r.c.lock()
	defer r.c.unlock()

	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if _, exists := st.events[e.ID]; exists {
		return fmt.Errorf("event %s: %w", e.ID, common.ErrConflict)
	}
	if err := checkSingleActive(st, e); err != nil {
		return err
	}
	st.events[e.ID] = storedEvent(e)
	return nil
}

func (r *eventRepository) GetByID(ctx context.Context, id uuid.UUID) (*event.Event, error) {
	st := r.c.lock()
	defer r.c.unlock()

	row, ok := st.events[id]
	if !ok {
		return nil, fmt.Errorf("event %s: %w", id, common.ErrNotFound)
	}
	return loadEvent(st, row), nil
}

func (r *eventRepository) GetActive(ctx context.Context) (*event.Event, error) {
	st := r.c.lock()
	defer r.c.unlock()

	for _, row := range st.events {
		if row.Active {
			return loadEvent(st, row), nil
		}
	}
	return nil, fmt.Errorf("active event: %w", common.ErrNotFound)
}

func (r *eventRepository) GetAll(ctx context.Context) ([]*event.Event, error) {
	st := r.c.lock()
	defer r.c.unlock()

	events := make([]*event.Event, 0, len(st.events))
	for _, row := range st.events {
		e := row
		events = append(events, &e)
	}
	slices.SortFunc(events, func(a, b *event.Event) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		return cmp.Compare(a.Title, b.Title)
	})
	return events, nil
}

func (r *eventRepository) Update(ctx context.Context, e *event.Event) error {
	st := r.c.lock()
	defer r.c.unlock()

	old, ok := st.events[e.ID]
	if !ok {
		return fmt.Errorf("event %s: %w", e.ID, common.ErrNotFound)
	}
	if err := checkSingleActive(st, e); err != nil {
		return err
	}
	row := storedEvent(e)
	row.CreatedAt = old.CreatedAt
	st.events[e.ID] = row
	return nil
}

func (r *eventRepository) Delete(ctx context.Context, id uuid.UUID) error {
	st := r.c.lock()
	defer r.c.unlock()

	if _, ok := st.events[id]; !ok {
		return fmt.Errorf("event %s: %w", id, common.ErrNotFound)
	}
	for aid, a := range st.activities {
		if a.EventID == id {
			deleteActivity(st, aid)
		}
	}
	delete(st.events, id)
	return nil
}

func (r *eventRepository) DeactivateAllExcept(ctx context.Context, id uuid.UUID) error {
	st := r.c.lock()
	defer r.c.unlock()

	for eid, row := range st.events {
		if eid != id && row.Active {
			row.Active = false
			st.events[eid] = row
		}
	}
	return nil
}

// loadEvent attaches the event's activities, without their ledgers
func loadEvent(st *state, row event.Event) *event.Event {
	e := row
	e.Activities = nil
	for _, a := range st.activities {
		if a.EventID == e.ID {
			activity := a
			activity.Registrations = nil
			e.Activities = append(e.Activities, &activity)
		}
	}
	sortActivities(e.Activities)
	return &e
}

func sortActivities(activities []*event.Activity) {
	slices.SortFunc(activities, func(a, b *event.Activity) int {
		if c := a.StartTime.Compare(b.StartTime); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})
}
