package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/gravadigital/billetterie-api/internal/domain/event"
	"github.com/gravadigital/billetterie-api/internal/domain/notification"
	"github.com/gravadigital/billetterie-api/internal/domain/participant"
	"github.com/gravadigital/billetterie-api/internal/logger"
	"github.com/gravadigital/billetterie-api/internal/storage/repository"
)

type regKey struct {
	activityID    uuid.UUID
	participantID uuid.UUID
}

// state holds rows the way the relational schema does: one map per table,
// relations stripped. Stored values are never mutated in place, so a shallow
// clone of the maps is a consistent snapshot.
type state struct {
	events        map[uuid.UUID]event.Event
	activities    map[uuid.UUID]event.Activity
	bookers       map[string]participant.Booker
	participants  map[uuid.UUID]participant.Participant
	registrations map[regKey]event.Registration
	notifications map[uuid.UUID]notification.Log
}

func newState() *state {
	return &state{
		events:        make(map[uuid.UUID]event.Event),
		activities:    make(map[uuid.UUID]event.Activity),
		bookers:       make(map[string]participant.Booker),
		participants:  make(map[uuid.UUID]participant.Participant),
		registrations: make(map[regKey]event.Registration),
		notifications: make(map[uuid.UUID]notification.Log),
	}
}

func (s *state) clone() *state {
	return &state{
		events:        maps.Clone(s.events),
		activities:    maps.Clone(s.activities),
		bookers:       maps.Clone(s.bookers),
		participants:  maps.Clone(s.participants),
		registrations: maps.Clone(s.registrations),
		notifications: maps.Clone(s.notifications),
	}
}

type store struct {
	mu sync.Mutex
	st *state
}

// Container is an in-memory repository.Container. Transactions are
// serialized by a single mutex and roll back by restoring a snapshot.
type Container struct {
	store *store
	inTx  bool
	log   *log.Logger
}

// NewContainer creates an empty in-memory container
func NewContainer() *Container {
	l := logger.Repository("memory_container")
	l.Info("Initializing in-memory repository container...")
	return &Container{
		store: &store{st: newState()},
		log:   l,
	}
}

func (c *Container) lock() *state {
	if !c.inTx {
		c.store.mu.Lock()
	}
	return c.store.st
}

func (c *Container) unlock() {
	if !c.inTx {
		c.store.mu.Unlock()
	}
}

// Events returns the event repository
func (c *Container) Events() repository.EventRepository {
	return &eventRepository{c: c}
}

// Activities returns the activity repository
func (c *Container) Activities() repository.ActivityRepository {
	return &activityRepository{c: c}
}

// Bookers returns the booker repository
func (c *Container) Bookers() repository.BookerRepository {
	return &bookerRepository{c: c}
}

// Participants returns the participant repository
func (c *Container) Participants() repository.ParticipantRepository {
	return &participantRepository{c: c}
}

// Notifications returns the notification log repository
func (c *Container) Notifications() repository.NotificationLogRepository {
	return &notificationRepository{c: c}
}

// WithinTransaction runs fn while holding the store lock. A nested call joins
// the outer transaction.
func (c *Container) WithinTransaction(ctx context.Context, fn func(tx repository.Container) error) (err error) {
	if c.inTx {
		return fn(c)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	snapshot := c.store.st.clone()
	tx := &Container{store: c.store, inTx: true, log: c.log}

	defer func() {
		if r := recover(); r != nil {
			c.store.st = snapshot
			panic(r)
		}
		if err != nil {
			c.log.Debug("Rolling back in-memory transaction", "error", err)
			c.store.st = snapshot
		}
	}()

	return fn(tx)
}

// Health always succeeds for the in-memory backend
func (c *Container) Health() error {
	return nil
}

// Close drops nothing; the data lives as long as the process
func (c *Container) Close() error {
	c.log.Info("In-memory repository container closed")
	return nil
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
