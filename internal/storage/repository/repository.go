package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/gravadigital/billetterie-api/internal/domain/event"
	"github.com/gravadigital/billetterie-api/internal/domain/notification"
	"github.com/gravadigital/billetterie-api/internal/domain/participant"
)

// Lookups return an error wrapping common.ErrNotFound when nothing matches.

// EventRepository define los métodos para interactuar con los eventos en la DB.
type EventRepository interface {
	Create(ctx context.Context, e *event.Event) error
	// GetByID loads the event with its activities ordered by start time
	GetByID(ctx context.Context, id uuid.UUID) (*event.Event, error)
	GetActive(ctx context.Context) (*event.Event, error)
	GetAll(ctx context.Context) ([]*event.Event, error)
	// Update writes the scalar fields; activities are left untouched
	Update(ctx context.Context, e *event.Event) error
	Delete(ctx context.Context, id uuid.UUID) error
	// DeactivateAllExcept clears the active flag of every other event
	DeactivateAllExcept(ctx context.Context, id uuid.UUID) error
}

// ActivityRepository persists activities together with their registration ledger.
type ActivityRepository interface {
	Create(ctx context.Context, a *event.Activity) error
	// GetByID loads the activity with its ledger in ledger order, participants included
	GetByID(ctx context.Context, id uuid.UUID) (*event.Activity, error)
	// GetByIDForUpdate is GetByID holding a row lock until the transaction ends
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*event.Activity, error)
	// GetByEventID loads the event's activities, ordered by start time, with their ledgers
	GetByEventID(ctx context.Context, eventID uuid.UUID) ([]*event.Activity, error)
	// Save writes the activity and reconciles its ledger: new entries are
	// inserted, existing ones updated, entries missing from the collection deleted.
	// Inserting an existing pair fails with common.ErrDuplicateRegistration.
	Save(ctx context.Context, a *event.Activity) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// BookerRepository define los métodos para interactuar con los bookers en la DB.
type BookerRepository interface {
	// Create fails with common.ErrConflict when the email is taken
	Create(ctx context.Context, b *participant.Booker) error
	GetByEmail(ctx context.Context, email string) (*participant.Booker, error)
	GetBySignature(ctx context.Context, signature string) (*participant.Booker, error)
	GetAll(ctx context.Context) ([]*participant.Booker, error)
	// Update writes names and validation time
	Update(ctx context.Context, b *participant.Booker) error
}

// ParticipantRepository define los métodos para interactuar con los participantes.
type ParticipantRepository interface {
	Create(ctx context.Context, p *participant.Participant) error
	GetByID(ctx context.Context, id uuid.UUID) (*participant.Participant, error)
}

// NotificationLogRepository stores delivery attempts
type NotificationLogRepository interface {
	Create(ctx context.Context, l *notification.Log) error
	Update(ctx context.Context, l *notification.Log) error
	ListByRecipient(ctx context.Context, recipient string) ([]*notification.Log, error)
}

// Container groups the repositories of one storage backend.
type Container interface {
	Events() EventRepository
	Activities() ActivityRepository
	Bookers() BookerRepository
	Participants() ParticipantRepository
	Notifications() NotificationLogRepository

	// WithinTransaction runs fn against repositories bound to one transaction.
	// The transaction commits when fn returns nil and rolls back otherwise.
	WithinTransaction(ctx context.Context, fn func(tx Container) error) error

	Health() error
	Close() error
}
