package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/gravadigital/billetterie-api/internal/domain/common"
	"github.com/gravadigital/billetterie-api/internal/domain/event"
	domainnotification "github.com/gravadigital/billetterie-api/internal/domain/notification"
	"github.com/gravadigital/billetterie-api/internal/domain/participant"
	"github.com/gravadigital/billetterie-api/internal/logger"
	"github.com/gravadigital/billetterie-api/internal/notification"
	"github.com/gravadigital/billetterie-api/internal/qrcode"
	"github.com/gravadigital/billetterie-api/internal/storage/repository"
	"github.com/gravadigital/billetterie-api/internal/validation"
)

// RegistrationService admits participants into activities
type RegistrationService struct {
	store        repository.Container
	validator    *validation.Validator
	notifier     notification.Notifier
	qr           qrcode.Generator
	maxBatchSize int
	now          Clock
	log          *log.Logger
}

// NewRegistrationService crea el servicio de inscripciones
func NewRegistrationService(store repository.Container, v *validation.Validator, notifier notification.Notifier, qr qrcode.Generator, maxBatchSize int) *RegistrationService {
	return &RegistrationService{
		store:        store,
		validator:    v,
		notifier:     notifier,
		qr:           qr,
		maxBatchSize: maxBatchSize,
		now:          systemClock,
		log:          logger.Service("registration"),
	}
}

// ParticipantIdentity names a participant of a booker
type ParticipantIdentity struct {
	FirstName   string `json:"first_name" validate:"notblank,max=100"`
	LastName    string `json:"last_name" validate:"notblank,max=100"`
	YearOfBirth int    `json:"year_of_birth" validate:"birthyear"`
}

// RegistrationSubmission asks to register one participant of the booker owning the signature
type RegistrationSubmission struct {
	ParticipantIdentity
	BookerSignature string `json:"booker_signature" validate:"notblank"`
}

// RegistrationOutcome describes an accepted registration. Waiting and Position
// come from the entry's place in the ledger right after insertion; Position is
// zero-based.
type RegistrationOutcome struct {
	ActivityID  uuid.UUID                `json:"activity_id"`
	Participant *participant.Participant `json:"participant"`
	Position    int                      `json:"position"`
	Waiting     bool                     `json:"waiting"`
	Status      event.RegistrationStatus `json:"status"`
}

// RegisterParticipant registers one participant into an activity
func (s *RegistrationService) RegisterParticipant(ctx context.Context, activityID uuid.UUID, sub RegistrationSubmission) (*RegistrationOutcome, error) {
	if err := s.validator.Struct(sub); err != nil {
		return nil, err
	}

	outcome, err := s.register(ctx, activityID, sub.BookerSignature, sub.ParticipantIdentity)
	if err != nil {
		return nil, err
	}

	s.log.Info("Participant registered",
		"activity_id", activityID,
		"participant_id", outcome.Participant.ID,
		"position", outcome.Position,
		"waiting", outcome.Waiting,
	)
	return outcome, nil
}

// register runs one registration in its own transaction. The activity row is
// locked until commit so the capacity check and the insert cannot interleave
// with another registration.
//
// The lock covers one activity only: a registration of the same new person into
// another activity may create the participant first. The identity is unique per
// booker, so that loser fails with ErrConflict and is retried once, which then
// finds and reuses the committed participant.
func (s *RegistrationService) register(ctx context.Context, activityID uuid.UUID, signature string, who ParticipantIdentity) (*RegistrationOutcome, error) {
	outcome, err := s.registerOnce(ctx, activityID, signature, who)
	if errors.Is(err, common.ErrConflict) {
		s.log.Debug("Participant created concurrently, retrying", "activity_id", activityID)
		outcome, err = s.registerOnce(ctx, activityID, signature, who)
	}
	return outcome, err
}

func (s *RegistrationService) registerOnce(ctx context.Context, activityID uuid.UUID, signature string, who ParticipantIdentity) (*RegistrationOutcome, error) {
	var outcome *RegistrationOutcome

	err := s.store.WithinTransaction(ctx, func(tx repository.Container) error {
		activity, err := tx.Activities().GetByIDForUpdate(ctx, activityID)
		if err != nil {
			return err
		}

		booker, err := tx.Bookers().GetBySignature(ctx, signature)
		if err != nil {
			return err
		}

		p, err := resolveParticipant(ctx, tx, booker, who)
		if err != nil {
			return err
		}

		if !activity.HasRoom() {
			return fmt.Errorf("activity %s: %w", activity.ID, common.ErrCapacityExceeded)
		}

		if _, err := activity.AddRegistration(p, s.now()); err != nil {
			return err
		}
		if err := tx.Activities().Save(ctx, activity); err != nil {
			return err
		}

		pos := activity.Position(p.ID)
		outcome = &RegistrationOutcome{
			ActivityID:  activity.ID,
			Participant: p,
			Position:    pos,
			Waiting:     activity.IsWaitingPosition(pos),
			Status:      activity.Status(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// resolveParticipant reuses the booker's participant with the same identity or creates one
func resolveParticipant(ctx context.Context, tx repository.Container, booker *participant.Booker, who ParticipantIdentity) (*participant.Participant, error) {
	if p := booker.FindParticipant(who.FirstName, who.LastName, who.YearOfBirth); p != nil {
		return p, nil
	}

	p := participant.NewParticipant(booker.Email, who.FirstName, who.LastName, who.YearOfBirth)
	if err := tx.Participants().Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create participant: %w", err)
	}
	booker.Participants = append(booker.Participants, p)
	return p, nil
}

// BatchItem is one line of a batch registration
type BatchItem struct {
	ActivityID uuid.UUID `json:"activity_id" validate:"required"`
	ParticipantIdentity
}

// BatchSubmission registers several participants of one booker into activities of one event
type BatchSubmission struct {
	BookerSignature string      `json:"booker_signature" validate:"notblank"`
	Registrations   []BatchItem `json:"registrations" validate:"required,min=1"`
}

// SkipReason tells why a batch item was not registered
type SkipReason string

const (
	SkipCapacityExceeded      SkipReason = "capacity_exceeded"
	SkipDuplicateRegistration SkipReason = "duplicate_registration"
)

// SkippedItem is a batch item that could not be registered
type SkippedItem struct {
	Index      int        `json:"index"`
	ActivityID uuid.UUID  `json:"activity_id"`
	Reason     SkipReason `json:"reason"`
}

// BatchOutcome reports every item of a batch, registered or skipped
type BatchOutcome struct {
	Registered []*RegistrationOutcome `json:"registered"`
	Skipped    []SkippedItem          `json:"skipped"`
}

// RegisterParticipants processes a batch in request order. Full activities and
// repeated registrations are skipped; anything else aborts the remaining items.
// The booker is notified once with all their registrations for the event.
func (s *RegistrationService) RegisterParticipants(ctx context.Context, eventID uuid.UUID, sub BatchSubmission, baseURL string) (*BatchOutcome, error) {
	if err := s.validateBatch(sub); err != nil {
		return nil, err
	}

	ev, err := s.store.Events().GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	booker, err := s.store.Bookers().GetBySignature(ctx, sub.BookerSignature)
	if err != nil {
		return nil, err
	}
	for i, item := range sub.Registrations {
		if !ev.HasActivity(item.ActivityID) {
			return nil, fmt.Errorf("registrations[%d]: activity %s of event %s: %w", i, item.ActivityID, eventID, common.ErrNotFound)
		}
	}

	result := &BatchOutcome{Registered: []*RegistrationOutcome{}, Skipped: []SkippedItem{}}
	for i, item := range sub.Registrations {
		outcome, err := s.register(ctx, item.ActivityID, sub.BookerSignature, item.ParticipantIdentity)
		switch {
		case err == nil:
			result.Registered = append(result.Registered, outcome)
		case errors.Is(err, common.ErrCapacityExceeded):
			result.Skipped = append(result.Skipped, SkippedItem{Index: i, ActivityID: item.ActivityID, Reason: SkipCapacityExceeded})
		case errors.Is(err, common.ErrDuplicateRegistration):
			result.Skipped = append(result.Skipped, SkippedItem{Index: i, ActivityID: item.ActivityID, Reason: SkipDuplicateRegistration})
		default:
			return nil, fmt.Errorf("registrations[%d]: %w", i, err)
		}
	}

	s.log.Info("Batch registration processed",
		"event_id", eventID,
		"booker", booker.Email,
		"registered", len(result.Registered),
		"skipped", len(result.Skipped),
	)

	s.notifySummary(ctx, ev, booker, baseURL)
	return result, nil
}

func (s *RegistrationService) validateBatch(sub BatchSubmission) error {
	verr := &common.ValidationError{}
	if err := s.validator.Struct(sub); err != nil {
		var v *common.ValidationError
		if !errors.As(err, &v) {
			return err
		}
		verr.Fields = append(verr.Fields, v.Fields...)
	}
	if s.maxBatchSize > 0 && len(sub.Registrations) > s.maxBatchSize {
		verr.Add("registrations", fmt.Sprintf("must contain at most %d items", s.maxBatchSize))
	}

	// validator stops at the slice; items are checked one by one for indexed field names
	for i, item := range sub.Registrations {
		if err := s.validator.StructAt(fmt.Sprintf("registrations[%d]", i), item); err != nil {
			var v *common.ValidationError
			if !errors.As(err, &v) {
				return err
			}
			verr.Fields = append(verr.Fields, v.Fields...)
		}
	}
	return verr.OrNil()
}

// notifySummary sends the booker every registration they hold for the event.
// Failures are logged and never reach the caller.
func (s *RegistrationService) notifySummary(ctx context.Context, ev *event.Event, booker *participant.Booker, baseURL string) {
	bookings, err := bookerActivities(ctx, s.store, ev.ID, booker.Email)
	if err != nil {
		s.log.Error("Failed to build registration summary", "event_id", ev.ID, "booker", booker.Email, "error", err)
		return
	}

	link := BookingLink(baseURL, booker.EmailSignature)
	img, err := s.qr.Generate(link)
	if err != nil {
		s.log.Warn("Failed to generate QR code", "booker", booker.Email, "error", err)
	}

	eventID := ev.ID
	s.notifier.Notify(ctx, notification.Request{
		Kind:       domainnotification.KindRegistrationSummary,
		Recipient:  booker.Email,
		BookerName: booker.FullName(),
		EventID:    &eventID,
		EventTitle: ev.Title,
		Link:       link,
		Items:      summaryItems(bookings),
		QRCode:     img,
	})
}

// ParticipantSelector identifies a participant through their booker's signature
type ParticipantSelector struct {
	ParticipantIdentity
	BookerSignature string `json:"booker_signature" validate:"notblank"`
}

// RemoveParticipant deletes the selected participant's entry in the activity.
// The participant itself is kept.
func (s *RegistrationService) RemoveParticipant(ctx context.Context, activityID uuid.UUID, sel ParticipantSelector) error {
	if err := s.validator.Struct(sel); err != nil {
		return err
	}

	return s.store.WithinTransaction(ctx, func(tx repository.Container) error {
		booker, err := tx.Bookers().GetBySignature(ctx, sel.BookerSignature)
		if err != nil {
			return err
		}
		p := booker.FindParticipant(sel.FirstName, sel.LastName, sel.YearOfBirth)
		if p == nil {
			return fmt.Errorf("participant %s %s (%d): %w",
				strings.TrimSpace(sel.FirstName), strings.TrimSpace(sel.LastName), sel.YearOfBirth, common.ErrNotFound)
		}
		return s.removeEntry(ctx, tx, activityID, p.ID)
	})
}

// RemoveRegistration deletes a ledger entry by participant id
func (s *RegistrationService) RemoveRegistration(ctx context.Context, activityID, participantID uuid.UUID) error {
	return s.store.WithinTransaction(ctx, func(tx repository.Container) error {
		return s.removeEntry(ctx, tx, activityID, participantID)
	})
}

func (s *RegistrationService) removeEntry(ctx context.Context, tx repository.Container, activityID, participantID uuid.UUID) error {
	activity, err := tx.Activities().GetByIDForUpdate(ctx, activityID)
	if err != nil {
		return err
	}
	if !activity.RemoveRegistration(participantID) {
		return fmt.Errorf("registration of participant %s in activity %s: %w", participantID, activityID, common.ErrNotFound)
	}
	if err := tx.Activities().Save(ctx, activity); err != nil {
		return err
	}

	s.log.Info("Registration removed", "activity_id", activityID, "participant_id", participantID)
	return nil
}
