package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/gravadigital/billetterie-api/internal/domain/common"
	"github.com/gravadigital/billetterie-api/internal/domain/event"
	domainnotification "github.com/gravadigital/billetterie-api/internal/domain/notification"
	"github.com/gravadigital/billetterie-api/internal/domain/participant"
	"github.com/gravadigital/billetterie-api/internal/logger"
	"github.com/gravadigital/billetterie-api/internal/notification"
	"github.com/gravadigital/billetterie-api/internal/signature"
	"github.com/gravadigital/billetterie-api/internal/storage/repository"
	"github.com/gravadigital/billetterie-api/internal/validation"
)

// BookerService manages booker accounts and their booking pages
type BookerService struct {
	store     repository.Container
	validator *validation.Validator
	signer    signature.Signer
	notifier  notification.Notifier
	now       Clock
	log       *log.Logger
}

func NewBookerService(store repository.Container, v *validation.Validator, signer signature.Signer, notifier notification.Notifier) *BookerService {
	return &BookerService{
		store:     store,
		validator: v,
		signer:    signer,
		notifier:  notifier,
		now:       systemClock,
		log:       logger.Service("booker"),
	}
}

// BookerRequest is the data needed to create a booker
type BookerRequest struct {
	FirstName string `json:"first_name" validate:"notblank,max=100"`
	LastName  string `json:"last_name" validate:"notblank,max=100"`
	Email     string `json:"email" validate:"required,email,max=254"`
}

// UpdateBookerRequest changes a booker's names. The email is the key and cannot change.
type UpdateBookerRequest struct {
	FirstName string `json:"first_name" validate:"notblank,max=100"`
	LastName  string `json:"last_name" validate:"notblank,max=100"`
}

// CheckReturningRequest identifies a booker coming back to the site
type CheckReturningRequest struct {
	Email string `json:"email" validate:"notblank"`
}

// SignUp creates an unvalidated booker and mails them their booking link
func (s *BookerService) SignUp(ctx context.Context, req BookerRequest, baseURL string) (*participant.Booker, error) {
	booker, err := s.create(ctx, req)
	if err != nil {
		return nil, err
	}

	s.notify(ctx, domainnotification.KindBookerConfirmation, booker, baseURL)
	s.log.Info("Booker signed up", "email", booker.Email)
	return booker, nil
}

// AddBooker creates a booker on behalf of staff. The booker is validated right away.
func (s *BookerService) AddBooker(ctx context.Context, req BookerRequest) (*participant.Booker, error) {
	now := s.now()
	booker, err := s.create(ctx, req, func(b *participant.Booker) { b.MarkValidated(now) })
	if err != nil {
		return nil, err
	}
	s.log.Info("Booker added by staff", "email", booker.Email)
	return booker, nil
}

func (s *BookerService) create(ctx context.Context, req BookerRequest, opts ...func(*participant.Booker)) (*participant.Booker, error) {
	req.Email = participant.NormalizeEmail(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	email := req.Email
	if _, err := s.store.Bookers().GetByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("booker %s: %w", email, common.ErrConflict)
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	sig, err := s.signer.Sign(email)
	if err != nil {
		return nil, fmt.Errorf("sign booker email: %w", err)
	}

	booker := participant.NewBooker(email, req.FirstName, req.LastName, sig)
	booker.CreationTime = s.now()
	for _, opt := range opts {
		opt(booker)
	}

	if err := s.store.Bookers().Create(ctx, booker); err != nil {
		return nil, err
	}
	return booker, nil
}

// CheckReturning re-sends the confirmation link to an unvalidated booker and
// the returning-booker link to a validated one.
func (s *BookerService) CheckReturning(ctx context.Context, req CheckReturningRequest, baseURL string) error {
	req.Email = participant.NormalizeEmail(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return err
	}

	booker, err := s.store.Bookers().GetByEmail(ctx, req.Email)
	if err != nil {
		return err
	}

	kind := domainnotification.KindReturningBooker
	if !booker.IsValidated() {
		kind = domainnotification.KindBookerConfirmation
	}
	s.notify(ctx, kind, booker, baseURL)
	return nil
}

func (s *BookerService) notify(ctx context.Context, kind domainnotification.Kind, booker *participant.Booker, baseURL string) {
	s.notifier.Notify(ctx, notification.Request{
		Kind:       kind,
		Recipient:  booker.Email,
		BookerName: booker.FullName(),
		Link:       BookingLink(baseURL, booker.EmailSignature),
	})
}

// BookingView is the booking page of a booker for the active event
type BookingView struct {
	Event      *event.Event        `json:"event"`
	ImagePath  string              `json:"image_path"`
	Booker     *participant.Booker `json:"booker"`
	Activities []*ActivityBooking  `json:"activities"`
}

// Booking returns the booker's page for the active event. The first visit
// validates the booker's email.
func (s *BookerService) Booking(ctx context.Context, signature string) (*BookingView, error) {
	view, err := s.bookingView(ctx, signature)
	if err != nil {
		return nil, err
	}

	if view.Booker.MarkValidated(s.now()) {
		if err := s.store.Bookers().Update(ctx, view.Booker); err != nil {
			return nil, fmt.Errorf("validate booker %s: %w", view.Booker.Email, err)
		}
		s.log.Info("Booker validated", "email", view.Booker.Email)
	}
	return view, nil
}

// CheckInSheet returns the same view for staff without touching the booker
func (s *BookerService) CheckInSheet(ctx context.Context, signature string) (*BookingView, error) {
	return s.bookingView(ctx, signature)
}

func (s *BookerService) bookingView(ctx context.Context, signature string) (*BookingView, error) {
	booker, err := s.store.Bookers().GetBySignature(ctx, signature)
	if err != nil {
		return nil, err
	}
	ev, err := s.store.Events().GetActive(ctx)
	if err != nil {
		return nil, err
	}

	activities, err := bookerActivities(ctx, s.store, ev.ID, booker.Email)
	if err != nil {
		return nil, err
	}

	header := *ev
	header.Activities = nil
	return &BookingView{
		Event:      &header,
		ImagePath:  ev.ImagePath(),
		Booker:     booker,
		Activities: activities,
	}, nil
}

// ListBookers returns every booker ordered by name
func (s *BookerService) ListBookers(ctx context.Context) ([]*participant.Booker, error) {
	return s.store.Bookers().GetAll(ctx)
}

// GetBooker returns a booker by email
func (s *BookerService) GetBooker(ctx context.Context, email string) (*participant.Booker, error) {
	return s.store.Bookers().GetByEmail(ctx, email)
}

// UpdateBooker changes a booker's names
func (s *BookerService) UpdateBooker(ctx context.Context, email string, req UpdateBookerRequest) (*participant.Booker, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	booker, err := s.store.Bookers().GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	booker.FirstName = req.FirstName
	booker.LastName = req.LastName
	if err := s.store.Bookers().Update(ctx, booker); err != nil {
		return nil, err
	}
	return booker, nil
}
