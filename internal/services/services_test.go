package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/gravadigital/billetterie-api/internal/domain/event"
	"github.com/gravadigital/billetterie-api/internal/domain/participant"
	"github.com/gravadigital/billetterie-api/internal/notification"
	"github.com/gravadigital/billetterie-api/internal/storage/memory"
	"github.com/gravadigital/billetterie-api/internal/storage/objects"
	"github.com/gravadigital/billetterie-api/internal/validation"
)

const testBaseURL = "https://billetterie.example.org"

type recordingNotifier struct {
	mu       sync.Mutex
	requests []notification.Request
}

func (n *recordingNotifier) Notify(ctx context.Context, req notification.Request) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.requests = append(n.requests, req)
}

func (n *recordingNotifier) all() []notification.Request {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notification.Request(nil), n.requests...)
}

type fakeQR struct{}

func (fakeQR) Generate(content string) ([]byte, error) {
	return []byte("qr:" + content), nil
}

type fakeSigner struct{}

func (fakeSigner) Sign(content string) (string, error) {
	return "sig" + strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, content), nil
}

// fakeClock advances one second on every reading
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type fixture struct {
	ctx           context.Context
	store         *memory.Container
	notifier      *recordingNotifier
	images        *objects.MemoryStore
	registrations *RegistrationService
	checkins      *CheckInService
	bookers       *BookerService
	events        *EventService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewContainer()
	notifier := &recordingNotifier{}
	images := objects.NewMemoryStore()
	v := validation.New(2005)
	clock := &fakeClock{now: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}

	f := &fixture{
		ctx:           context.Background(),
		store:         store,
		notifier:      notifier,
		images:        images,
		registrations: NewRegistrationService(store, v, notifier, fakeQR{}, 20),
		checkins:      NewCheckInService(store),
		bookers:       NewBookerService(store, v, fakeSigner{}, notifier),
		events:        NewEventService(store, images, v),
	}
	f.registrations.now = clock.Now
	f.checkins.now = clock.Now
	f.bookers.now = clock.Now
	return f
}

func (f *fixture) event(t *testing.T, title string, active bool) *event.Event {
	t.Helper()
	e := event.NewEvent(title, "", "Montréal", time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC))
	e.Active = active
	require.NoError(t, f.store.Events().Create(f.ctx, e))
	return e
}

func (f *fixture) activity(t *testing.T, e *event.Event, title string, maxParticipants, maxWaiting int) *event.Activity {
	t.Helper()
	start, err := e.AtTime("10:00")
	require.NoError(t, err)
	a := event.NewActivity(e.ID, title, "", start, maxParticipants, maxWaiting)
	require.NoError(t, f.store.Activities().Create(f.ctx, a))
	return a
}

func (f *fixture) booker(t *testing.T, email string) *participant.Booker {
	t.Helper()
	sig, _ := fakeSigner{}.Sign(email)
	b := participant.NewBooker(email, "Ada", "Lovelace", sig)
	require.NoError(t, f.store.Bookers().Create(f.ctx, b))
	return b
}

func (f *fixture) loadActivity(t *testing.T, id uuid.UUID) *event.Activity {
	t.Helper()
	a, err := f.store.Activities().GetByID(f.ctx, id)
	require.NoError(t, err)
	return a
}

func submission(b *participant.Booker, first, last string, year int) RegistrationSubmission {
	return RegistrationSubmission{
		ParticipantIdentity: ParticipantIdentity{FirstName: first, LastName: last, YearOfBirth: year},
		BookerSignature:     b.EmailSignature,
	}
}

func firstNames(regs []*event.Registration) []string {
	names := make([]string, 0, len(regs))
	for _, r := range regs {
		names = append(names, r.Participant.FirstName)
	}
	return names
}
