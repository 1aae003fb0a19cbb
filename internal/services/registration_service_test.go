package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gravadigital/billetterie-api/internal/domain/common"
	"github.com/gravadigital/billetterie-api/internal/domain/event"
	domainnotification "github.com/gravadigital/billetterie-api/internal/domain/notification"
	"github.com/gravadigital/billetterie-api/internal/domain/participant"
	"github.com/gravadigital/billetterie-api/internal/storage/repository"
	"github.com/gravadigital/billetterie-api/internal/validation"
)

func TestRegisterParticipant_FillsRegularThenWaitingThenRejects(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, "Devoxx4Kids", true)
	a := f.activity(t, ev, "Robots", 2, 1)
	b := f.booker(t, "parent@example.org")

	want := []struct {
		name     string
		position int
		waiting  bool
		status   event.RegistrationStatus
	}{
		{"Alice", 0, false, event.StatusOpen},
		{"Bob", 1, false, event.StatusOpen},
		{"Carol", 2, true, event.StatusWaitingList},
	}
	for _, w := range want {
		out, err := f.registrations.RegisterParticipant(f.ctx, a.ID, submission(b, w.name, "Lovelace", 2015))
		require.NoError(t, err, w.name)
		assert.Equal(t, w.position, out.Position, w.name)
		assert.Equal(t, w.waiting, out.Waiting, w.name)
		assert.Equal(t, w.status, out.Status, w.name)
	}

	_, err := f.registrations.RegisterParticipant(f.ctx, a.ID, submission(b, "Dave", "Lovelace", 2015))
	assert.ErrorIs(t, err, common.ErrCapacityExceeded)

	loaded := f.loadActivity(t, a.ID)
	assert.Len(t, loaded.Registrations, 3)
	assert.Equal(t, event.StatusWaitingList, loaded.Status())
	assert.Equal(t, []string{"Alice", "Bob"}, firstNames(loaded.NonWaitingParticipants()))
	assert.Equal(t, []string{"Carol"}, firstNames(loaded.WaitingParticipants()))

	// the rejected participant was rolled back with its registration
	booker, err := f.store.Bookers().GetByEmail(f.ctx, b.Email)
	require.NoError(t, err)
	assert.Nil(t, booker.FindParticipant("Dave", "Lovelace", 2015))
}

func TestRegisterParticipant_ReusesParticipantIgnoringCase(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, "Devoxx4Kids", true)
	a1 := f.activity(t, ev, "Robots", 5, 0)
	a2 := f.activity(t, ev, "Scratch", 5, 0)
	b := f.booker(t, "parent@example.org")

	first, err := f.registrations.RegisterParticipant(f.ctx, a1.ID, submission(b, "Ada", "Lovelace", 2015))
	require.NoError(t, err)
	second, err := f.registrations.RegisterParticipant(f.ctx, a2.ID, submission(b, "  ADA ", "lovelace", 2015))
	require.NoError(t, err)

	assert.Equal(t, first.Participant.ID, second.Participant.ID)

	booker, err := f.store.Bookers().GetByEmail(f.ctx, b.Email)
	require.NoError(t, err)
	assert.Len(t, booker.Participants, 1)
}

func TestRegisterParticipant_RetriesWhenParticipantCreatedConcurrently(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, "Devoxx4Kids", true)
	a := f.activity(t, ev, "Robots", 5, 0)
	b := f.booker(t, "parent@example.org")

	store := &contendedStore{Container: f.store}
	regs := NewRegistrationService(store, validation.New(2005), f.notifier, fakeQR{}, 20)

	out, err := regs.RegisterParticipant(f.ctx, a.ID, submission(b, "Ada", "Lovelace", 2015))
	require.NoError(t, err)
	require.NotNil(t, store.rival)
	assert.Equal(t, store.rival.ID, out.Participant.ID)

	booker, err := f.store.Bookers().GetByEmail(f.ctx, b.Email)
	require.NoError(t, err)
	assert.Len(t, booker.Participants, 1)
	assert.Len(t, f.loadActivity(t, a.ID).Registrations, 1)
}

func TestRegisterParticipant_RejectsDuplicate(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, "Devoxx4Kids", true)
	a := f.activity(t, ev, "Robots", 5, 5)
	b := f.booker(t, "parent@example.org")

	_, err := f.registrations.RegisterParticipant(f.ctx, a.ID, submission(b, "Ada", "Lovelace", 2015))
	require.NoError(t, err)
	_, err = f.registrations.RegisterParticipant(f.ctx, a.ID, submission(b, "ada", "LOVELACE", 2015))
	assert.ErrorIs(t, err, common.ErrDuplicateRegistration)

	assert.Len(t, f.loadActivity(t, a.ID).Registrations, 1)
}

func TestRegisterParticipant_Validation(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, "Devoxx4Kids", true)
	a := f.activity(t, ev, "Robots", 5, 5)
	b := f.booker(t, "parent@example.org")

	sub := submission(b, " ", "Lovelace", 2001)
	sub.BookerSignature = ""
	_, err := f.registrations.RegisterParticipant(f.ctx, a.ID, sub)
	require.ErrorIs(t, err, common.ErrValidation)

	var verr *common.ValidationError
	require.True(t, errors.As(err, &verr))
	fields := map[string]string{}
	for _, fe := range verr.Fields {
		fields[fe.Field] = fe.Message
	}
	assert.Equal(t, "is required", fields["first_name"])
	assert.Equal(t, "must be 2005 or later", fields["year_of_birth"])
	assert.Equal(t, "is required", fields["booker_signature"])

	assert.Empty(t, f.loadActivity(t, a.ID).Registrations)
}

func TestRegisterParticipant_NotFound(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, "Devoxx4Kids", true)
	a := f.activity(t, ev, "Robots", 5, 5)
	b := f.booker(t, "parent@example.org")

	_, err := f.registrations.RegisterParticipant(f.ctx, uuid.New(), submission(b, "Ada", "Lovelace", 2015))
	assert.ErrorIs(t, err, common.ErrNotFound)

	sub := submission(b, "Ada", "Lovelace", 2015)
	sub.BookerSignature = "unknown"
	_, err = f.registrations.RegisterParticipant(f.ctx, a.ID, sub)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestRegisterParticipant_ConcurrentRequestsRespectCapacity(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, "Devoxx4Kids", true)
	a := f.activity(t, ev, "Robots", 5, 2)
	b := f.booker(t, "parent@example.org")

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted, rejected := 0, 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.registrations.RegisterParticipant(f.ctx, a.ID, submission(b, fmt.Sprintf("Kid%d", i), "Lovelace", 2015))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				accepted++
			} else if errors.Is(err, common.ErrCapacityExceeded) {
				rejected++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 7, accepted)
	assert.Equal(t, 13, rejected)
	assert.Len(t, f.loadActivity(t, a.ID).Registrations, 7)
}

func batchItem(activityID uuid.UUID, first string) BatchItem {
	return BatchItem{
		ActivityID:          activityID,
		ParticipantIdentity: ParticipantIdentity{FirstName: first, LastName: "Lovelace", YearOfBirth: 2015},
	}
}

func TestRegisterParticipants_SkipsFullActivityAndNotifiesOnce(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, "Devoxx4Kids", true)
	robots := f.activity(t, ev, "Robots", 2, 0)
	full := f.activity(t, ev, "Full", 0, 0)
	scratch := f.activity(t, ev, "Scratch", 2, 0)
	b := f.booker(t, "parent@example.org")

	out, err := f.registrations.RegisterParticipants(f.ctx, ev.ID, BatchSubmission{
		BookerSignature: b.EmailSignature,
		Registrations: []BatchItem{
			batchItem(robots.ID, "Ada"),
			batchItem(full.ID, "Byron"),
			batchItem(scratch.ID, "Ada"),
		},
	}, testBaseURL)
	require.NoError(t, err)

	assert.Len(t, out.Registered, 2)
	require.Len(t, out.Skipped, 1)
	assert.Equal(t, SkippedItem{Index: 1, ActivityID: full.ID, Reason: SkipCapacityExceeded}, out.Skipped[0])

	total := 0
	for _, id := range []uuid.UUID{robots.ID, full.ID, scratch.ID} {
		total += len(f.loadActivity(t, id).Registrations)
	}
	assert.Equal(t, 2, total)

	reqs := f.notifier.all()
	require.Len(t, reqs, 1)
	req := reqs[0]
	assert.Equal(t, domainnotification.KindRegistrationSummary, req.Kind)
	assert.Equal(t, b.Email, req.Recipient)
	assert.Equal(t, testBaseURL+"/bookings/"+b.EmailSignature, req.Link)
	assert.Equal(t, []byte("qr:"+req.Link), req.QRCode)
	require.Len(t, req.Items, 2)
	assert.ElementsMatch(t, []uuid.UUID{robots.ID, scratch.ID}, []uuid.UUID{req.Items[0].ActivityID, req.Items[1].ActivityID})
	assert.Equal(t, "Ada Lovelace", req.Items[0].ParticipantName)
}

func TestRegisterParticipants_SkipsDuplicates(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, "Devoxx4Kids", true)
	robots := f.activity(t, ev, "Robots", 5, 0)
	b := f.booker(t, "parent@example.org")

	out, err := f.registrations.RegisterParticipants(f.ctx, ev.ID, BatchSubmission{
		BookerSignature: b.EmailSignature,
		Registrations:   []BatchItem{batchItem(robots.ID, "Ada"), batchItem(robots.ID, "ADA")},
	}, testBaseURL)
	require.NoError(t, err)

	assert.Len(t, out.Registered, 1)
	require.Len(t, out.Skipped, 1)
	assert.Equal(t, SkipDuplicateRegistration, out.Skipped[0].Reason)
}

func TestRegisterParticipants_AbortsOnForeignActivity(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, "Devoxx4Kids", true)
	other := f.event(t, "Other", false)
	robots := f.activity(t, ev, "Robots", 5, 0)
	foreign := f.activity(t, other, "Foreign", 5, 0)
	b := f.booker(t, "parent@example.org")

	_, err := f.registrations.RegisterParticipants(f.ctx, ev.ID, BatchSubmission{
		BookerSignature: b.EmailSignature,
		Registrations:   []BatchItem{batchItem(robots.ID, "Ada"), batchItem(foreign.ID, "Byron")},
	}, testBaseURL)
	assert.ErrorIs(t, err, common.ErrNotFound)

	assert.Empty(t, f.loadActivity(t, robots.ID).Registrations)
	assert.Empty(t, f.notifier.all())
}

func TestRegisterParticipants_AbortsOnUnknownEventOrBooker(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, "Devoxx4Kids", true)
	robots := f.activity(t, ev, "Robots", 5, 0)
	b := f.booker(t, "parent@example.org")

	sub := BatchSubmission{BookerSignature: b.EmailSignature, Registrations: []BatchItem{batchItem(robots.ID, "Ada")}}
	_, err := f.registrations.RegisterParticipants(f.ctx, uuid.New(), sub, testBaseURL)
	assert.ErrorIs(t, err, common.ErrNotFound)

	sub.BookerSignature = "unknown"
	_, err = f.registrations.RegisterParticipants(f.ctx, ev.ID, sub, testBaseURL)
	assert.ErrorIs(t, err, common.ErrNotFound)

	assert.Empty(t, f.loadActivity(t, robots.ID).Registrations)
}

func TestRegisterParticipants_ValidatesEveryItem(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, "Devoxx4Kids", true)
	robots := f.activity(t, ev, "Robots", 5, 0)
	b := f.booker(t, "parent@example.org")

	bad := batchItem(robots.ID, "")
	bad.YearOfBirth = 1990
	_, err := f.registrations.RegisterParticipants(f.ctx, ev.ID, BatchSubmission{
		BookerSignature: b.EmailSignature,
		Registrations:   []BatchItem{batchItem(robots.ID, "Ada"), bad},
	}, testBaseURL)
	require.ErrorIs(t, err, common.ErrValidation)

	var verr *common.ValidationError
	require.True(t, errors.As(err, &verr))
	var names []string
	for _, fe := range verr.Fields {
		names = append(names, fe.Field)
	}
	assert.ElementsMatch(t, []string{"registrations[1].first_name", "registrations[1].year_of_birth"}, names)
	assert.Empty(t, f.loadActivity(t, robots.ID).Registrations)

	_, err = f.registrations.RegisterParticipants(f.ctx, ev.ID, BatchSubmission{BookerSignature: b.EmailSignature}, testBaseURL)
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestRemoveParticipant_KeepsParticipantAndPromotesWaiting(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, "Devoxx4Kids", true)
	a := f.activity(t, ev, "Robots", 1, 1)
	b := f.booker(t, "parent@example.org")

	first, err := f.registrations.RegisterParticipant(f.ctx, a.ID, submission(b, "Ada", "Lovelace", 2015))
	require.NoError(t, err)
	second, err := f.registrations.RegisterParticipant(f.ctx, a.ID, submission(b, "Byron", "Lovelace", 2016))
	require.NoError(t, err)
	require.True(t, second.Waiting)

	sel := ParticipantSelector{
		ParticipantIdentity: ParticipantIdentity{FirstName: "ADA", LastName: "lovelace", YearOfBirth: 2015},
		BookerSignature:     b.EmailSignature,
	}
	require.NoError(t, f.registrations.RemoveParticipant(f.ctx, a.ID, sel))

	_, err = f.store.Participants().GetByID(f.ctx, first.Participant.ID)
	assert.NoError(t, err)

	loaded := f.loadActivity(t, a.ID)
	assert.Equal(t, []string{"Byron"}, firstNames(loaded.NonWaitingParticipants()))
	assert.Empty(t, loaded.WaitingParticipants())

	assert.ErrorIs(t, f.registrations.RemoveParticipant(f.ctx, a.ID, sel), common.ErrNotFound)

	sel.FirstName = "Nobody"
	assert.ErrorIs(t, f.registrations.RemoveParticipant(f.ctx, a.ID, sel), common.ErrNotFound)
}

func TestRemoveRegistration(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, "Devoxx4Kids", true)
	a := f.activity(t, ev, "Robots", 1, 0)
	b := f.booker(t, "parent@example.org")

	out, err := f.registrations.RegisterParticipant(f.ctx, a.ID, submission(b, "Ada", "Lovelace", 2015))
	require.NoError(t, err)

	require.NoError(t, f.registrations.RemoveRegistration(f.ctx, a.ID, out.Participant.ID))
	assert.Empty(t, f.loadActivity(t, a.ID).Registrations)
	assert.ErrorIs(t, f.registrations.RemoveRegistration(f.ctx, a.ID, out.Participant.ID), common.ErrNotFound)
	assert.ErrorIs(t, f.registrations.RemoveRegistration(f.ctx, uuid.New(), out.Participant.ID), common.ErrNotFound)

	// the freed spot can be taken again
	_, err = f.registrations.RegisterParticipant(f.ctx, a.ID, submission(b, "Ada", "Lovelace", 2015))
	assert.NoError(t, err)
}

// contendedStore makes the first participant creation lose against a rival
// transaction that commits the same person right after the loser rolls back.
type contendedStore struct {
	repository.Container
	pending *participant.Participant
	rival   *participant.Participant
}

func (s *contendedStore) WithinTransaction(ctx context.Context, fn func(tx repository.Container) error) error {
	err := s.Container.WithinTransaction(ctx, func(tx repository.Container) error {
		return fn(contendedTx{Container: tx, store: s})
	})
	if s.pending != nil {
		s.rival, s.pending = s.pending, nil
		if cerr := s.Container.Participants().Create(ctx, s.rival); cerr != nil {
			return cerr
		}
	}
	return err
}

type contendedTx struct {
	repository.Container
	store *contendedStore
}

func (t contendedTx) Participants() repository.ParticipantRepository {
	return contendedParticipants{ParticipantRepository: t.Container.Participants(), store: t.store}
}

type contendedParticipants struct {
	repository.ParticipantRepository
	store *contendedStore
}

func (p contendedParticipants) Create(ctx context.Context, np *participant.Participant) error {
	if p.store.rival == nil && p.store.pending == nil {
		p.store.pending = participant.NewParticipant(np.BookerEmail, np.FirstName, np.LastName, np.YearOfBirth)
		return fmt.Errorf("participant %s: %w", np.ID, common.ErrConflict)
	}
	return p.ParticipantRepository.Create(ctx, np)
}
