package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gravadigital/billetterie-api/internal/domain/common"
	domainnotification "github.com/gravadigital/billetterie-api/internal/domain/notification"
)

func TestSignUp(t *testing.T) {
	f := newFixture(t)

	b, err := f.bookers.SignUp(f.ctx, BookerRequest{FirstName: "Ada", LastName: "Lovelace", Email: " Parent@Example.ORG "}, testBaseURL)
	require.NoError(t, err)
	assert.Equal(t, "parent@example.org", b.Email)
	assert.NotEmpty(t, b.EmailSignature)
	assert.False(t, b.IsValidated())

	reqs := f.notifier.all()
	require.Len(t, reqs, 1)
	assert.Equal(t, domainnotification.KindBookerConfirmation, reqs[0].Kind)
	assert.Equal(t, testBaseURL+"/bookings/"+b.EmailSignature, reqs[0].Link)

	_, err = f.bookers.SignUp(f.ctx, BookerRequest{FirstName: "Ada", LastName: "Lovelace", Email: "PARENT@example.org"}, testBaseURL)
	assert.ErrorIs(t, err, common.ErrConflict)

	_, err = f.bookers.SignUp(f.ctx, BookerRequest{FirstName: "Ada", LastName: "Lovelace", Email: "not-an-email"}, testBaseURL)
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestBookerEmailTrimmedBeforeValidation(t *testing.T) {
	f := newFixture(t)

	b, err := f.bookers.SignUp(f.ctx, BookerRequest{FirstName: "Ada", LastName: "Lovelace", Email: " parent@example.org"}, testBaseURL)
	require.NoError(t, err)
	assert.Equal(t, "parent@example.org", b.Email)

	added, err := f.bookers.AddBooker(f.ctx, BookerRequest{FirstName: "Alan", LastName: "Turing", Email: "\tstaff@Example.org  "})
	require.NoError(t, err)
	assert.Equal(t, "staff@example.org", added.Email)

	assert.NoError(t, f.bookers.CheckReturning(f.ctx, CheckReturningRequest{Email: "  Parent@example.org\n"}, testBaseURL))

	err = f.bookers.CheckReturning(f.ctx, CheckReturningRequest{Email: "   "}, testBaseURL)
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestCheckReturning(t *testing.T) {
	f := newFixture(t)
	f.event(t, "Devoxx4Kids", true)

	b, err := f.bookers.SignUp(f.ctx, BookerRequest{FirstName: "Ada", LastName: "Lovelace", Email: "parent@example.org"}, testBaseURL)
	require.NoError(t, err)

	require.NoError(t, f.bookers.CheckReturning(f.ctx, CheckReturningRequest{Email: "parent@example.org"}, testBaseURL))
	_, err = f.bookers.Booking(f.ctx, b.EmailSignature)
	require.NoError(t, err)
	require.NoError(t, f.bookers.CheckReturning(f.ctx, CheckReturningRequest{Email: "PARENT@example.org"}, testBaseURL))

	reqs := f.notifier.all()
	require.Len(t, reqs, 3)
	assert.Equal(t, domainnotification.KindBookerConfirmation, reqs[1].Kind)
	assert.Equal(t, domainnotification.KindReturningBooker, reqs[2].Kind)

	err = f.bookers.CheckReturning(f.ctx, CheckReturningRequest{Email: "nobody@example.org"}, testBaseURL)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestBooking_ValidatesAndSplitsPartitions(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, "Devoxx4Kids", true)
	a := f.activity(t, ev, "Robots", 1, 2)
	b := f.booker(t, "parent@example.org")
	other := f.booker(t, "other@example.org")

	_, err := f.registrations.RegisterParticipant(f.ctx, a.ID, submission(other, "Olga", "Other", 2015))
	require.NoError(t, err)
	_, err = f.registrations.RegisterParticipant(f.ctx, a.ID, submission(b, "Ada", "Lovelace", 2015))
	require.NoError(t, err)

	view, err := f.bookers.Booking(f.ctx, b.EmailSignature)
	require.NoError(t, err)
	assert.Equal(t, ev.ID, view.Event.ID)
	assert.Equal(t, ev.ImagePath(), view.ImagePath)
	require.Len(t, view.Activities, 1)

	ab := view.Activities[0]
	assert.Equal(t, 1, ab.RegularCount)
	assert.Equal(t, 1, ab.WaitingCount)
	assert.Empty(t, ab.Registered)
	require.Len(t, ab.Waiting, 1)
	assert.Equal(t, "Ada", ab.Waiting[0].FirstName)

	stored, err := f.store.Bookers().GetByEmail(f.ctx, b.Email)
	require.NoError(t, err)
	require.NotNil(t, stored.ValidationTime)
	firstValidation := *stored.ValidationTime

	// later visits keep the first validation time
	_, err = f.bookers.Booking(f.ctx, b.EmailSignature)
	require.NoError(t, err)
	stored, err = f.store.Bookers().GetByEmail(f.ctx, b.Email)
	require.NoError(t, err)
	assert.True(t, firstValidation.Equal(*stored.ValidationTime))

	// staff view leaves the other booker unvalidated
	_, err = f.bookers.CheckInSheet(f.ctx, other.EmailSignature)
	require.NoError(t, err)
	stored, err = f.store.Bookers().GetByEmail(f.ctx, other.Email)
	require.NoError(t, err)
	assert.Nil(t, stored.ValidationTime)
}

func TestBooking_NotFound(t *testing.T) {
	f := newFixture(t)
	b := f.booker(t, "parent@example.org")

	_, err := f.bookers.Booking(f.ctx, b.EmailSignature)
	assert.ErrorIs(t, err, common.ErrNotFound, "no active event")

	f.event(t, "Devoxx4Kids", true)
	_, err = f.bookers.Booking(f.ctx, "unknown")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestAdminBookers(t *testing.T) {
	f := newFixture(t)

	added, err := f.bookers.AddBooker(f.ctx, BookerRequest{FirstName: "Grace", LastName: "Hopper", Email: "grace@example.org"})
	require.NoError(t, err)
	assert.True(t, added.IsValidated())
	assert.Empty(t, f.notifier.all())

	updated, err := f.bookers.UpdateBooker(f.ctx, "grace@example.org", UpdateBookerRequest{FirstName: "Grace B.", LastName: "Hopper"})
	require.NoError(t, err)
	assert.Equal(t, "Grace B.", updated.FirstName)

	_, err = f.bookers.UpdateBooker(f.ctx, "nobody@example.org", UpdateBookerRequest{FirstName: "X", LastName: "Y"})
	assert.ErrorIs(t, err, common.ErrNotFound)

	all, err := f.bookers.ListBookers(f.ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Grace B.", all[0].FirstName)
}
