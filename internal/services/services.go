package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gravadigital/billetterie-api/internal/domain/event"
	"github.com/gravadigital/billetterie-api/internal/domain/participant"
	"github.com/gravadigital/billetterie-api/internal/notification"
	"github.com/gravadigital/billetterie-api/internal/storage/repository"
)

// Clock returns the current time. Services use it so tests can pin timestamps.
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}

// BookingLink builds the personal booking page URL of a booker
func BookingLink(baseURL, signature string) string {
	return baseURL + "/bookings/" + signature
}

// BookedParticipant is a participant with the check-in state of one ledger entry
type BookedParticipant struct {
	*participant.Participant
	CheckInTime *time.Time `json:"check_in_time,omitempty"`
}

// ActivityBooking is one activity of an event seen from a booker: the booker's
// participants in each partition plus the activity totals.
type ActivityBooking struct {
	Activity     *event.Activity          `json:"activity"`
	Status       event.RegistrationStatus `json:"status"`
	RegularCount int                      `json:"regular_count"`
	WaitingCount int                      `json:"waiting_count"`
	Registered   []BookedParticipant      `json:"registered"`
	Waiting      []BookedParticipant      `json:"waiting"`
}

// bookerActivities lists the event's activities, by start time, with the
// booker's participants split by recomputed position.
func bookerActivities(ctx context.Context, store repository.Container, eventID uuid.UUID, bookerEmail string) ([]*ActivityBooking, error) {
	activities, err := store.Activities().GetByEventID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("load activities of event %s: %w", eventID, err)
	}

	bookings := make([]*ActivityBooking, 0, len(activities))
	for _, a := range activities {
		bookings = append(bookings, &ActivityBooking{
			Activity:     a,
			Status:       a.Status(),
			RegularCount: a.RegularCount(),
			WaitingCount: a.WaitingCount(),
			Registered:   bookedBy(a.NonWaitingParticipants(), bookerEmail),
			Waiting:      bookedBy(a.WaitingParticipants(), bookerEmail),
		})
	}
	return bookings, nil
}

func bookedBy(regs []*event.Registration, bookerEmail string) []BookedParticipant {
	booked := []BookedParticipant{}
	for _, r := range regs {
		if ownedBy(r, bookerEmail) {
			booked = append(booked, BookedParticipant{Participant: r.Participant, CheckInTime: r.CheckInTime})
		}
	}
	return booked
}

func ownedBy(r *event.Registration, bookerEmail string) bool {
	return r.Participant != nil && r.Participant.BookerEmail == bookerEmail
}

// summaryItems flattens the booker's registrations into notification items,
// activity by activity in ledger order.
func summaryItems(bookings []*ActivityBooking) []notification.Item {
	var items []notification.Item
	for _, ab := range bookings {
		for _, group := range []struct {
			booked  []BookedParticipant
			waiting bool
		}{{ab.Registered, false}, {ab.Waiting, true}} {
			for _, bp := range group.booked {
				items = append(items, notification.Item{
					ActivityID:      ab.Activity.ID,
					ActivityTitle:   ab.Activity.Title,
					ActivityStart:   ab.Activity.StartTime,
					ParticipantID:   bp.ID,
					ParticipantName: bp.FullName(),
					Waiting:         group.waiting,
				})
			}
		}
	}
	return items
}
