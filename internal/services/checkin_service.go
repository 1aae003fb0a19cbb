package services

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/gravadigital/billetterie-api/internal/domain/common"
	"github.com/gravadigital/billetterie-api/internal/logger"
	"github.com/gravadigital/billetterie-api/internal/storage/repository"
)

// CheckInService records participants arriving at an activity
type CheckInService struct {
	store repository.Container
	now   Clock
	log   *log.Logger
}

func NewCheckInService(store repository.Container) *CheckInService {
	return &CheckInService{
		store: store,
		now:   systemClock,
		log:   logger.Service("checkin"),
	}
}

// CheckInOutcome is the check-in state of an entry after the update
type CheckInOutcome struct {
	ActivityID    uuid.UUID  `json:"activity_id"`
	ParticipantID uuid.UUID  `json:"participant_id"`
	CheckedIn     bool       `json:"checked_in"`
	CheckInTime   *time.Time `json:"check_in_time,omitempty"`
	Waiting       bool       `json:"waiting"`
}

// SetCheckedIn stamps or clears the check-in time of a participant's entry.
// Regular and waiting participants can both be checked in. Repeating the
// current state is a no-op.
func (s *CheckInService) SetCheckedIn(ctx context.Context, activityID, participantID uuid.UUID, checked bool) (*CheckInOutcome, error) {
	var outcome *CheckInOutcome

	err := s.store.WithinTransaction(ctx, func(tx repository.Container) error {
		activity, err := tx.Activities().GetByIDForUpdate(ctx, activityID)
		if err != nil {
			return err
		}

		reg, ok := activity.FindRegistration(participantID)
		if !ok {
			return fmt.Errorf("participant %s in activity %s: %w", participantID, activityID, common.ErrNotFound)
		}

		reg.SetCheckedIn(checked, s.now())
		if err := tx.Activities().Save(ctx, activity); err != nil {
			return err
		}

		outcome = &CheckInOutcome{
			ActivityID:    activityID,
			ParticipantID: participantID,
			CheckedIn:     reg.IsCheckedIn(),
			CheckInTime:   reg.CheckInTime,
			Waiting:       activity.IsWaitingPosition(activity.Position(participantID)),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Check-in updated", "activity_id", activityID, "participant_id", participantID, "checked_in", outcome.CheckedIn)
	return outcome, nil
}
