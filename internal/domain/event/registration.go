package event

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gravadigital/billetterie-api/internal/domain/participant"
)

// Registration is the ledger entry linking one participant to one activity.
// (ActivityID, ParticipantID) is its identity.
type Registration struct {
	ActivityID       uuid.UUID  `json:"activity_id" gorm:"type:uuid;primaryKey"`
	ParticipantID    uuid.UUID  `json:"participant_id" gorm:"type:uuid;primaryKey"`
	RegistrationTime time.Time  `json:"registration_time" gorm:"not null;<-:create"`
	IsWaiting        bool       `json:"is_waiting" gorm:"not null;default:false"`
	CheckInTime      *time.Time `json:"check_in_time,omitempty"`

	Participant *participant.Participant `json:"participant,omitempty" gorm:"foreignKey:ParticipantID;constraint:OnDelete:CASCADE"`
}

// TableName overrides the table name used by GORM
func (Registration) TableName() string {
	return "activity_participants"
}

// IsCheckedIn reports whether the participant has been checked in
func (r *Registration) IsCheckedIn() bool {
	return r.CheckInTime != nil
}

// SetCheckedIn stamps or clears the check-in time. Setting the current state
// again leaves the entry unchanged.
func (r *Registration) SetCheckedIn(checked bool, now time.Time) {
	switch {
	case checked && r.CheckInTime == nil:
		r.CheckInTime = &now
	case !checked:
		r.CheckInTime = nil
	}
}

// Compare orders entries by activity, then registration time, then participant id.
func (r *Registration) Compare(o *Registration) int {
	if c := strings.Compare(r.ActivityID.String(), o.ActivityID.String()); c != 0 {
		return c
	}
	if c := r.RegistrationTime.Compare(o.RegistrationTime); c != 0 {
		return c
	}
	return strings.Compare(r.ParticipantID.String(), o.ParticipantID.String())
}

// SortRegistrations sorts entries in place in ledger order.
func SortRegistrations(regs []*Registration) {
	slices.SortStableFunc(regs, func(a, b *Registration) int { return a.Compare(b) })
}
