package event

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gravadigital/billetterie-api/internal/domain/common"
	"github.com/gravadigital/billetterie-api/internal/domain/participant"
)

// Activity is a timed sub-event with a regular capacity and a waiting queue.
// It exclusively owns its registrations: every change to the ledger goes
// through AddRegistration / RemoveRegistration and is persisted by saving the
// activity.
type Activity struct {
	ID              uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	EventID         uuid.UUID       `json:"event_id" gorm:"type:uuid;not null;index"`
	Title           string          `json:"title" gorm:"not null"`
	Description     string          `json:"description" gorm:"type:text"`
	StartTime       time.Time       `json:"start_time" gorm:"not null"`
	MaxParticipants int             `json:"max_participants" gorm:"not null;default:0"`
	MaxWaitingQueue int             `json:"max_waiting_queue" gorm:"not null;default:0"`
	Registrations   []*Registration `json:"-" gorm:"foreignKey:ActivityID;constraint:OnDelete:CASCADE"`
}

// TableName overrides the table name used by GORM
func (Activity) TableName() string {
	return "activities"
}

// BeforeCreate sets a UUID before creating the record
func (a *Activity) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// NewActivity creates an activity belonging to the given event
func NewActivity(eventID uuid.UUID, title, description string, startTime time.Time, maxParticipants, maxWaitingQueue int) *Activity {
	return &Activity{
		ID:              uuid.New(),
		EventID:         eventID,
		Title:           strings.TrimSpace(title),
		Description:     description,
		StartTime:       startTime,
		MaxParticipants: maxParticipants,
		MaxWaitingQueue: maxWaitingQueue,
	}
}

// Validate checks the capacity invariants
func (a *Activity) Validate() error {
	v := &common.ValidationError{}
	if strings.TrimSpace(a.Title) == "" {
		v.Add("title", "is required")
	}
	if a.EventID == uuid.Nil {
		v.Add("event_id", "is required")
	}
	if a.MaxParticipants < 0 {
		v.Add("max_participants", "must be greater than or equal to 0")
	}
	if a.MaxWaitingQueue < 0 {
		v.Add("max_waiting_queue", "must be greater than or equal to 0")
	}
	return v.OrNil()
}

// Capacity is the total number of entries the activity admits
func (a *Activity) Capacity() int {
	return a.MaxParticipants + a.MaxWaitingQueue
}

// OrderedRegistrations returns a sorted copy of the ledger
func (a *Activity) OrderedRegistrations() []*Registration {
	regs := make([]*Registration, len(a.Registrations))
	copy(regs, a.Registrations)
	SortRegistrations(regs)
	return regs
}

// NonWaitingParticipants returns the first MaxParticipants entries in ledger order
func (a *Activity) NonWaitingParticipants() []*Registration {
	regs := a.OrderedRegistrations()
	return regs[:min(len(regs), a.MaxParticipants)]
}

// WaitingParticipants returns at most MaxWaitingQueue entries following the regular ones
func (a *Activity) WaitingParticipants() []*Registration {
	regs := a.OrderedRegistrations()
	start := min(len(regs), a.MaxParticipants)
	end := min(len(regs), a.Capacity())
	return regs[start:end]
}

// RegularCount is the number of entries in the regular partition
func (a *Activity) RegularCount() int {
	return min(len(a.Registrations), a.MaxParticipants)
}

// WaitingCount is the number of entries in the waiting partition
func (a *Activity) WaitingCount() int {
	return max(0, min(len(a.Registrations), a.Capacity())-a.MaxParticipants)
}

// Status derives the admission state from the live number of entries
func (a *Activity) Status() RegistrationStatus {
	total := len(a.Registrations)
	switch {
	case total <= a.MaxParticipants:
		return StatusOpen
	case total <= a.Capacity():
		return StatusWaitingList
	default:
		return StatusClosed
	}
}

// HasRoom reports whether one more entry fits in the regular spots or the waiting queue
func (a *Activity) HasRoom() bool {
	return len(a.Registrations) < a.Capacity()
}

// FindRegistration looks the participant up in the regular partition, then in the waiting one.
func (a *Activity) FindRegistration(participantID uuid.UUID) (*Registration, bool) {
	for _, r := range a.NonWaitingParticipants() {
		if r.ParticipantID == participantID {
			return r, true
		}
	}
	for _, r := range a.WaitingParticipants() {
		if r.ParticipantID == participantID {
			return r, true
		}
	}
	return nil, false
}

// IsRegistered reports whether the participant has an entry in the ledger
func (a *Activity) IsRegistered(participantID uuid.UUID) bool {
	for _, r := range a.Registrations {
		if r.ParticipantID == participantID {
			return true
		}
	}
	return false
}

// AddRegistration appends a ledger entry for p. The entry is classified as
// waiting when it lands past the regular spots.
func (a *Activity) AddRegistration(p *participant.Participant, now time.Time) (*Registration, error) {
	if a.IsRegistered(p.ID) {
		return nil, fmt.Errorf("activity %s, participant %s: %w", a.ID, p.ID, common.ErrDuplicateRegistration)
	}
	if !a.HasRoom() {
		return nil, fmt.Errorf("activity %s: %w", a.ID, common.ErrCapacityExceeded)
	}

	// Entries keep insertion order even when the clock has not advanced since
	// the previous registration. Postgres stores microseconds.
	now = now.UTC().Truncate(time.Microsecond)
	if last := a.lastRegistrationTime(); !last.IsZero() && !now.After(last) {
		now = last.Add(time.Microsecond)
	}

	reg := &Registration{
		ActivityID:       a.ID,
		ParticipantID:    p.ID,
		RegistrationTime: now,
		IsWaiting:        len(a.Registrations) >= a.MaxParticipants,
		Participant:      p,
	}
	a.Registrations = append(a.Registrations, reg)
	return reg, nil
}

// RemoveRegistration drops the participant's entry from the ledger. It returns
// false when there was none.
func (a *Activity) RemoveRegistration(participantID uuid.UUID) bool {
	for i, r := range a.Registrations {
		if r.ParticipantID == participantID {
			a.Registrations = append(a.Registrations[:i], a.Registrations[i+1:]...)
			return true
		}
	}
	return false
}

// Position returns the zero-based ledger position of the participant, or -1
func (a *Activity) Position(participantID uuid.UUID) int {
	for i, r := range a.OrderedRegistrations() {
		if r.ParticipantID == participantID {
			return i
		}
	}
	return -1
}

// IsWaitingPosition reports whether a ledger position falls in the waiting partition
func (a *Activity) IsWaitingPosition(pos int) bool {
	return pos >= a.MaxParticipants
}

func (a *Activity) lastRegistrationTime() time.Time {
	var last time.Time
	for _, r := range a.Registrations {
		if r.RegistrationTime.After(last) {
			last = r.RegistrationTime
		}
	}
	return last
}

// RegistrationStatus is the admission state of an activity
type RegistrationStatus byte

const (
	StatusOpen RegistrationStatus = iota
	StatusWaitingList
	StatusClosed
)

func (s RegistrationStatus) String() string {
	switch s {
	case StatusOpen:
		return "OPEN"
	case StatusWaitingList:
		return "WAITING_LIST"
	case StatusClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// MarshalJSON implements the json.Marshaler interface
func (s RegistrationStatus) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON implements the json.Unmarshaler interface
func (s *RegistrationStatus) UnmarshalJSON(data []byte) error {
	str := string(data)
	if len(str) >= 2 && str[0] == '"' && str[len(str)-1] == '"' {
		str = str[1 : len(str)-1]
	}

	status, valid := StatusFromString(str)
	if !valid {
		return fmt.Errorf("invalid registration status: %s", str)
	}
	*s = status
	return nil
}

// StatusFromString converts a string to a RegistrationStatus
func StatusFromString(s string) (RegistrationStatus, bool) {
	switch strings.ToUpper(s) {
	case "OPEN":
		return StatusOpen, true
	case "WAITING_LIST":
		return StatusWaitingList, true
	case "CLOSED":
		return StatusClosed, true
	default:
		return StatusOpen, false
	}
}
