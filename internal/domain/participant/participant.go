package participant

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Booker is the account holder who registers participants. The lower-cased
// email is the natural key.
type Booker struct {
	Email          string         `json:"email" gorm:"primaryKey"`
	FirstName      string         `json:"first_name" gorm:"not null"`
	LastName       string         `json:"last_name" gorm:"not null"`
	CreationTime   time.Time      `json:"creation_time" gorm:"not null;<-:create"`
	EmailSignature string         `json:"-" gorm:"uniqueIndex;not null"`
	ValidationTime *time.Time     `json:"validation_time,omitempty"`
	Participants   []*Participant `json:"participants,omitempty" gorm:"foreignKey:BookerEmail;references:Email;constraint:OnDelete:CASCADE"`
}

// TableName overrides the table name used by GORM
func (Booker) TableName() string {
	return "bookers"
}

// NewBooker creates a booker with a normalized email
func NewBooker(email, firstName, lastName, signature string) *Booker {
	return &Booker{
		Email:          NormalizeEmail(email),
		FirstName:      strings.TrimSpace(firstName),
		LastName:       strings.TrimSpace(lastName),
		CreationTime:   time.Now().UTC(),
		EmailSignature: signature,
	}
}

// NormalizeEmail lower-cases and trims an email so it can be used as the booker key
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsValidated reports whether the booker has opened their booking link at least once
func (b *Booker) IsValidated() bool {
	return b.ValidationTime != nil
}

// MarkValidated sets the validation time if it is not set yet. It returns
// true when the booker changed.
func (b *Booker) MarkValidated(now time.Time) bool {
	if b.ValidationTime != nil {
		return false
	}
	b.ValidationTime = &now
	return true
}

// FullName returns "first last"
func (b *Booker) FullName() string {
	return strings.TrimSpace(b.FirstName + " " + b.LastName)
}

// FindParticipant returns the booker's participant matching the given identity, if any
func (b *Booker) FindParticipant(firstName, lastName string, yearOfBirth int) *Participant {
	for _, p := range b.Participants {
		if p.SameAs(firstName, lastName, yearOfBirth) {
			return p
		}
	}
	return nil
}

// Participant is an attendee owned by a booker.
type Participant struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	FirstName   string    `json:"first_name" gorm:"not null"`
	LastName    string    `json:"last_name" gorm:"not null"`
	YearOfBirth int       `json:"year_of_birth" gorm:"not null"`
	BookerEmail string    `json:"booker_email" gorm:"not null;index"`
}

// TableName overrides the table name used by GORM
func (Participant) TableName() string {
	return "participants"
}

// BeforeCreate sets a UUID before creating the record
func (p *Participant) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// NewParticipant creates a participant owned by the given booker
func NewParticipant(bookerEmail, firstName, lastName string, yearOfBirth int) *Participant {
	return &Participant{
		ID:          uuid.New(),
		FirstName:   strings.TrimSpace(firstName),
		LastName:    strings.TrimSpace(lastName),
		YearOfBirth: yearOfBirth,
		BookerEmail: NormalizeEmail(bookerEmail),
	}
}

// SameAs reports whether the participant is the same person: first and last
// name compared case-insensitively and the same year of birth.
func (p *Participant) SameAs(firstName, lastName string, yearOfBirth int) bool {
	return p.YearOfBirth == yearOfBirth &&
		strings.EqualFold(strings.TrimSpace(p.FirstName), strings.TrimSpace(firstName)) &&
		strings.EqualFold(strings.TrimSpace(p.LastName), strings.TrimSpace(lastName))
}

// FullName returns "first last"
func (p *Participant) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}
