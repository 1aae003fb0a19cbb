package migrations

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Schema models. They mirror the domain entities but carry the relations and
// constraints the migrations create; the application never reads through them.

// Event is a dated gathering; at most one row has active = true
type Event struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	Date        time.Time `gorm:"type:date;not null"`
	Title       string    `gorm:"not null"`
	Description string    `gorm:"type:text"`
	Active      bool      `gorm:"not null;default:false"`
	Location    string
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`

	// Relations
	Activities []Activity `gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE"`
}

func (Event) TableName() string {
	return "events"
}

// Activity has a regular capacity and a waiting queue
type Activity struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	EventID         uuid.UUID `gorm:"type:uuid;not null"`
	Title           string    `gorm:"not null"`
	Description     string    `gorm:"type:text"`
	StartTime       time.Time `gorm:"not null"`
	MaxParticipants int       `gorm:"not null;default:0"`
	MaxWaitingQueue int       `gorm:"not null;default:0"`

	// Relations
	Registrations []ActivityParticipant `gorm:"foreignKey:ActivityID;constraint:OnDelete:CASCADE"`
}

func (Activity) TableName() string {
	return "activities"
}

// Booker is keyed by lower-cased email
type Booker struct {
	Email          string    `gorm:"primaryKey"`
	FirstName      string    `gorm:"not null"`
	LastName       string    `gorm:"not null"`
	CreationTime   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	EmailSignature string    `gorm:"uniqueIndex;not null"`
	ValidationTime *time.Time

	// Relations
	Participants []Participant `gorm:"foreignKey:BookerEmail;references:Email;constraint:OnDelete:CASCADE,OnUpdate:CASCADE"`
}

func (Booker) TableName() string {
	return "bookers"
}

// Participant is an attendee owned by a booker
type Participant struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	FirstName   string    `gorm:"not null"`
	LastName    string    `gorm:"not null"`
	YearOfBirth int       `gorm:"not null"`
	BookerEmail string    `gorm:"not null"`

	// Relations
	Registrations []ActivityParticipant `gorm:"foreignKey:ParticipantID;constraint:OnDelete:CASCADE"`
}

func (Participant) TableName() string {
	return "participants"
}

// ActivityParticipant is the registration ledger; the composite key forbids duplicates
type ActivityParticipant struct {
	ActivityID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	ParticipantID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	RegistrationTime time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	IsWaiting        bool      `gorm:"not null;default:false"`
	CheckInTime      *time.Time
}

func (ActivityParticipant) TableName() string {
	return "activity_participants"
}

// NotificationLog records every notification and its delivery status
type NotificationLog struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	Kind             string         `gorm:"size:50;not null"`
	Recipient        string         `gorm:"not null"`
	EventID          *uuid.UUID     `gorm:"type:uuid"`
	RegistrationKeys pq.StringArray `gorm:"type:text[]"`
	Status           string         `gorm:"type:notification_status;not null;default:'pending'"`
	Attempts         int            `gorm:"not null;default:0"`
	LastError        string         `gorm:"type:text"`
	CreatedAt        time.Time      `gorm:"autoCreateTime"`
	SentAt           *time.Time
}

func (NotificationLog) TableName() string {
	return "notification_logs"
}

// AllModels returns the schema models in creation order
func AllModels() []any {
	return []any{
		&Event{},
		&Activity{},
		&Booker{},
		&Participant{},
		&ActivityParticipant{},
		&NotificationLog{},
	}
}
