package notification

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Kind identifies the message a booker receives
type Kind string

const (
	// KindRegistrationSummary lists every registration of the booker for the event
	KindRegistrationSummary Kind = "registration_summary"
	// KindBookerConfirmation is sent after sign-up and asks the booker to open their link
	KindBookerConfirmation Kind = "booker_confirmation"
	// KindReturningBooker re-sends the booking link to a validated booker
	KindReturningBooker Kind = "returning_booker"
)

// Status is the delivery state of a notification
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

func (s *Status) Scan(value any) error {
	if value == nil {
		*s = StatusPending
		return nil
	}
	switch v := value.(type) {
	case string:
		*s = Status(v)
	case []byte:
		*s = Status(v)
	default:
		return fmt.Errorf("cannot scan %T into Status", value)
	}
	return nil
}

func (s Status) Value() (driver.Value, error) {
	return string(s), nil
}

// Log records one notification and its delivery outcome.
// RegistrationKeys holds "activity_id/participant_id" pairs in ledger order.
type Log struct {
	ID               uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	Kind             Kind           `json:"kind" gorm:"not null"`
	Recipient        string         `json:"recipient" gorm:"not null;index"`
	EventID          *uuid.UUID     `json:"event_id,omitempty" gorm:"type:uuid"`
	RegistrationKeys pq.StringArray `json:"registration_keys" gorm:"type:text[]"`
	Status           Status         `json:"status" gorm:"type:notification_status;not null;default:'pending'"`
	Attempts         int            `json:"attempts" gorm:"not null;default:0"`
	LastError        string         `json:"last_error,omitempty"`
	CreatedAt        time.Time      `json:"created_at" gorm:"autoCreateTime"`
	SentAt           *time.Time     `json:"sent_at,omitempty"`
}

// TableName overrides the table name used by GORM
func (Log) TableName() string {
	return "notification_logs"
}

// BeforeCreate sets a UUID before creating the record
func (l *Log) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// NewLog creates a pending delivery log entry
func NewLog(kind Kind, recipient string, eventID *uuid.UUID, keys []string) *Log {
	return &Log{
		ID:               uuid.New(),
		Kind:             kind,
		Recipient:        recipient,
		EventID:          eventID,
		RegistrationKeys: pq.StringArray(keys),
		Status:           StatusPending,
		CreatedAt:        time.Now().UTC(),
	}
}

// MarkSent records a successful delivery
func (l *Log) MarkSent(now time.Time) {
	l.Attempts++
	l.Status = StatusSent
	l.LastError = ""
	l.SentAt = &now
}

// MarkFailed records a failed delivery attempt
func (l *Log) MarkFailed(err error) {
	l.Attempts++
	l.Status = StatusFailed
	if err != nil {
		l.LastError = err.Error()
	}
}

// RegistrationKey formats the identity of a ledger entry
func RegistrationKey(activityID, participantID uuid.UUID) string {
	return activityID.String() + "/" + participantID.String()
}
