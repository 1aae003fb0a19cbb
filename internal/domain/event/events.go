package event

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DateLayout is the layout used for event dates on the wire
const DateLayout = "2006-01-02"

// Event is a dated gathering made of capacity-bounded activities. At most one
// event is active at a time.
type Event struct {
	ID          uuid.UUID   `json:"id" gorm:"type:uuid;primaryKey"`
	Date        time.Time   `json:"date" gorm:"type:date;not null"`
	Title       string      `json:"title" gorm:"not null"`
	Description string      `json:"description" gorm:"type:text"`
	Active      bool        `json:"active" gorm:"not null;default:false"`
	Location    string      `json:"location"`
	Activities  []*Activity `json:"activities,omitempty" gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time   `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time   `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName overrides the table name used by GORM
func (Event) TableName() string {
	return "events"
}

// BeforeCreate sets a UUID before creating the record
func (e *Event) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// NewEvent creates a new inactive event
func NewEvent(title, description, location string, date time.Time) *Event {
	return &Event{
		ID:          uuid.New(),
		Date:        date,
		Title:       strings.TrimSpace(title),
		Description: description,
		Location:    strings.TrimSpace(location),
		CreatedAt:   time.Now().UTC(),
	}
}

// ImagePath returns the relative path under which the event image is served
func (e *Event) ImagePath() string {
	if e.ID == uuid.Nil {
		return ""
	}
	return fmt.Sprintf("img/event/%s.png", e.ID)
}

// Validate checks if the event data is valid
func (e *Event) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if e.Date.IsZero() {
		return fmt.Errorf("date is required")
	}
	return nil
}

// FindActivity returns the activity with the given id, if it belongs to the event
func (e *Event) FindActivity(id uuid.UUID) *Activity {
	for _, a := range e.Activities {
		if a.ID == id {
			return a
		}
	}
	return nil
}

// HasActivity reports whether the activity belongs to the event
func (e *Event) HasActivity(id uuid.UUID) bool {
	return e.FindActivity(id) != nil
}

// AtTime combines the event date with a wall clock time ("15:04")
func (e *Event) AtTime(clock string) (time.Time, error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q, expected HH:MM", clock)
	}
	y, m, d := e.Date.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, time.UTC), nil
}
