package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	domain "github.com/gravadigital/billetterie-api/internal/domain/notification"
	"github.com/gravadigital/billetterie-api/internal/logger"
	"github.com/gravadigital/billetterie-api/internal/storage/repository"
)

// Item is one registration listed in a summary, in ledger order
type Item struct {
	ActivityID      uuid.UUID `json:"activity_id"`
	ActivityTitle   string    `json:"activity_title"`
	ActivityStart   time.Time `json:"activity_start"`
	ParticipantID   uuid.UUID `json:"participant_id"`
	ParticipantName string    `json:"participant_name"`
	Waiting         bool      `json:"waiting"`
}

// Request describes a message to send to a booker
type Request struct {
	Kind       domain.Kind `json:"kind"`
	Recipient  string      `json:"recipient"`
	BookerName string      `json:"booker_name"`
	EventID    *uuid.UUID  `json:"event_id,omitempty"`
	EventTitle string      `json:"event_title,omitempty"`
	Link       string      `json:"link"`
	Items      []Item      `json:"items,omitempty"`
	// QRCode is a PNG of Link, attached when present
	QRCode []byte `json:"qr_code,omitempty"`
}

// Keys returns the ledger keys of the listed registrations
func (r Request) Keys() []string {
	keys := make([]string, 0, len(r.Items))
	for _, it := range r.Items {
		keys = append(keys, domain.RegistrationKey(it.ActivityID, it.ParticipantID))
	}
	return keys
}

// Notifier accepts requests for asynchronous delivery. Notify never fails the caller.
type Notifier interface {
	Notify(ctx context.Context, req Request)
}

// Sender delivers a single request synchronously
type Sender interface {
	Send(ctx context.Context, req Request) error
}

// Subject returns the message subject for a request
func Subject(req Request) string {
	switch req.Kind {
	case domain.KindBookerConfirmation:
		return "Confirm your booking account"
	case domain.KindReturningBooker:
		return "Your booking link"
	default:
		if req.EventTitle != "" {
			return "Your registrations for " + req.EventTitle
		}
		return "Your registrations"
	}
}

// Body renders the plain text body of a request
func Body(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", req.BookerName)

	switch req.Kind {
	case domain.KindBookerConfirmation:
		b.WriteString("Open the link below to confirm your email and register participants:\n")
	case domain.KindReturningBooker:
		b.WriteString("Welcome back. Your booking link is:\n")
	default:
		if len(req.Items) == 0 {
			b.WriteString("You have no registrations at the moment.\n")
		} else {
			b.WriteString("Here are your current registrations:\n\n")
			for _, it := range req.Items {
				state := "registered"
				if it.Waiting {
					state = "waiting list"
				}
				fmt.Fprintf(&b, "- %s (%s): %s [%s]\n",
					it.ActivityTitle, it.ActivityStart.Format("15:04"), it.ParticipantName, state)
			}
			b.WriteString("\nManage them at:\n")
		}
	}

	b.WriteString(req.Link)
	b.WriteString("\n")
	return b.String()
}

// Dispatcher sends requests and records the outcome in the delivery log
type Dispatcher struct {
	sender Sender
	logs   repository.NotificationLogRepository
	log    *log.Logger
	now    func() time.Time
}

// NewDispatcher creates a dispatcher. logs may be nil to skip delivery logging.
func NewDispatcher(sender Sender, logs repository.NotificationLogRepository) *Dispatcher {
	return &Dispatcher{
		sender: sender,
		logs:   logs,
		log:    logger.Notification("dispatcher"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Deliver sends a request and updates its log entry
func (d *Dispatcher) Deliver(ctx context.Context, req Request) error {
	entry := domain.NewLog(req.Kind, req.Recipient, req.EventID, req.Keys())
	if d.logs != nil {
		if err := d.logs.Create(ctx, entry); err != nil {
			d.log.Warn("Failed to record notification", "recipient", req.Recipient, "error", err)
		}
	}

	sendErr := d.sender.Send(ctx, req)
	if sendErr != nil {
		entry.MarkFailed(sendErr)
		d.log.Error("Notification delivery failed", "kind", req.Kind, "recipient", req.Recipient, "error", sendErr)
	} else {
		entry.MarkSent(d.now())
		d.log.Info("Notification delivered", "kind", req.Kind, "recipient", req.Recipient, "items", len(req.Items))
	}

	if d.logs != nil {
		if err := d.logs.Update(ctx, entry); err != nil {
			d.log.Warn("Failed to update notification log", "id", entry.ID, "error", err)
		}
	}
	return sendErr
}
