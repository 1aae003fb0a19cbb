package memory

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/gravadigital/billetterie-api/internal/domain/common"
	"github.com/gravadigital/billetterie-api/internal/domain/notification"
)

type notificationRepository struct {
	c *Container
}

func storedLog(l *notification.Log) notification.Log {
	row := *l
	row.EventID = clonePtr(l.EventID)
	row.SentAt = clonePtr(l.SentAt)
	row.RegistrationKeys = slices.Clone(l.RegistrationKeys)
	return row
}

func (r *notificationRepository) Create(ctx context.Context, l *notification.Log) error {
	st := r.c.lock()
	defer r.c.unlock()

	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if _, exists := st.notifications[l.ID]; exists {
		return fmt.Errorf("notification %s: %w", l.ID, common.ErrConflict)
	}
	st.notifications[l.ID] = storedLog(l)
	return nil
}

func (r *notificationRepository) Update(ctx context.Context, l *notification.Log) error {
	st := r.c.lock()
	defer r.c.unlock()

	if _, ok := st.notifications[l.ID]; !ok {
		return fmt.Errorf("notification %s: %w", l.ID, common.ErrNotFound)
	}
	st.notifications[l.ID] = storedLog(l)
	return nil
}

func (r *notificationRepository) ListByRecipient(ctx context.Context, recipient string) ([]*notification.Log, error) {
	st := r.c.lock()
	defer r.c.unlock()

	var logs []*notification.Log
	for _, row := range st.notifications {
		if row.Recipient == recipient {
			l := storedLog(&row)
			logs = append(logs, &l)
		}
	}
	slices.SortFunc(logs, func(a, b *notification.Log) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return logs, nil
}
