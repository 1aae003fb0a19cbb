package postgres

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"

	"github.com/gravadigital/billetterie-api/internal/domain/common"
	"github.com/gravadigital/billetterie-api/internal/domain/notification"
	"github.com/gravadigital/billetterie-api/internal/logger"
)

// NotificationLogRepository implements repository.NotificationLogRepository using GORM
type NotificationLogRepository struct {
	db  *gorm.DB
	log *log.Logger
}

// NewNotificationLogRepository creates a new PostgreSQL notification log repository
func NewNotificationLogRepository(db *gorm.DB) *NotificationLogRepository {
	return &NotificationLogRepository{
		db:  db,
		log: logger.Repository("notification_log"),
	}
}

func (r *NotificationLogRepository) Create(ctx context.Context, l *notification.Log) error {
	if err := r.db.WithContext(ctx).Create(l).Error; err != nil {
		r.log.Error("Failed to create notification log", "recipient", l.Recipient, "error", err)
		return fmt.Errorf("failed to create notification log: %w", err)
	}
	return nil
}

func (r *NotificationLogRepository) Update(ctx context.Context, l *notification.Log) error {
	res := r.db.WithContext(ctx).Model(&notification.Log{}).Where("id = ?", l.ID).Updates(map[string]any{
		"status":     l.Status,
		"attempts":   l.Attempts,
		"last_error": l.LastError,
		"sent_at":    l.SentAt,
	})
	if res.Error != nil {
		return fmt.Errorf("failed to update notification log: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("notification %s: %w", l.ID, common.ErrNotFound)
	}
	return nil
}

func (r *NotificationLogRepository) ListByRecipient(ctx context.Context, recipient string) ([]*notification.Log, error) {
	var logs []*notification.Log
	if err := r.db.WithContext(ctx).Where("recipient = ?", recipient).Order("created_at ASC").Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("failed to list notification logs: %w", err)
	}
	return logs, nil
}
