package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"

	"github.com/gravadigital/billetterie-api/internal/config"
	"github.com/gravadigital/billetterie-api/internal/logger"
	"github.com/gravadigital/billetterie-api/internal/storage/repository"
)

// Container implements repository.Container on top of GORM
type Container struct {
	db               *gorm.DB
	log              *log.Logger
	eventRepo        *EventRepository
	activityRepo     *ActivityRepository
	bookerRepo       *BookerRepository
	participantRepo  *ParticipantRepository
	notificationRepo *NotificationLogRepository
}

// NewContainer connects, migrates and checks the database
func NewContainer(cfg *config.Config) (*Container, error) {
	log := logger.Repository("postgres_container")
	log.Info("Initializing PostgreSQL repository container...")

	db, err := Connect(cfg)
	if err != nil {
		log.Error("Failed to connect to database", "error", err)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := AutoMigrate(db); err != nil {
		log.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	container := NewContainerWithDB(db)
	if err := container.Health(); err != nil {
		log.Error("Container health check failed", "error", err)
		return nil, fmt.Errorf("container health check failed: %w", err)
	}

	log.Info("PostgreSQL repository container initialized successfully")
	return container, nil
}

// NewContainerWithDB creates a container with an existing database connection
func NewContainerWithDB(db *gorm.DB) *Container {
	return &Container{
		db:               db,
		log:              logger.Repository("postgres_container"),
		eventRepo:        NewEventRepository(db),
		activityRepo:     NewActivityRepository(db),
		bookerRepo:       NewBookerRepository(db),
		participantRepo:  NewParticipantRepository(db),
		notificationRepo: NewNotificationLogRepository(db),
	}
}

// Events returns the event repository
func (c *Container) Events() repository.EventRepository {
	return c.eventRepo
}

// Activities returns the activity repository
func (c *Container) Activities() repository.ActivityRepository {
	return c.activityRepo
}

// Bookers returns the booker repository
func (c *Container) Bookers() repository.BookerRepository {
	return c.bookerRepo
}

// Participants returns the participant repository
func (c *Container) Participants() repository.ParticipantRepository {
	return c.participantRepo
}

// Notifications returns the notification log repository
func (c *Container) Notifications() repository.NotificationLogRepository {
	return c.notificationRepo
}

// WithinTransaction runs fn with repositories bound to one database
// transaction. Nested calls become savepoints.
func (c *Container) WithinTransaction(ctx context.Context, fn func(tx repository.Container) error) error {
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewContainerWithDB(tx))
	})
}

// Health pings the database and checks every table is reachable
func (c *Container) Health() error {
	c.log.Debug("Performing container health check...")

	if err := HealthCheck(c.db, 5*time.Second); err != nil {
		c.log.Error("Database health check failed", "error", err)
		return fmt.Errorf("database health check failed: %w", err)
	}

	tables := []string{"events", "activities", "bookers", "participants", "activity_participants", "notification_logs"}
	for _, table := range tables {
		var count int64
		if err := c.db.Table(table).Count(&count).Error; err != nil {
			c.log.Error("Table health check failed", "table", table, "error", err)
			return fmt.Errorf("table %s health check failed: %w", table, err)
		}
	}

	metrics := GetPoolMetrics(c.db)
	c.log.Debug("Container health check completed",
		"open_connections", metrics.OpenConnections,
		"in_use_connections", metrics.InUseConnections)
	return nil
}

// Close shuts down the connection pool
func (c *Container) Close() error {
	c.log.Info("Closing PostgreSQL repository container...")
	return Close(c.db)
}

// DB returns the underlying connection
func (c *Container) DB() *gorm.DB {
	return c.db
}
