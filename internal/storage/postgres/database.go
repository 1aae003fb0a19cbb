package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/gravadigital/billetterie-api/internal/config"
	"github.com/gravadigital/billetterie-api/internal/logger"
	"github.com/gravadigital/billetterie-api/internal/storage/migrations"
)

// PoolConfig holds database pool settings
type PoolConfig struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultPoolConfig returns default pool settings
func DefaultPoolConfig() *PoolConfig {
	return &PoolConfig{
		MaxIdleConns:    10,
		MaxOpenConns:    50,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
	}
}

// PoolMetrics holds database pool metrics
type PoolMetrics struct {
	OpenConnections  int `json:"open_connections"`
	InUseConnections int `json:"in_use_connections"`
	IdleConnections  int `json:"idle_connections"`
}

// Connect opens the PostgreSQL connection with retries
func Connect(cfg *config.Config) (*gorm.DB, error) {
	return ConnectWithPool(cfg, DefaultPoolConfig())
}

// ConnectWithPool opens the connection and configures the pool
func ConnectWithPool(cfg *config.Config, pool *PoolConfig) (*gorm.DB, error) {
	log := logger.Database()

	if err := validateDatabaseConfig(cfg); err != nil {
		log.Error("Database configuration validation failed", "error", err)
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}

	log.Debug("Connecting to database", "host", cfg.DB.Host, "port", cfg.DB.Port, "database", cfg.DB.Name)

	level := gormLogger.Silent
	if cfg.Server.GinMode == "debug" {
		level = gormLogger.Info
	}

	gormConfig := &gorm.Config{
		Logger: gormLogger.Default.LogMode(level),
		NowFunc: func() time.Time {
			return time.Now().UTC().Truncate(time.Microsecond)
		},
		// unique violations surface as gorm.ErrDuplicatedKey
		TranslateError: true,
	}

	var db *gorm.DB
	var err error
	maxRetries := 3
	retryDelay := 2 * time.Second

	for attempt := 1; attempt <= maxRetries; attempt++ {
		db, err = gorm.Open(postgres.Open(cfg.GetDatabaseURL()), gormConfig)
		if err == nil {
			break
		}

		log.Warn("Database connection failed", "attempt", attempt, "error", err)
		if attempt < maxRetries {
			time.Sleep(retryDelay)
			retryDelay *= 2
		}
	}
	if err != nil {
		log.Error("Failed to connect to database after retries", "error", err, "attempts", maxRetries)
		return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", maxRetries, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(pool.ConnMaxIdleTime)

	if err := HealthCheck(db, 5*time.Second); err != nil {
		log.Error("Database connection test failed", "error", err)
		return nil, fmt.Errorf("database connection test failed: %w", err)
	}

	log.Info("Successfully connected to PostgreSQL database",
		"host", cfg.DB.Host,
		"database", cfg.DB.Name,
		"max_open_conns", pool.MaxOpenConns)

	return db, nil
}

func validateDatabaseConfig(cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if cfg.DB.Host == "" {
		return fmt.Errorf("database host cannot be empty")
	}
	if cfg.DB.Port == "" {
		return fmt.Errorf("database port cannot be empty")
	}
	if cfg.DB.Name == "" {
		return fmt.Errorf("database name cannot be empty")
	}
	if cfg.DB.User == "" {
		return fmt.Errorf("database user cannot be empty")
	}
	return nil
}

// HealthCheck pings the database within the given timeout
func HealthCheck(db *gorm.DB, timeout time.Duration) error {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

// GetPoolMetrics returns current pool metrics
func GetPoolMetrics(db *gorm.DB) PoolMetrics {
	sqlDB, err := db.DB()
	if err != nil {
		return PoolMetrics{}
	}
	stats := sqlDB.Stats()
	return PoolMetrics{
		OpenConnections:  stats.OpenConnections,
		InUseConnections: stats.InUse,
		IdleConnections:  stats.Idle,
	}
}

// AutoMigrate runs the versioned migrations
func AutoMigrate(db *gorm.DB) error {
	log := logger.Migration()
	log.Info("Starting database migrations...")

	if err := HealthCheck(db, 5*time.Second); err != nil {
		log.Error("Database health check failed before migrations", "error", err)
		return fmt.Errorf("database health check failed: %w", err)
	}

	start := time.Now()
	if err := migrations.RunMigrations(db); err != nil {
		log.Error("Database migrations failed", "error", err, "duration", time.Since(start))
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Info("Database migrations completed successfully", "duration", time.Since(start))
	return nil
}

// Close closes the underlying connection pool
func Close(db *gorm.DB) error {
	log := logger.Database()

	if db == nil {
		log.Warn("Attempted to close nil database connection")
		return nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	metrics := GetPoolMetrics(db)
	log.Debug("Database metrics before closing",
		"open_connections", metrics.OpenConnections,
		"in_use_connections", metrics.InUseConnections,
		"idle_connections", metrics.IdleConnections)

	if err := sqlDB.Close(); err != nil {
		log.Error("Failed to close database connection", "error", err)
		return fmt.Errorf("failed to close database connection: %w", err)
	}

	log.Info("Database connection closed successfully")
	return nil
}
