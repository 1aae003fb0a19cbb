package migrations

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/gravadigital/billetterie-api/internal/logger"
)

// Migration represents a database migration
type Migration struct {
	ID   string
	Name string
	Up   func(*gorm.DB) error
	Down func(*gorm.DB) error
}

// GetMigrations returns all available migrations in order
func GetMigrations() []Migration {
	return []Migration{
		{
			ID:   "001",
			Name: "create_extensions_and_types",
			Up:   migration001Up,
			Down: migration001Down,
		},
		{
			ID:   "002",
			Name: "create_core_tables",
			Up:   migration002Up,
			Down: migration002Down,
		},
		{
			ID:   "003",
			Name: "create_indexes",
			Up:   migration003Up,
			Down: migration003Down,
		},
		{
			ID:   "004",
			Name: "create_constraints_and_triggers",
			Up:   migration004Up,
			Down: migration004Down,
		},
		{
			ID:   "005",
			Name: "unique_participant_identity",
			Up:   migration005Up,
			Down: migration005Down,
		},
	}
}

// RunMigrations executes all pending migrations, each in its own transaction
func RunMigrations(db *gorm.DB) error {
	log := logger.Migration()

	if err := createMigrationsTable(db); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := appliedIDs(db)
	if err != nil {
		return fmt.Errorf("failed to read applied migrations: %w", err)
	}

	for _, migration := range GetMigrations() {
		if applied[migration.ID] {
			log.Debug("Migration already applied, skipping", "id", migration.ID, "name", migration.Name)
			continue
		}

		log.Info("Running migration", "id", migration.ID, "name", migration.Name)

		err := db.Transaction(func(tx *gorm.DB) error {
			if err := migration.Up(tx); err != nil {
				return fmt.Errorf("failed to run migration %s: %w", migration.ID, err)
			}
			return tx.Exec("INSERT INTO schema_migrations (id, name) VALUES (?, ?)", migration.ID, migration.Name).Error
		})
		if err != nil {
			return err
		}

		log.Info("Successfully applied migration", "id", migration.ID)
	}

	log.Info("All migrations completed successfully")
	return nil
}

// AppliedMigration is a row of schema_migrations
type AppliedMigration struct {
	ID        string
	Name      string
	AppliedAt time.Time
}

// Applied lists the applied migrations, oldest first
func Applied(db *gorm.DB) ([]AppliedMigration, error) {
	if err := createMigrationsTable(db); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	var rows []AppliedMigration
	if err := db.Raw("SELECT id, name, applied_at FROM schema_migrations ORDER BY id").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list migrations: %w", err)
	}
	return rows, nil
}

func createMigrationsTable(db *gorm.DB) error {
	return db.Exec(`
        CREATE TABLE IF NOT EXISTS schema_migrations (
            id VARCHAR(10) PRIMARY KEY,
            name VARCHAR(255) NOT NULL,
            applied_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
        )
    `).Error
}

func appliedIDs(db *gorm.DB) (map[string]bool, error) {
	var ids []string
	if err := db.Raw("SELECT id FROM schema_migrations").Scan(&ids).Error; err != nil {
		return nil, err
	}
	applied := make(map[string]bool, len(ids))
	for _, id := range ids {
		applied[id] = true
	}
	return applied, nil
}

// RollbackMigration rolls back the last applied migration
func RollbackMigration(db *gorm.DB) error {
	log := logger.Migration()

	var last AppliedMigration
	err := db.Raw("SELECT id, name FROM schema_migrations ORDER BY id DESC LIMIT 1").Scan(&last).Error
	if err != nil {
		return fmt.Errorf("failed to get last migration: %w", err)
	}
	if last.ID == "" {
		return fmt.Errorf("no migrations to rollback")
	}

	var target *Migration
	for _, migration := range GetMigrations() {
		if migration.ID == last.ID {
			target = &migration
			break
		}
	}
	if target == nil {
		return fmt.Errorf("migration %s not found", last.ID)
	}

	log.Info("Rolling back migration", "id", target.ID, "name", target.Name)

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := target.Down(tx); err != nil {
			return fmt.Errorf("failed to rollback migration %s: %w", target.ID, err)
		}
		return tx.Exec("DELETE FROM schema_migrations WHERE id = ?", target.ID).Error
	})
	if err != nil {
		return err
	}

	log.Info("Successfully rolled back migration", "id", target.ID)
	return nil
}
