package migrations

import "gorm.io/gorm"

// migration001Up creates extensions and custom types
func migration001Up(db *gorm.DB) error {
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`).Error; err != nil {
		return err
	}

	return db.Exec(`
        CREATE TYPE notification_status AS ENUM (
            'pending',
            'sent',
            'failed'
        )
    `).Error
}

// migration001Down drops custom types
func migration001Down(db *gorm.DB) error {
	// the uuid extension may be shared with other schemas
	return db.Exec("DROP TYPE IF EXISTS notification_status CASCADE").Error
}
