package migrations

import "gorm.io/gorm"

// migration004Up adds check constraints, the single active event index and
// the trigger keeping registration_time write-once
func migration004Up(db *gorm.DB) error {
	constraints := []string{
		"ALTER TABLE activities ADD CONSTRAINT valid_max_participants CHECK (max_participants >= 0)",
		"ALTER TABLE activities ADD CONSTRAINT valid_max_waiting_queue CHECK (max_waiting_queue >= 0)",
		"ALTER TABLE bookers ADD CONSTRAINT lower_case_email CHECK (email = lower(btrim(email)))",
		"ALTER TABLE bookers ADD CONSTRAINT valid_email CHECK (email ~* '^[^@[:space:]]+@[^@[:space:]]+$')",
		"ALTER TABLE participants ADD CONSTRAINT valid_year_of_birth CHECK (year_of_birth > 1900)",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_events_single_active ON events(active) WHERE active",
	}

	for _, constraintSQL := range constraints {
		if err := db.Exec(constraintSQL).Error; err != nil {
			return err
		}
	}

	if err := db.Exec(`CREATE OR REPLACE FUNCTION keep_registration_time()
        RETURNS TRIGGER AS $$
        BEGIN
            NEW.registration_time := OLD.registration_time;
            RETURN NEW;
        END;
        $$ LANGUAGE plpgsql`).Error; err != nil {
		return err
	}

	return db.Exec(`CREATE TRIGGER trigger_keep_registration_time
        BEFORE UPDATE ON activity_participants
        FOR EACH ROW EXECUTE FUNCTION keep_registration_time()`).Error
}

// migration004Down removes them again
func migration004Down(db *gorm.DB) error {
	statements := []string{
		"DROP TRIGGER IF EXISTS trigger_keep_registration_time ON activity_participants",
		"DROP FUNCTION IF EXISTS keep_registration_time CASCADE",
		"DROP INDEX IF EXISTS idx_events_single_active",
		"ALTER TABLE participants DROP CONSTRAINT IF EXISTS valid_year_of_birth",
		"ALTER TABLE bookers DROP CONSTRAINT IF EXISTS valid_email",
		"ALTER TABLE bookers DROP CONSTRAINT IF EXISTS lower_case_email",
		"ALTER TABLE activities DROP CONSTRAINT IF EXISTS valid_max_waiting_queue",
		"ALTER TABLE activities DROP CONSTRAINT IF EXISTS valid_max_participants",
	}

	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
