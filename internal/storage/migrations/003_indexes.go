package migrations

import "gorm.io/gorm"

var indexes = []struct {
	name string
	sql  string
}{
	{"idx_activities_event_start", "CREATE INDEX IF NOT EXISTS idx_activities_event_start ON activities(event_id, start_time)"},
	{"idx_participants_booker", "CREATE INDEX IF NOT EXISTS idx_participants_booker ON participants(booker_email)"},
	{"idx_participants_identity", "CREATE INDEX IF NOT EXISTS idx_participants_identity ON participants(booker_email, lower(first_name), lower(last_name), year_of_birth)"},
	// ledger order
	{"idx_activity_participants_order", "CREATE INDEX IF NOT EXISTS idx_activity_participants_order ON activity_participants(activity_id, registration_time, participant_id)"},
	{"idx_activity_participants_participant", "CREATE INDEX IF NOT EXISTS idx_activity_participants_participant ON activity_participants(participant_id)"},
	{"idx_notification_logs_recipient", "CREATE INDEX IF NOT EXISTS idx_notification_logs_recipient ON notification_logs(recipient, created_at)"},
	{"idx_notification_logs_status", "CREATE INDEX IF NOT EXISTS idx_notification_logs_status ON notification_logs(status) WHERE status <> 'sent'"},
}

// migration003Up creates lookup indexes
func migration003Up(db *gorm.DB) error {
	for _, idx := range indexes {
		if err := db.Exec(idx.sql).Error; err != nil {
			return err
		}
	}
	return nil
}

// migration003Down drops lookup indexes
func migration003Down(db *gorm.DB) error {
	for _, idx := range indexes {
		if err := db.Exec("DROP INDEX IF EXISTS " + idx.name).Error; err != nil {
			return err
		}
	}
	return nil
}
