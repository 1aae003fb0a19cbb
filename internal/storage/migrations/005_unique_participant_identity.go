package migrations

import "gorm.io/gorm"

const participantIdentityColumns = "participants(booker_email, lower(first_name), lower(last_name), year_of_birth)"

// migration005Up turns the participant identity index into a unique one so two
// registrations creating the same person for a booker cannot both commit
func migration005Up(db *gorm.DB) error {
	if err := db.Exec("DROP INDEX IF EXISTS idx_participants_identity").Error; err != nil {
		return err
	}
	return db.Exec("CREATE UNIQUE INDEX idx_participants_identity ON " + participantIdentityColumns).Error
}

// migration005Down restores the plain lookup index
func migration005Down(db *gorm.DB) error {
	if err := db.Exec("DROP INDEX IF EXISTS idx_participants_identity").Error; err != nil {
		return err
	}
	return db.Exec("CREATE INDEX idx_participants_identity ON " + participantIdentityColumns).Error
}
