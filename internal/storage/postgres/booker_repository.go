package postgres

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gravadigital/billetterie-api/internal/domain/common"
	"github.com/gravadigital/billetterie-api/internal/domain/participant"
	"github.com/gravadigital/billetterie-api/internal/logger"
)

// BookerRepository implements repository.BookerRepository using GORM
type BookerRepository struct {
	db  *gorm.DB
	log *log.Logger
}

// NewBookerRepository creates a new PostgreSQL booker repository
func NewBookerRepository(db *gorm.DB) *BookerRepository {
	return &BookerRepository{
		db:  db,
		log: logger.Repository("booker"),
	}
}

func withParticipants(db *gorm.DB) *gorm.DB {
	return db.Preload("Participants", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("last_name ASC, first_name ASC, id ASC")
	})
}

func (r *BookerRepository) Create(ctx context.Context, b *participant.Booker) error {
	b.Email = participant.NormalizeEmail(b.Email)
	r.log.Debug("Creating booker", "email", b.Email)

	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(b).Error; err != nil {
		if isUniqueViolation(err) {
			r.log.Warn("Booker already exists", "email", b.Email)
			return fmt.Errorf("booker %s: %w", b.Email, common.ErrConflict)
		}
		r.log.Error("Failed to create booker", "email", b.Email, "error", err)
		return fmt.Errorf("failed to create booker: %w", err)
	}

	r.log.Info("Booker created successfully", "email", b.Email)
	return nil
}

func (r *BookerRepository) GetByEmail(ctx context.Context, email string) (*participant.Booker, error) {
	email = participant.NormalizeEmail(email)

	var b participant.Booker
	if err := withParticipants(r.db.WithContext(ctx)).First(&b, "email = ?", email).Error; err != nil {
		return nil, notFound(err, "booker "+email)
	}
	return &b, nil
}

func (r *BookerRepository) GetBySignature(ctx context.Context, signature string) (*participant.Booker, error) {
	if signature == "" {
		return nil, fmt.Errorf("booker with signature: %w", common.ErrNotFound)
	}

	var b participant.Booker
	if err := withParticipants(r.db.WithContext(ctx)).First(&b, "email_signature = ?", signature).Error; err != nil {
		return nil, notFound(err, "booker with signature")
	}
	return &b, nil
}

func (r *BookerRepository) GetAll(ctx context.Context) ([]*participant.Booker, error) {
	var bookers []*participant.Booker
	err := withParticipants(r.db.WithContext(ctx)).
		Order("last_name ASC, first_name ASC, email ASC").
		Find(&bookers).Error
	if err != nil {
		r.log.Error("Failed to get all bookers", "error", err)
		return nil, fmt.Errorf("failed to get bookers: %w", err)
	}

	r.log.Debug("Retrieved all bookers", "count", len(bookers))
	return bookers, nil
}

func (r *BookerRepository) Update(ctx context.Context, b *participant.Booker) error {
	email := participant.NormalizeEmail(b.Email)
	res := r.db.WithContext(ctx).Model(&participant.Booker{}).Where("email = ?", email).Updates(map[string]any{
		"first_name":      b.FirstName,
		"last_name":       b.LastName,
		"validation_time": b.ValidationTime,
	})
	if res.Error != nil {
		r.log.Error("Failed to update booker", "email", email, "error", res.Error)
		return fmt.Errorf("failed to update booker: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("booker %s: %w", email, common.ErrNotFound)
	}
	return nil
}

// ParticipantRepository implements repository.ParticipantRepository using GORM
type ParticipantRepository struct {
	db  *gorm.DB
	log *log.Logger
}

// NewParticipantRepository creates a new PostgreSQL participant repository
func NewParticipantRepository(db *gorm.DB) *ParticipantRepository {
	return &ParticipantRepository{
		db:  db,
		log: logger.Repository("participant"),
	}
}

func (r *ParticipantRepository) Create(ctx context.Context, p *participant.Participant) error {
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		switch {
		case isForeignKeyViolation(err):
			return fmt.Errorf("booker %s: %w", p.BookerEmail, common.ErrNotFound)
		case isUniqueViolation(err):
			return fmt.Errorf("participant %s: %w", p.ID, common.ErrConflict)
		}
		r.log.Error("Failed to create participant", "booker", p.BookerEmail, "error", err)
		return fmt.Errorf("failed to create participant: %w", err)
	}

	r.log.Debug("Participant created", "id", p.ID, "booker", p.BookerEmail)
	return nil
}

func (r *ParticipantRepository) GetByID(ctx context.Context, id uuid.UUID) (*participant.Participant, error) {
	var p participant.Participant
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "participant "+id.String())
	}
	return &p, nil
}
