package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/gravadigital/billetterie-api/internal/domain/common"
	"github.com/gravadigital/billetterie-api/internal/domain/participant"
)

type bookerRepository struct {
	c *Container
}

func (r *bookerRepository) Create(ctx context.Context, b *participant.Booker) error {
	st := r.c.lock()
	defer r.c.unlock()

	b.Email = participant.NormalizeEmail(b.Email)
	if _, exists := st.bookers[b.Email]; exists {
		return fmt.Errorf("booker %s: %w", b.Email, common.ErrConflict)
	}
	for _, other := range st.bookers {
		if other.EmailSignature == b.EmailSignature {
			return fmt.Errorf("booker signature: %w", common.ErrConflict)
		}
	}

	row := *b
	row.Participants = nil
	row.ValidationTime = clonePtr(b.ValidationTime)
	st.bookers[b.Email] = row
	return nil
}

func (r *bookerRepository) GetByEmail(ctx context.Context, email string) (*participant.Booker, error) {
	st := r.c.lock()
	defer r.c.unlock()

	email = participant.NormalizeEmail(email)
	row, ok := st.bookers[email]
	if !ok {
		return nil, fmt.Errorf("booker %s: %w", email, common.ErrNotFound)
	}
	return loadBooker(st, row), nil
}

func (r *bookerRepository) GetBySignature(ctx context.Context, signature string) (*participant.Booker, error) {
	st := r.c.lock()
	defer r.c.unlock()

	if signature != "" {
		for _, row := range st.bookers {
			if row.EmailSignature == signature {
				return loadBooker(st, row), nil
			}
		}
	}
	return nil, fmt.Errorf("booker with signature: %w", common.ErrNotFound)
}

func (r *bookerRepository) GetAll(ctx context.Context) ([]*participant.Booker, error) {
	st := r.c.lock()
	defer r.c.unlock()

	bookers := make([]*participant.Booker, 0, len(st.bookers))
	for _, row := range st.bookers {
		bookers = append(bookers, loadBooker(st, row))
	}
	slices.SortFunc(bookers, func(a, b *participant.Booker) int {
		return cmp.Or(
			cmp.Compare(a.LastName, b.LastName),
			cmp.Compare(a.FirstName, b.FirstName),
			cmp.Compare(a.Email, b.Email),
		)
	})
	return bookers, nil
}

func (r *bookerRepository) Update(ctx context.Context, b *participant.Booker) error {
	st := r.c.lock()
	defer r.c.unlock()

	email := participant.NormalizeEmail(b.Email)
	row, ok := st.bookers[email]
	if !ok {
		return fmt.Errorf("booker %s: %w", email, common.ErrNotFound)
	}
	row.FirstName = b.FirstName
	row.LastName = b.LastName
	row.ValidationTime = clonePtr(b.ValidationTime)
	st.bookers[email] = row
	return nil
}

func loadBooker(st *state, row participant.Booker) *participant.Booker {
	b := row
	b.ValidationTime = clonePtr(row.ValidationTime)
	b.Participants = nil
	for _, p := range st.participants {
		if p.BookerEmail == b.Email {
			pc := p
			b.Participants = append(b.Participants, &pc)
		}
	}
	slices.SortFunc(b.Participants, compareParticipants)
	return &b
}

func compareParticipants(a, b *participant.Participant) int {
	return cmp.Or(
		cmp.Compare(a.LastName, b.LastName),
		cmp.Compare(a.FirstName, b.FirstName),
		cmp.Compare(a.ID.String(), b.ID.String()),
	)
}

type participantRepository struct {
	c *Container
}

func (r *participantRepository) Create(ctx context.Context, p *participant.Participant) error {
	st := r.c.lock()
	defer r.c.unlock()

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if _, ok := st.bookers[p.BookerEmail]; !ok {
		return fmt.Errorf("booker %s: %w", p.BookerEmail, common.ErrNotFound)
	}
	if _, exists := st.participants[p.ID]; exists {
		return fmt.Errorf("participant %s: %w", p.ID, common.ErrConflict)
	}
	for _, other := range st.participants {
		if other.BookerEmail == p.BookerEmail && other.SameAs(p.FirstName, p.LastName, p.YearOfBirth) {
			return fmt.Errorf("participant %s %s (%d): %w", p.FirstName, p.LastName, p.YearOfBirth, common.ErrConflict)
		}
	}
	st.participants[p.ID] = *p
	return nil
}

func (r *participantRepository) GetByID(ctx context.Context, id uuid.UUID) (*participant.Participant, error) {
	st := r.c.lock()
	defer r.c.unlock()

	p, ok := st.participants[id]
	if !ok {
		return nil, fmt.Errorf("participant %s: %w", id, common.ErrNotFound)
	}
	return &p, nil
}
