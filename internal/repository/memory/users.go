package memory

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/care-api/internal/model"
	"github.com/jwalitptl/care-api/internal/repository"
)

type Users struct{ s *Store }

func (s *Store) Users() *Users { return &Users{s: s} }

func (u *Users) GetUser(_ context.Context, id uuid.UUID) (*model.User, error) {
	return run(u.s, func(st *state) (*model.User, error) {
		user, ok := st.users[id]
		if !ok {
			return nil, fmt.Errorf("failed to get user: %w", repository.ErrNotFound)
		}
		cp := *user
		cp.Roles = append([]model.Role(nil), user.Roles...)
		return &cp, nil
	})
}

type Profiles struct{ s *Store }

func (s *Store) Profiles() *Profiles { return &Profiles{s: s} }

func (p *Profiles) GetByID(_ context.Context, id uuid.UUID) (*model.PatientProfile, error) {
	return run(p.s, func(st *state) (*model.PatientProfile, error) {
		profile, ok := st.profiles[id]
		if !ok {
			return nil, fmt.Errorf("failed to get patient profile: %w", repository.ErrNotFound)
		}
		cp := *profile
		return &cp, nil
	})
}

func (p *Profiles) GetByUserID(_ context.Context, userID uuid.UUID) (*model.PatientProfile, error) {
	return run(p.s, func(st *state) (*model.PatientProfile, error) {
		for _, profile := range st.profiles {
			if profile.UserID == userID {
				cp := *profile
				return &cp, nil
			}
		}
		return nil, fmt.Errorf("failed to get patient profile by user: %w", repository.ErrNotFound)
	})
}
