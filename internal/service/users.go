package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/userservice/internal/cache"
	"github.com/and161185/userservice/internal/errs"
	"github.com/and161185/userservice/internal/model"
	"github.com/and161185/userservice/internal/repository"
)

// NameLookups emits asynchronous business unit name lookups.
type NameLookups interface {
	RequestNameLookup(ctx context.Context, userID, businessUnitID string)
}

// UserService serves the authenticated user's record and business unit assignment.
// The caller's principal is always passed in explicitly.
type UserService struct {
	users   repository.UserRepository
	names   cache.Store
	lookups NameLookups
}

// NewUserService constructs UserService.
func NewUserService(users repository.UserRepository, names cache.Store, lookups NameLookups) *UserService {
	return &UserService{users: users, names: names, lookups: lookups}
}

// Me returns the principal's user record. A missing unit name is filled from the cache.
func (s *UserService) Me(ctx context.Context, p model.Principal) (*model.User, error) {
	if p.Anonymous() {
		return nil, errs.ErrUnauthorized
	}
	u, err := s.users.GetByEmail(ctx, p.Subject)
	if err != nil {
		return nil, err
	}
	if u.BusinessUnitID != "" && u.BusinessUnitName == "" {
		if name, ok, err := s.names.Get(ctx, u.BusinessUnitID); err == nil && ok {
			u.BusinessUnitName = name
		}
	}
	return u, nil
}

// AssignBusinessUnit moves userID to unitID and asks the owning service for the name.
// Users may reassign themselves; ADMIN and MANAGER may reassign anyone.
func (s *UserService) AssignBusinessUnit(ctx context.Context, p model.Principal, userID uuid.UUID, unitID string) error {
	if p.Anonymous() {
		return errs.ErrUnauthorized
	}
	unitID = strings.TrimSpace(unitID)
	if unitID == "" {
		return fmt.Errorf("%w: business unit id is required", errs.ErrInvalidInput)
	}
	if !p.HasRole(model.RoleAdmin) && !p.HasRole(model.RoleManager) {
		caller, err := s.users.GetByEmail(ctx, p.Subject)
		if err != nil {
			return err
		}
		if caller.ID != userID {
			return errs.ErrForbidden
		}
	}
	if err := s.users.SetBusinessUnit(ctx, userID, unitID); err != nil {
		return err
	}
	s.lookups.RequestNameLookup(ctx, userID.String(), unitID)
	return nil
}

// BusinessUnitName returns the cached name of unitID.
func (s *UserService) BusinessUnitName(ctx context.Context, unitID string) (string, error) {
	name, ok, err := s.names.Get(ctx, unitID)
	if err != nil {
		return "", errs.Transient(err)
	}
	if !ok {
		return "", errs.ErrNotFound
	}
	return name, nil
}
