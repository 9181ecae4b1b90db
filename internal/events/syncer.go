// Package events keeps the business-unit name cache in step with the organization
// service over the broker: lifecycle events and lookup responses in, lookup requests out.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/userservice/internal/cache"
	"github.com/and161185/userservice/internal/errs"
	"github.com/and161185/userservice/internal/model"
)

// UnitNames updates the name cached on a user record.
type UnitNames interface {
	SetBusinessUnitName(ctx context.Context, id uuid.UUID, unitID, name string) (bool, error)
}

// Syncer applies inbound messages to the cache. Every handler is idempotent so
// that redelivered messages converge to the same state.
type Syncer struct {
	cache cache.Store
	users UnitNames
	log   *zap.Logger
}

// NewSyncer wires a Syncer.
func NewSyncer(c cache.Store, users UnitNames, log *zap.Logger) *Syncer {
	return &Syncer{cache: c, users: users, log: log}
}

// HandleBusinessUnitEvent applies a CREATED, UPDATED or DELETED event.
func (s *Syncer) HandleBusinessUnitEvent(ctx context.Context, ev model.BusinessUnitEvent) error {
	if ev.ID == "" {
		return fmt.Errorf("%w: business unit event without id", errs.ErrMalformed)
	}
	switch ev.Type {
	case model.EventCreated, model.EventUpdated:
		if err := s.cache.Put(ctx, ev.ID, ev.Name); err != nil {
			return errs.Transient(err)
		}
	case model.EventDeleted:
		if err := s.cache.Remove(ctx, ev.ID); err != nil {
			return errs.Transient(err)
		}
	default:
		return fmt.Errorf("%w: unknown event type %q", errs.ErrMalformed, ev.Type)
	}
	return nil
}

// HandleNameLookupResponse caches the resolved name and copies it onto the user
// record when the user is still assigned to that unit.
func (s *Syncer) HandleNameLookupResponse(ctx context.Context, r model.NameLookupResponse) error {
	uid, err := uuid.FromString(r.UserID)
	if err != nil {
		return fmt.Errorf("%w: user id %q", errs.ErrMalformed, r.UserID)
	}
	if r.BusinessUnitID == "" {
		return fmt.Errorf("%w: lookup response without business unit id", errs.ErrMalformed)
	}
	if err := s.cache.Put(ctx, r.BusinessUnitID, r.BusinessUnitName); err != nil {
		return errs.Transient(err)
	}
	updated, err := s.users.SetBusinessUnitName(ctx, uid, r.BusinessUnitID, r.BusinessUnitName)
	if err != nil {
		return err
	}
	if !updated {
		s.log.Debug("lookup response does not match current assignment",
			zap.String("user_id", r.UserID), zap.String("business_unit_id", r.BusinessUnitID))
	}
	return nil
}

// HandleUnitMessage decodes and applies a raw business-unit event.
func (s *Syncer) HandleUnitMessage(ctx context.Context, value []byte) error {
	var ev model.BusinessUnitEvent
	if err := json.Unmarshal(value, &ev); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrMalformed, err)
	}
	return s.HandleBusinessUnitEvent(ctx, ev)
}

// HandleResponseMessage decodes and applies a raw name lookup response.
func (s *Syncer) HandleResponseMessage(ctx context.Context, value []byte) error {
	var r model.NameLookupResponse
	if err := json.Unmarshal(value, &r); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrMalformed, err)
	}
	return s.HandleNameLookupResponse(ctx, r)
}
