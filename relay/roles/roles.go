// Package roles answers whether an actor is an administrator.
package roles

import (
	"context"
	"errors"
	"fmt"

	"github.com/m3rciful/feedbackbot/relay/model"
	"github.com/m3rciful/feedbackbot/relay/store"
)

// ErrPermissionDenied is returned by Guard for actors without the administrator role.
var ErrPermissionDenied = errors.New("roles: permission denied")

// Lookup is the read the resolver needs from the store.
type Lookup interface {
	GetAdministrator(ctx context.Context, userID int64) (model.Administrator, error)
}

// Resolver checks administrator membership against the store on every call.
type Resolver struct {
	lookup Lookup
}

// NewResolver builds a Resolver over lookup.
func NewResolver(lookup Lookup) *Resolver {
	return &Resolver{lookup: lookup}
}

// IsAdministrator reports whether actorID holds the role. It has no side effects.
func (r *Resolver) IsAdministrator(ctx context.Context, actorID int64) (bool, error) {
	_, err := r.lookup.GetAdministrator(ctx, actorID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, store.ErrNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("resolve role of %d: %w", actorID, err)
	}
}

// Guard returns nil for administrators and ErrPermissionDenied for everyone else.
func (r *Resolver) Guard(ctx context.Context, actorID int64) error {
	ok, err := r.IsAdministrator(ctx, actorID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPermissionDenied
	}
	return nil
}
