package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/markdave123-py/dsa-galaxy/internal/core"
	"github.com/markdave123-py/dsa-galaxy/internal/models"
)

// resolveCaller loads the caller's current role. A verified token whose
// profile no longer exists is treated as unauthenticated.
func resolveCaller(ctx context.Context, store core.Store, userID string) (models.Caller, error) {
	if userID == "" {
		return models.Caller{}, models.ErrUnauthenticated
	}
	p, err := store.GetProfile(ctx, userID, userID)
	if errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrUnauthenticated) {
		return models.Caller{}, models.ErrUnauthenticated
	}
	if err != nil {
		return models.Caller{}, fmt.Errorf("load caller profile: %w", err)
	}
	return models.Caller{ID: p.ID, Role: p.Role}, nil
}

func authorize(ctx context.Context, authz core.Authorizer, caller models.Caller, action, ownerID string) error {
	ok, err := authz.Allow(ctx, caller, action, ownerID)
	if err != nil {
		return fmt.Errorf("authorize %s: %w", action, err)
	}
	if !ok {
		return models.ErrForbidden
	}
	return nil
}
