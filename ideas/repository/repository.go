// Copyright (c) 2024 Telar Social
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package repository

import (
	"context"
	"errors"

	uuid "github.com/gofrs/uuid"

	"github.com/affan-mulla/nextup/ideas/models"
)

// ErrIdeaNotFound is returned when no idea has the requested id
var ErrIdeaNotFound = errors.New("idea not found")

// IdeaRepository defines the idea-specific database operations
type IdeaRepository interface {
	Create(ctx context.Context, idea *models.Idea) error

	// FindByID returns ErrIdeaNotFound when the idea does not exist
	FindByID(ctx context.Context, id uuid.UUID) (*models.Idea, error)

	// List returns ideas newest first
	List(ctx context.Context, limit, offset int) ([]*models.Idea, error)

	// ListByOwner returns one user's ideas newest first
	ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*models.Idea, error)

	// GetScore reads the current vote count, ErrIdeaNotFound when missing
	GetScore(ctx context.Context, id uuid.UUID) (int64, error)

	// IncrementScore adds delta to the vote count in a single statement and
	// returns the new value. Callers never read-modify-write the score.
	IncrementScore(ctx context.Context, id uuid.UUID, delta int) (int64, error)

	// WithTransaction runs fn in one unit of work; repositories given the
	// context passed to fn take part in the same transaction
	WithTransaction(ctx context.Context, fn func(context.Context) error) error
}
