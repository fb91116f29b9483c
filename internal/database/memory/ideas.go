// Copyright (c) 2024 Telar Social
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/uuid"

	"github.com/affan-mulla/nextup/ideas/models"
	"github.com/affan-mulla/nextup/ideas/repository"
)

type ideaRepository struct {
	store *Store
}

// IdeaRepository returns the store's IdeaRepository view
func (s *Store) IdeaRepository() repository.IdeaRepository {
	return &ideaRepository{store: s}
}

func (r *ideaRepository) Create(ctx context.Context, idea *models.Idea) error {
	now := time.Now().UTC()
	if idea.CreatedAt.IsZero() {
		idea.CreatedAt = now
	}
	idea.UpdatedAt = now

	defer r.store.lock(ctx)()

	if _, exists := r.store.ideas[idea.ID]; exists {
		return fmt.Errorf("failed to create idea: duplicate id %s", idea.ID)
	}
	r.store.ideas[idea.ID] = copyIdea(idea)
	r.store.record(ctx, func() { delete(r.store.ideas, idea.ID) })
	return nil
}

func (r *ideaRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Idea, error) {
	defer r.store.rlock(ctx)()

	idea, ok := r.store.ideas[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", repository.ErrIdeaNotFound, id)
	}
	return copyIdea(idea), nil
}

func (r *ideaRepository) List(ctx context.Context, limit, offset int) ([]*models.Idea, error) {
	return r.list(ctx, func(*models.Idea) bool { return true }, limit, offset), nil
}

func (r *ideaRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*models.Idea, error) {
	return r.list(ctx, func(idea *models.Idea) bool { return idea.OwnerUserID == ownerID }, limit, offset), nil
}

func (r *ideaRepository) list(ctx context.Context, match func(*models.Idea) bool, limit, offset int) []*models.Idea {
	defer r.store.rlock(ctx)()

	ideas := make([]*models.Idea, 0, len(r.store.ideas))
	for _, idea := range r.store.ideas {
		if match(idea) {
			ideas = append(ideas, copyIdea(idea))
		}
	}
	sortNewestFirst(ideas)
	return page(ideas, limit, offset)
}

func (r *ideaRepository) GetScore(ctx context.Context, id uuid.UUID) (int64, error) {
	defer r.store.rlock(ctx)()

	idea, ok := r.store.ideas[id]
	if !ok {
		return 0, fmt.Errorf("%w: %s", repository.ErrIdeaNotFound, id)
	}
	return idea.Score, nil
}

func (r *ideaRepository) IncrementScore(ctx context.Context, id uuid.UUID, delta int) (int64, error) {
	defer r.store.lock(ctx)()

	idea, ok := r.store.ideas[id]
	if !ok {
		return 0, fmt.Errorf("%w: %s", repository.ErrIdeaNotFound, id)
	}
	idea.Score += int64(delta)
	idea.UpdatedAt = time.Now().UTC()
	r.store.record(ctx, func() { idea.Score -= int64(delta) })
	return idea.Score, nil
}

func (r *ideaRepository) WithTransaction(ctx context.Context, fn func(context.Context) error) error {
	return r.store.WithTransaction(ctx, fn)
}
