// Copyright (c) 2024 Telar Social
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	uuid "github.com/gofrs/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/affan-mulla/nextup/ideas/models"
	"github.com/affan-mulla/nextup/internal/database/postgres"
)

const ideaColumns = `id, owner_user_id, owner_display_name, title, body, score, created_at, updated_at`

// postgresRepository implements IdeaRepository using raw SQL queries
type postgresRepository struct {
	client *postgres.Client
}

// NewPostgresRepository creates a new PostgreSQL repository for ideas
func NewPostgresRepository(client *postgres.Client) IdeaRepository {
	return &postgresRepository{client: client}
}

// Create inserts a new idea
func (r *postgresRepository) Create(ctx context.Context, idea *models.Idea) error {
	now := time.Now().UTC()
	if idea.CreatedAt.IsZero() {
		idea.CreatedAt = now
	}
	idea.UpdatedAt = now

	query := `
		INSERT INTO ideas (` + ideaColumns + `)
		VALUES (:id, :owner_user_id, :owner_display_name, :title, :body, :score, :created_at, :updated_at)
	`
	if _, err := sqlx.NamedExecContext(ctx, r.client.Executor(ctx), query, idea); err != nil {
		return fmt.Errorf("failed to create idea: %w", err)
	}
	return nil
}

// FindByID retrieves an idea by ID
func (r *postgresRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Idea, error) {
	query := `SELECT ` + ideaColumns + ` FROM ideas WHERE id = $1`

	var idea models.Idea
	if err := sqlx.GetContext(ctx, r.client.Executor(ctx), &idea, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrIdeaNotFound, id)
		}
		return nil, fmt.Errorf("failed to find idea: %w", err)
	}
	return &idea, nil
}

// List returns ideas newest first
func (r *postgresRepository) List(ctx context.Context, limit, offset int) ([]*models.Idea, error) {
	query := `
		SELECT ` + ideaColumns + `
		FROM ideas
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2
	`

	ideas := []*models.Idea{}
	if err := sqlx.SelectContext(ctx, r.client.Executor(ctx), &ideas, query, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list ideas: %w", err)
	}
	return ideas, nil
}

// ListByOwner returns one user's ideas newest first
func (r *postgresRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*models.Idea, error) {
	query := `
		SELECT ` + ideaColumns + `
		FROM ideas
		WHERE owner_user_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`

	ideas := []*models.Idea{}
	if err := sqlx.SelectContext(ctx, r.client.Executor(ctx), &ideas, query, ownerID, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list ideas by owner: %w", err)
	}
	return ideas, nil
}

// GetScore reads the current vote count
func (r *postgresRepository) GetScore(ctx context.Context, id uuid.UUID) (int64, error) {
	var score int64
	err := sqlx.GetContext(ctx, r.client.Executor(ctx), &score, `SELECT score FROM ideas WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%w: %s", ErrIdeaNotFound, id)
		}
		return 0, fmt.Errorf("failed to read score: %w", err)
	}
	return score, nil
}

// IncrementScore atomically adds delta and returns the new score
func (r *postgresRepository) IncrementScore(ctx context.Context, id uuid.UUID, delta int) (int64, error) {
	query := `
		UPDATE ideas
		SET score = score + $1,
		    updated_at = NOW()
		WHERE id = $2
		RETURNING score
	`

	var score int64
	if err := sqlx.GetContext(ctx, r.client.Executor(ctx), &score, query, delta, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%w: %s", ErrIdeaNotFound, id)
		}
		return 0, fmt.Errorf("failed to increment score: %w", err)
	}
	return score, nil
}

// WithTransaction executes fn within a database transaction
func (r *postgresRepository) WithTransaction(ctx context.Context, fn func(context.Context) error) error {
	return r.client.WithTransaction(ctx, fn)
}
