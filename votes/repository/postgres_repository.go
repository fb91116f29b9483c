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

	"github.com/gofrs/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/affan-mulla/nextup/internal/database/postgres"
	"github.com/affan-mulla/nextup/votes/models"
)

// postgresVoteRepository implements VoteRepository using raw SQL queries
type postgresVoteRepository struct {
	client *postgres.Client
}

// NewPostgresVoteRepository creates a new PostgreSQL repository for votes
func NewPostgresVoteRepository(client *postgres.Client) VoteRepository {
	return &postgresVoteRepository{client: client}
}

// FindByUserAndSubject retrieves a user's vote on a specific subject
func (r *postgresVoteRepository) FindByUserAndSubject(ctx context.Context, userID, subjectID uuid.UUID) (*models.Vote, error) {
	query := `
		SELECT id, subject_id, user_id, direction, created_at
		FROM votes
		WHERE subject_id = $1 AND user_id = $2
		FOR UPDATE
	`

	var vote models.Vote
	err := sqlx.GetContext(ctx, r.client.Executor(ctx), &vote, query, subjectID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVoteNotFound
		}
		return nil, fmt.Errorf("failed to find vote: %w", err)
	}

	return &vote, nil
}

// Insert adds a new vote row
func (r *postgresVoteRepository) Insert(ctx context.Context, vote *models.Vote) error {
	if vote.CreatedAt.IsZero() {
		vote.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO votes (id, subject_id, user_id, direction, created_at)
		VALUES (:id, :subject_id, :user_id, :direction, :created_at)
	`

	if _, err := sqlx.NamedExecContext(ctx, r.client.Executor(ctx), query, vote); err != nil {
		switch {
		case postgres.IsUniqueViolation(err):
			return fmt.Errorf("%w: %v", ErrDuplicateVote, err)
		case postgres.IsForeignKeyViolation(err):
			return fmt.Errorf("%w: %v", ErrSubjectMissing, err)
		}
		return fmt.Errorf("failed to insert vote: %w", err)
	}
	return nil
}

// UpdateDirection switches an existing vote
func (r *postgresVoteRepository) UpdateDirection(ctx context.Context, userID, subjectID uuid.UUID, direction models.Direction) error {
	query := `
		UPDATE votes
		SET direction = $1
		WHERE subject_id = $2 AND user_id = $3
	`

	result, err := r.client.Executor(ctx).ExecContext(ctx, query, direction, subjectID, userID)
	if err != nil {
		return fmt.Errorf("failed to update vote: %w", err)
	}
	return requireRow(result)
}

// Delete removes a vote (toggle off)
func (r *postgresVoteRepository) Delete(ctx context.Context, userID, subjectID uuid.UUID) error {
	query := `
		DELETE FROM votes
		WHERE subject_id = $1 AND user_id = $2
	`

	result, err := r.client.Executor(ctx).ExecContext(ctx, query, subjectID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete vote: %w", err)
	}
	return requireRow(result)
}

// GetVotesForSubjects bulk retrieves user's votes for multiple subjects.
// This avoids N+1 queries when enriching idea lists with the viewer vote.
func (r *postgresVoteRepository) GetVotesForSubjects(ctx context.Context, subjectIDs []uuid.UUID, userID uuid.UUID) (map[uuid.UUID]models.Direction, error) {
	voteMap := make(map[uuid.UUID]models.Direction, len(subjectIDs))
	if len(subjectIDs) == 0 {
		return voteMap, nil
	}

	ids := make([]string, len(subjectIDs))
	for i, id := range subjectIDs {
		ids[i] = id.String()
	}

	query := `
		SELECT subject_id, direction
		FROM votes
		WHERE user_id = $1 AND subject_id = ANY($2::uuid[])
	`

	type voteRow struct {
		SubjectID uuid.UUID        `db:"subject_id"`
		Direction models.Direction `db:"direction"`
	}

	var rows []voteRow
	if err := sqlx.SelectContext(ctx, r.client.Executor(ctx), &rows, query, userID, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("failed to get votes for subjects: %w", err)
	}

	for _, id := range subjectIDs {
		voteMap[id] = models.DirectionNone
	}
	for _, row := range rows {
		voteMap[row.SubjectID] = row.Direction
	}
	return voteMap, nil
}

func requireRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrVoteNotFound
	}
	return nil
}
