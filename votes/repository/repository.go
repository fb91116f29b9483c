// Copyright (c) 2024 Telar Social
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package repository

import (
	"context"
	"errors"

	"github.com/gofrs/uuid"

	"github.com/affan-mulla/nextup/votes/models"
)

var (
	// ErrVoteNotFound is returned when the user has no vote on the subject
	ErrVoteNotFound = errors.New("vote not found")

	// ErrDuplicateVote is returned when an insert loses the (subject, user) uniqueness race
	ErrDuplicateVote = errors.New("duplicate vote")

	// ErrSubjectMissing is returned when the voted subject does not exist
	ErrSubjectMissing = errors.New("vote subject does not exist")
)

// VoteRepository defines the interface for vote data operations.
// Every method joins the transaction carried by ctx, if any.
type VoteRepository interface {
	// FindByUserAndSubject retrieves a user's vote on a subject and locks the
	// row for the rest of the transaction
	FindByUserAndSubject(ctx context.Context, userID, subjectID uuid.UUID) (*models.Vote, error)

	Insert(ctx context.Context, vote *models.Vote) error

	UpdateDirection(ctx context.Context, userID, subjectID uuid.UUID, direction models.Direction) error

	Delete(ctx context.Context, userID, subjectID uuid.UUID) error

	// GetVotesForSubjects bulk retrieves a user's votes.
	// Every requested id is present in the result, DirectionNone when unvoted.
	GetVotesForSubjects(ctx context.Context, subjectIDs []uuid.UUID, userID uuid.UUID) (map[uuid.UUID]models.Direction, error)
}
