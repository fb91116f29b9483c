// Copyright (c) 2024 Telar Social
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package memory

import (
	"context"
	"time"

	"github.com/gofrs/uuid"

	"github.com/affan-mulla/nextup/votes/models"
	"github.com/affan-mulla/nextup/votes/repository"
)

type voteRepository struct {
	store *Store
}

// VoteRepository returns the store's VoteRepository view
func (s *Store) VoteRepository() repository.VoteRepository {
	return &voteRepository{store: s}
}

func (r *voteRepository) FindByUserAndSubject(ctx context.Context, userID, subjectID uuid.UUID) (*models.Vote, error) {
	defer r.store.rlock(ctx)()

	vote, ok := r.store.votes[voteKey{subjectID, userID}]
	if !ok {
		return nil, repository.ErrVoteNotFound
	}
	c := *vote
	return &c, nil
}

func (r *voteRepository) Insert(ctx context.Context, vote *models.Vote) error {
	if vote.CreatedAt.IsZero() {
		vote.CreatedAt = time.Now().UTC()
	}

	defer r.store.lock(ctx)()

	if _, ok := r.store.ideas[vote.SubjectID]; !ok {
		return repository.ErrSubjectMissing
	}
	key := voteKey{vote.SubjectID, vote.UserID}
	if _, exists := r.store.votes[key]; exists {
		return repository.ErrDuplicateVote
	}

	c := *vote
	r.store.votes[key] = &c
	r.store.record(ctx, func() { delete(r.store.votes, key) })
	return nil
}

func (r *voteRepository) UpdateDirection(ctx context.Context, userID, subjectID uuid.UUID, direction models.Direction) error {
	defer r.store.lock(ctx)()

	vote, ok := r.store.votes[voteKey{subjectID, userID}]
	if !ok {
		return repository.ErrVoteNotFound
	}
	previous := vote.Direction
	vote.Direction = direction
	r.store.record(ctx, func() { vote.Direction = previous })
	return nil
}

func (r *voteRepository) Delete(ctx context.Context, userID, subjectID uuid.UUID) error {
	defer r.store.lock(ctx)()

	key := voteKey{subjectID, userID}
	vote, ok := r.store.votes[key]
	if !ok {
		return repository.ErrVoteNotFound
	}
	delete(r.store.votes, key)
	r.store.record(ctx, func() { r.store.votes[key] = vote })
	return nil
}

func (r *voteRepository) GetVotesForSubjects(ctx context.Context, subjectIDs []uuid.UUID, userID uuid.UUID) (map[uuid.UUID]models.Direction, error) {
	defer r.store.rlock(ctx)()

	votes := make(map[uuid.UUID]models.Direction, len(subjectIDs))
	for _, id := range subjectIDs {
		if vote, ok := r.store.votes[voteKey{id, userID}]; ok {
			votes[id] = vote.Direction
		} else {
			votes[id] = models.DirectionNone
		}
	}
	return votes, nil
}
