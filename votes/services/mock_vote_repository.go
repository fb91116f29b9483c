// Copyright (c) 2024 Telar Social
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package services

import (
	"context"

	uuid "github.com/gofrs/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/affan-mulla/nextup/votes/models"
	voteRepository "github.com/affan-mulla/nextup/votes/repository"
)

// MockVoteRepository is a mock implementation of VoteRepository for testing
type MockVoteRepository struct {
	mock.Mock
}

// Ensure MockVoteRepository implements VoteRepository
var _ voteRepository.VoteRepository = (*MockVoteRepository)(nil)

// FindByUserAndSubject mocks the FindByUserAndSubject method
func (m *MockVoteRepository) FindByUserAndSubject(ctx context.Context, userID, subjectID uuid.UUID) (*models.Vote, error) {
	args := m.Called(ctx, userID, subjectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Vote), args.Error(1)
}

// Insert mocks the Insert method
func (m *MockVoteRepository) Insert(ctx context.Context, vote *models.Vote) error {
	args := m.Called(ctx, vote)
	return args.Error(0)
}

// UpdateDirection mocks the UpdateDirection method
func (m *MockVoteRepository) UpdateDirection(ctx context.Context, userID, subjectID uuid.UUID, direction models.Direction) error {
	args := m.Called(ctx, userID, subjectID, direction)
	return args.Error(0)
}

// Delete mocks the Delete method
func (m *MockVoteRepository) Delete(ctx context.Context, userID, subjectID uuid.UUID) error {
	args := m.Called(ctx, userID, subjectID)
	return args.Error(0)
}

// GetVotesForSubjects mocks the GetVotesForSubjects method
func (m *MockVoteRepository) GetVotesForSubjects(ctx context.Context, subjectIDs []uuid.UUID, userID uuid.UUID) (map[uuid.UUID]models.Direction, error) {
	args := m.Called(ctx, subjectIDs, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID]models.Direction), args.Error(1)
}
