// Copyright (c) 2024 Telar Social
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package services

import (
	"context"

	uuid "github.com/gofrs/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/affan-mulla/nextup/ideas/models"
	voteModels "github.com/affan-mulla/nextup/votes/models"
)

// MockIdeaRepository is a mock implementation of IdeaRepository for testing
type MockIdeaRepository struct {
	mock.Mock
}

func (m *MockIdeaRepository) Create(ctx context.Context, idea *models.Idea) error {
	args := m.Called(ctx, idea)
	return args.Error(0)
}

func (m *MockIdeaRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Idea, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Idea), args.Error(1)
}

func (m *MockIdeaRepository) List(ctx context.Context, limit, offset int) ([]*models.Idea, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Idea), args.Error(1)
}

func (m *MockIdeaRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*models.Idea, error) {
	args := m.Called(ctx, ownerID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Idea), args.Error(1)
}

func (m *MockIdeaRepository) GetScore(ctx context.Context, id uuid.UUID) (int64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockIdeaRepository) IncrementScore(ctx context.Context, id uuid.UUID, delta int) (int64, error) {
	args := m.Called(ctx, id, delta)
	return args.Get(0).(int64), args.Error(1)
}

// WithTransaction records the call and runs fn directly
func (m *MockIdeaRepository) WithTransaction(ctx context.Context, fn func(context.Context) error) error {
	m.Called(ctx)
	return fn(ctx)
}

// MockVoteLookup is a mock implementation of VoteLookup for testing
type MockVoteLookup struct {
	mock.Mock
}

func (m *MockVoteLookup) GetVotesForSubjects(ctx context.Context, subjectIDs []uuid.UUID, userID uuid.UUID) (map[uuid.UUID]voteModels.Direction, error) {
	args := m.Called(ctx, subjectIDs, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID]voteModels.Direction), args.Error(1)
}
