// Copyright (c) 2024 Telar Social
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package services

import (
	"context"

	uuid "github.com/gofrs/uuid"
	"github.com/stretchr/testify/mock"
)

// MockSubjectRepository is a mock implementation of SubjectRepository for testing
type MockSubjectRepository struct {
	mock.Mock
}

// Ensure MockSubjectRepository implements SubjectRepository
var _ SubjectRepository = (*MockSubjectRepository)(nil)

// GetScore mocks the GetScore method
func (m *MockSubjectRepository) GetScore(ctx context.Context, id uuid.UUID) (int64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(int64), args.Error(1)
}

// IncrementScore mocks the IncrementScore method
func (m *MockSubjectRepository) IncrementScore(ctx context.Context, id uuid.UUID, delta int) (int64, error) {
	args := m.Called(ctx, id, delta)
	return args.Get(0).(int64), args.Error(1)
}

// WithTransaction records the call and runs fn with the same context,
// returning fn's error the way a real transaction would
func (m *MockSubjectRepository) WithTransaction(ctx context.Context, fn func(context.Context) error) error {
	m.Called(ctx)
	return fn(ctx)
}

// MockInvalidator is a mock implementation of SubjectCacheInvalidator for testing
type MockInvalidator struct {
	mock.Mock
}

// InvalidateSubject mocks the InvalidateSubject method
func (m *MockInvalidator) InvalidateSubject(ctx context.Context, subjectID uuid.UUID) error {
	args := m.Called(ctx, subjectID)
	return args.Error(0)
}
