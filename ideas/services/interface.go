// Copyright (c) 2024 Telar Social
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package services

import (
	"context"

	uuid "github.com/gofrs/uuid"

	"github.com/affan-mulla/nextup/ideas/models"
	"github.com/affan-mulla/nextup/internal/types"
	voteModels "github.com/affan-mulla/nextup/votes/models"
)

// IdeaService defines the interface for idea operations.
// viewer may be uuid.Nil for anonymous reads; the viewer vote is then absent.
type IdeaService interface {
	CreateIdea(ctx context.Context, req *models.CreateIdeaRequest, user *types.UserContext) (*models.Idea, error)
	GetIdea(ctx context.Context, ideaID uuid.UUID, viewer uuid.UUID) (*models.IdeaDetail, error)
	Feed(ctx context.Context, query models.PageQuery, viewer uuid.UUID) (*models.FeedPage, error)
	ProfileIdeas(ctx context.Context, ownerID uuid.UUID, query models.PageQuery, viewer uuid.UUID) (*models.ProfilePage, error)

	// InvalidateSubject drops every cached page that may carry the idea's score
	InvalidateSubject(ctx context.Context, ideaID uuid.UUID) error
}

// VoteLookup resolves the viewer's votes for a batch of ideas
type VoteLookup interface {
	GetVotesForSubjects(ctx context.Context, subjectIDs []uuid.UUID, userID uuid.UUID) (map[uuid.UUID]voteModels.Direction, error)
}
