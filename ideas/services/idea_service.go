// Copyright (c) 2024 Telar Social
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	uuid "github.com/gofrs/uuid"

	ideasErrors "github.com/affan-mulla/nextup/ideas/errors"
	"github.com/affan-mulla/nextup/ideas/models"
	"github.com/affan-mulla/nextup/ideas/repository"
	"github.com/affan-mulla/nextup/internal/cache"
	"github.com/affan-mulla/nextup/internal/pkg/log"
	"github.com/affan-mulla/nextup/internal/types"
	voteModels "github.com/affan-mulla/nextup/votes/models"
)

const listCacheTTL = time.Minute

// ideaService implements the IdeaService interface
type ideaService struct {
	repo         repository.IdeaRepository
	votes        VoteLookup
	cacheService *cache.GenericCacheService

	// epoch counts invalidations. A load that started in an older epoch may
	// have read scores from before a vote and is not cached.
	fillMu sync.RWMutex
	epoch  uint64
}

// NewIdeaService creates a new instance of the idea service.
// cacheService may be nil, in which case every read goes to the repository.
func NewIdeaService(repo repository.IdeaRepository, votes VoteLookup, cacheService *cache.GenericCacheService) IdeaService {
	return &ideaService{
		repo:         repo,
		votes:        votes,
		cacheService: cacheService,
	}
}

// CreateIdea creates a new idea owned by user
func (s *ideaService) CreateIdea(ctx context.Context, req *models.CreateIdeaRequest, user *types.UserContext) (*models.Idea, error) {
	if user == nil || user.IsAnonymous() {
		return nil, ideasErrors.ErrMissingUserContext
	}
	if req == nil {
		return nil, fmt.Errorf("%w: request is required", ideasErrors.ErrInvalidIdeaData)
	}
	if err := validateCreateRequest(req); err != nil {
		return nil, err
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("failed to generate idea ID: %w", err)
	}

	idea := &models.Idea{
		ID:               id,
		OwnerUserID:      user.UserID,
		OwnerDisplayName: user.DisplayName,
		Title:            strings.TrimSpace(req.Title),
		Body:             req.Body,
		Score:            0,
	}
	if err := s.repo.Create(ctx, idea); err != nil {
		log.ErrorWithContext(ctx, "Repository.Create failed for idea %s: %v", id, err)
		return nil, fmt.Errorf("%w: %v", ideasErrors.ErrDatabaseOperation, err)
	}

	s.invalidateLists(ctx)
	return idea, nil
}

// GetIdea returns the detail view of one idea
func (s *ideaService) GetIdea(ctx context.Context, ideaID uuid.UUID, viewer uuid.UUID) (*models.IdeaDetail, error) {
	var idea models.Idea
	cacheKey := "idea:" + ideaID.String()

	if err := s.cacheService.GetCached(ctx, cacheKey, &idea); err != nil {
		epoch := s.currentEpoch()
		found, err := s.repo.FindByID(ctx, ideaID)
		if err != nil {
			return nil, mapRepositoryError(err)
		}
		idea = *found
		s.fill(ctx, epoch, cacheKey, &idea)
	}

	viewerVotes, err := s.viewerVotes(ctx, []*models.Idea{&idea}, viewer)
	if err != nil {
		return nil, err
	}

	detail := idea.ToDetail(viewerVotes[idea.ID])
	return &detail, nil
}

// Feed returns a page of the newest ideas
func (s *ideaService) Feed(ctx context.Context, query models.PageQuery, viewer uuid.UUID) (*models.FeedPage, error) {
	query.Normalize()

	cacheKey := s.cacheService.GenerateHashKey("feed", map[string]interface{}{
		"limit":  query.Limit,
		"offset": query.Offset,
	})
	ideas, err := s.cachedList(ctx, cacheKey, func() ([]*models.Idea, error) {
		return s.repo.List(ctx, query.Limit, query.Offset)
	})
	if err != nil {
		return nil, err
	}

	viewerVotes, err := s.viewerVotes(ctx, ideas, viewer)
	if err != nil {
		return nil, err
	}

	page := &models.FeedPage{
		Items:      make([]models.FeedItem, 0, len(ideas)),
		Offset:     query.Offset,
		NextOffset: query.NextOffset(len(ideas)),
	}
	for _, idea := range ideas {
		page.Items = append(page.Items, idea.ToFeedItem(viewerVotes[idea.ID]))
	}
	return page, nil
}

// ProfileIdeas returns a page of one user's ideas
func (s *ideaService) ProfileIdeas(ctx context.Context, ownerID uuid.UUID, query models.PageQuery, viewer uuid.UUID) (*models.ProfilePage, error) {
	query.Normalize()

	cacheKey := s.cacheService.GenerateHashKey("profile", map[string]interface{}{
		"owner":  ownerID.String(),
		"limit":  query.Limit,
		"offset": query.Offset,
	})
	ideas, err := s.cachedList(ctx, cacheKey, func() ([]*models.Idea, error) {
		return s.repo.ListByOwner(ctx, ownerID, query.Limit, query.Offset)
	})
	if err != nil {
		return nil, err
	}

	viewerVotes, err := s.viewerVotes(ctx, ideas, viewer)
	if err != nil {
		return nil, err
	}

	page := &models.ProfilePage{
		UserID:     ownerID,
		Items:      make([]models.ProfileIdea, 0, len(ideas)),
		Offset:     query.Offset,
		NextOffset: query.NextOffset(len(ideas)),
	}
	for _, idea := range ideas {
		page.Items = append(page.Items, idea.ToProfileIdea(viewerVotes[idea.ID]))
	}
	return page, nil
}

// InvalidateSubject drops the detail entry and every cached list
func (s *ideaService) InvalidateSubject(ctx context.Context, ideaID uuid.UUID) error {
	if !s.cacheService.IsEnabled() {
		return nil
	}

	s.fillMu.Lock()
	defer s.fillMu.Unlock()
	s.epoch++
	if err := s.cacheService.InvalidateKey(ctx, "idea:"+ideaID.String()); err != nil {
		return err
	}
	s.dropLists(ctx)
	return nil
}

// cachedList reads a list of ideas from cache, falling back to load.
// Only the viewer-independent part of a page is cached.
func (s *ideaService) cachedList(ctx context.Context, cacheKey string, load func() ([]*models.Idea, error)) ([]*models.Idea, error) {
	var ideas []*models.Idea
	if err := s.cacheService.GetCached(ctx, cacheKey, &ideas); err == nil {
		return ideas, nil
	}

	epoch := s.currentEpoch()
	ideas, err := load()
	if err != nil {
		log.ErrorWithContext(ctx, "Repository list failed: %v", err)
		return nil, fmt.Errorf("%w: %v", ideasErrors.ErrDatabaseOperation, err)
	}
	s.fill(ctx, epoch, cacheKey, ideas)
	return ideas, nil
}

func (s *ideaService) currentEpoch() uint64 {
	s.fillMu.RLock()
	defer s.fillMu.RUnlock()
	return s.epoch
}

// fill caches data loaded in epoch unless an invalidation ran since
func (s *ideaService) fill(ctx context.Context, epoch uint64, cacheKey string, data interface{}) {
	s.fillMu.RLock()
	defer s.fillMu.RUnlock()
	if s.epoch != epoch {
		log.Debug("Not caching %s, invalidated while loading", cacheKey)
		return
	}
	_ = s.cacheService.CacheData(ctx, cacheKey, data, listCacheTTL)
}

// viewerVotes looks up the viewer's vote for every idea with one query
func (s *ideaService) viewerVotes(ctx context.Context, ideas []*models.Idea, viewer uuid.UUID) (map[uuid.UUID]voteModels.Direction, error) {
	if viewer == uuid.Nil || s.votes == nil || len(ideas) == 0 {
		return map[uuid.UUID]voteModels.Direction{}, nil
	}

	ids := make([]uuid.UUID, len(ideas))
	for i, idea := range ideas {
		ids[i] = idea.ID
	}

	votes, err := s.votes.GetVotesForSubjects(ctx, ids, viewer)
	if err != nil {
		log.ErrorWithContext(ctx, "Vote lookup failed for viewer %s: %v", viewer, err)
		return nil, fmt.Errorf("%w: %v", ideasErrors.ErrDatabaseOperation, err)
	}
	return votes, nil
}

func (s *ideaService) invalidateLists(ctx context.Context) {
	if !s.cacheService.IsEnabled() {
		return
	}
	s.fillMu.Lock()
	defer s.fillMu.Unlock()
	s.epoch++
	s.dropLists(ctx)
}

// dropLists deletes every cached page list. Must be called with fillMu held.
func (s *ideaService) dropLists(ctx context.Context) {
	s.cacheService.InvalidatePattern(ctx, "feed:*")
	s.cacheService.InvalidatePattern(ctx, "profile:*")
}

func validateCreateRequest(req *models.CreateIdeaRequest) error {
	title := strings.TrimSpace(req.Title)
	switch {
	case title == "":
		return fmt.Errorf("%w: title is required", ideasErrors.ErrInvalidIdeaData)
	case len(title) > models.MaxTitleLength:
		return fmt.Errorf("%w: title exceeds %d characters", ideasErrors.ErrInvalidIdeaData, models.MaxTitleLength)
	case len(req.Body) > models.MaxBodyLength:
		return fmt.Errorf("%w: body exceeds %d characters", ideasErrors.ErrInvalidIdeaData, models.MaxBodyLength)
	}
	return nil
}

func mapRepositoryError(err error) error {
	if errors.Is(err, repository.ErrIdeaNotFound) {
		return ideasErrors.ErrIdeaNotFound
	}
	return fmt.Errorf("%w: %v", ideasErrors.ErrDatabaseOperation, err)
}
