// Copyright (c) 2024 Telar Social
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	uuid "github.com/gofrs/uuid"

	ideaRepository "github.com/affan-mulla/nextup/ideas/repository"
	"github.com/affan-mulla/nextup/internal/database/postgres"
	"github.com/affan-mulla/nextup/internal/pkg/log"
	platformconfig "github.com/affan-mulla/nextup/internal/platform/config"
	voteErrors "github.com/affan-mulla/nextup/votes/errors"
	"github.com/affan-mulla/nextup/votes/models"
	voteRepository "github.com/affan-mulla/nextup/votes/repository"
)

const defaultConflictRetries = 3

// VoteService defines the interface for vote operations
type VoteService interface {
	// ApplyVote creates, switches or removes the user's vote on a subject and
	// returns the committed vote count and viewer vote. The vote row and the
	// subject's counter change in one transaction.
	ApplyVote(ctx context.Context, userID, subjectID uuid.UUID, direction models.Direction) (*models.VoteResult, error)
}

// SubjectRepository is the part of the idea store the ledger writes to
type SubjectRepository interface {
	GetScore(ctx context.Context, id uuid.UUID) (int64, error)
	IncrementScore(ctx context.Context, id uuid.UUID, delta int) (int64, error)
	WithTransaction(ctx context.Context, fn func(context.Context) error) error
}

// SubjectCacheInvalidator drops server-side pages carrying a subject's score
type SubjectCacheInvalidator interface {
	InvalidateSubject(ctx context.Context, subjectID uuid.UUID) error
}

// Recorder receives vote metrics
type Recorder interface {
	RecordVoteApplied(transition string)
	RecordVoteConflict()
	RecordVoteFailure(code string)
	ObserveVoteLatency(d time.Duration)
}

type transitionFunc func(current, requested models.Direction) (models.Direction, int)

// voteService implements the VoteService interface
type voteService struct {
	voteRepo    voteRepository.VoteRepository
	subjectRepo SubjectRepository
	invalidator SubjectCacheInvalidator
	recorder    Recorder
	maxAttempts int
	timeout     time.Duration
}

// NewVoteService creates a new instance of the vote service.
// invalidator and recorder may be nil.
func NewVoteService(voteRepo voteRepository.VoteRepository, subjectRepo SubjectRepository, cfg *platformconfig.Config, invalidator SubjectCacheInvalidator, recorder Recorder) VoteService {
	s := &voteService{
		voteRepo:    voteRepo,
		subjectRepo: subjectRepo,
		invalidator: invalidator,
		recorder:    recorder,
		maxAttempts: defaultConflictRetries,
	}
	if cfg != nil {
		if cfg.Votes.ConflictRetries > 0 {
			s.maxAttempts = cfg.Votes.ConflictRetries
		}
		s.timeout = cfg.Votes.Timeout
	}
	if s.recorder == nil {
		s.recorder = nopRecorder{}
	}
	return s
}

// ApplyVote applies one vote request.
//
// A duplicate insert means a concurrent request from the same user created
// the row first. The transaction is rolled back and re-run in convergent mode,
// where the requested direction is a target state and never toggles off.
func (s *voteService) ApplyVote(ctx context.Context, userID, subjectID uuid.UUID, direction models.Direction) (*models.VoteResult, error) {
	start := time.Now()

	if userID == uuid.Nil {
		return nil, s.fail(ctx, voteErrors.ErrUnauthorized)
	}
	if subjectID == uuid.Nil {
		return nil, s.fail(ctx, fmt.Errorf("%w: subjectId is required", voteErrors.ErrInvalidInput))
	}
	if !direction.IsValid() {
		return nil, s.fail(ctx, fmt.Errorf("%w: direction must be UP or DOWN", voteErrors.ErrInvalidInput))
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	transition := transitionFunc(models.Transition)
	for attempt := 1; ; attempt++ {
		result, previous, err := s.applyOnce(ctx, userID, subjectID, direction, transition)
		if err == nil {
			s.afterCommit(ctx, subjectID, previous, result.ViewerVote)
			s.recorder.ObserveVoteLatency(time.Since(start))
			return result, nil
		}

		if !errors.Is(err, voteRepository.ErrDuplicateVote) {
			return nil, s.fail(ctx, s.classify(err))
		}

		s.recorder.RecordVoteConflict()
		if attempt >= s.maxAttempts {
			return nil, s.fail(ctx, fmt.Errorf("%w: gave up after %d attempts on subject %s", voteErrors.ErrVoteConflict, attempt, subjectID))
		}
		log.WarnWithContext(ctx, "Vote by %s on %s lost a uniqueness race, retrying (attempt %d)", userID, subjectID, attempt)
		transition = models.Converge
	}
}

// applyOnce runs one transaction and returns the result and the vote state it replaced
func (s *voteService) applyOnce(ctx context.Context, userID, subjectID uuid.UUID, direction models.Direction, transition transitionFunc) (*models.VoteResult, models.Direction, error) {
	var (
		result   *models.VoteResult
		previous models.Direction
	)

	err := s.subjectRepo.WithTransaction(ctx, func(txCtx context.Context) error {
		score, err := s.subjectRepo.GetScore(txCtx, subjectID)
		if err != nil {
			return err
		}

		current := models.DirectionNone
		existing, err := s.voteRepo.FindByUserAndSubject(txCtx, userID, subjectID)
		switch {
		case err == nil:
			current = existing.Direction
		case errors.Is(err, voteRepository.ErrVoteNotFound):
		default:
			return fmt.Errorf("failed to find existing vote: %w", err)
		}

		next, delta := transition(current, direction)
		if err := s.persist(txCtx, userID, subjectID, current, next); err != nil {
			return err
		}

		if delta != 0 {
			if score, err = s.subjectRepo.IncrementScore(txCtx, subjectID, delta); err != nil {
				return fmt.Errorf("failed to increment subject score: %w", err)
			}
		}

		previous = current
		result = &models.VoteResult{SubjectID: subjectID, VoteCount: score, ViewerVote: next}
		return nil
	})
	if err != nil {
		return nil, models.DirectionNone, err
	}
	return result, previous, nil
}

// persist writes exactly one row change for current -> next
func (s *voteService) persist(ctx context.Context, userID, subjectID uuid.UUID, current, next models.Direction) error {
	switch {
	case current == next:
		return nil
	case current == models.DirectionNone:
		voteID, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("failed to generate vote ID: %w", err)
		}
		return s.voteRepo.Insert(ctx, &models.Vote{
			ID:        voteID,
			SubjectID: subjectID,
			UserID:    userID,
			Direction: next,
		})
	case next == models.DirectionNone:
		if err := s.voteRepo.Delete(ctx, userID, subjectID); err != nil {
			return fmt.Errorf("failed to delete vote: %w", err)
		}
		return nil
	default:
		if err := s.voteRepo.UpdateDirection(ctx, userID, subjectID, next); err != nil {
			return fmt.Errorf("failed to update vote: %w", err)
		}
		return nil
	}
}

func (s *voteService) afterCommit(ctx context.Context, subjectID uuid.UUID, previous, next models.Direction) {
	if s.invalidator != nil {
		if err := s.invalidator.InvalidateSubject(ctx, subjectID); err != nil {
			log.WarnWithContext(ctx, "Cache invalidation failed for subject %s: %v", subjectID, err)
		}
	}
	s.recorder.RecordVoteApplied(transitionLabel(previous, next))
	log.InfoWithContext(ctx, "Vote applied on %s: %s", subjectID, transitionLabel(previous, next))
}

// classify maps repository and context failures onto the vote taxonomy
func (s *voteService) classify(err error) error {
	switch {
	case errors.Is(err, ideaRepository.ErrIdeaNotFound), errors.Is(err, voteRepository.ErrSubjectMissing):
		return fmt.Errorf("%w: %v", voteErrors.ErrSubjectNotFound, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled), postgres.IsRetryable(err):
		return fmt.Errorf("%w: %v", voteErrors.ErrTransient, err)
	default:
		return fmt.Errorf("%w: %v", voteErrors.ErrPersistence, err)
	}
}

func (s *voteService) fail(ctx context.Context, err error) error {
	code := voteErrors.Classify(err)
	s.recorder.RecordVoteFailure(string(code))
	if code == voteErrors.CodeUnknown {
		log.ErrorWithContext(ctx, "ApplyVote failed: %v", err)
	}
	return err
}

func transitionLabel(previous, next models.Direction) string {
	return directionLabel(previous) + "->" + directionLabel(next)
}

func directionLabel(d models.Direction) string {
	if d == models.DirectionNone {
		return "NONE"
	}
	return d.String()
}

type nopRecorder struct{}

func (nopRecorder) RecordVoteApplied(string) {}
func (nopRecorder) RecordVoteConflict() {}
func (nopRecorder) RecordVoteFailure(string) {}
func (nopRecorder) ObserveVoteLatency(time.Duration) {}
