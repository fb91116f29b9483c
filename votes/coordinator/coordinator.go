// Copyright (c) 2024 Telar Social
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package coordinator applies votes to every cached page showing a subject
// before the server answers, then confirms or rolls back all of them together.
package coordinator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	uuid "github.com/gofrs/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/affan-mulla/nextup/internal/pkg/log"
	"github.com/affan-mulla/nextup/internal/querycache"
	voteErrors "github.com/affan-mulla/nextup/votes/errors"
	"github.com/affan-mulla/nextup/votes/models"
)

// ErrVotePending is returned when a vote on the same subject is still in flight
var ErrVotePending = errors.New("vote already pending for subject")

const (
	defaultRequestTimeout = 10 * time.Second
	defaultSettledLimit   = 1024
)

// Voter sends a vote to the server
type Voter interface {
	ApplyVote(ctx context.Context, subjectID uuid.UUID, direction models.Direction) (*models.VoteResult, error)
}

// Notifier is told about votes that were rolled back
type Notifier interface {
	VoteFailed(ctx context.Context, subjectID uuid.UUID, err error)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(ctx context.Context, subjectID uuid.UUID, err error)

func (f NotifierFunc) VoteFailed(ctx context.Context, subjectID uuid.UUID, err error) {
	f(ctx, subjectID, err)
}

// logNotifier surfaces a dismissible warning
var logNotifier = NotifierFunc(func(ctx context.Context, subjectID uuid.UUID, err error) {
	log.WarnWithContext(ctx, "Your vote on %s could not be saved and was undone: %v", subjectID, err)
})

// Recorder receives optimistic vote outcomes
type Recorder interface {
	RecordOptimisticOutcome(outcome string)
}

// Phase is the state of one subject's vote control
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePending
	PhaseConfirmed
	PhaseRolledBack
)

func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "pending"
	case PhaseConfirmed:
		return "confirmed"
	case PhaseRolledBack:
		return "rolled_back"
	default:
		return "idle"
	}
}

// Outcome describes a confirmed vote
type Outcome struct {
	SubjectID uuid.UUID
	Phase     Phase
	Result    *models.VoteResult

	// Pages lists the cache keys rewritten with the server values
	Pages []string
}

// Coordinator keeps every cached view of a subject consistent while its vote is in flight
type Coordinator struct {
	store    *querycache.Store
	voter    Voter
	codecs   []PageCodec
	timeout  time.Duration
	notifier Notifier
	recorder Recorder

	settledLimit int

	mu      sync.Mutex
	pending map[uuid.UUID]struct{}
	// settled keeps the last confirmed or rolled back phases; older
	// subjects fall back to idle
	settled *lru.Cache[uuid.UUID, Phase]
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithRequestTimeout bounds each vote request. Zero leaves only the caller's deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.timeout = d }
}

// WithNotifier sets who hears about rolled back votes
func WithNotifier(n Notifier) Option {
	return func(c *Coordinator) { c.notifier = n }
}

// WithRecorder reports outcomes to metrics
func WithRecorder(r Recorder) Option {
	return func(c *Coordinator) { c.recorder = r }
}

// WithSettledLimit bounds how many subjects remember their last outcome
func WithSettledLimit(n int) Option {
	return func(c *Coordinator) { c.settledLimit = n }
}

// WithCodec adds a page shape. Codecs are tried in order.
func WithCodec(codec PageCodec) Option {
	return func(c *Coordinator) { c.codecs = append(c.codecs, codec) }
}

// New creates a coordinator over store that sends votes through voter
func New(store *querycache.Store, voter Voter, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:    store,
		voter:    voter,
		codecs:   DefaultCodecs(),
		timeout:  defaultRequestTimeout,
		notifier: logNotifier,
		pending:  make(map[uuid.UUID]struct{}),

		settledLimit: defaultSettledLimit,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.settledLimit <= 0 {
		c.settledLimit = defaultSettledLimit
	}
	c.settled, _ = lru.New[uuid.UUID, Phase](c.settledLimit)
	return c
}

// IsPending reports whether a vote on subjectID is in flight
func (c *Coordinator) IsPending(subjectID uuid.UUID) bool {
	return c.Phase(subjectID) == PhasePending
}

// Phase returns the state of subjectID's vote control
func (c *Coordinator) Phase(subjectID uuid.UUID) Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.pending[subjectID]; ok {
		return PhasePending
	}
	if phase, ok := c.settled.Peek(subjectID); ok {
		return phase
	}
	return PhaseIdle
}

// settle ends subjectID's pending phase. Must be called with c.mu held.
func (c *Coordinator) settle(subjectID uuid.UUID, phase Phase) {
	delete(c.pending, subjectID)
	c.settled.Add(subjectID, phase)
}

// pending holds what one Vote call changed until it is confirmed or undone
type pending struct {
	subjectID  uuid.UUID
	keys       []string
	snapshot   map[string][]byte
	optimistic map[string][]byte
	resume     func()
}

// Vote applies direction to every cached page showing subjectID, sends it,
// and then either writes the server's values to those pages or restores them.
// If the server accepted the vote but the pages cannot be written, they are
// refetched instead. Inactive pages are revalidated in the background.
func (c *Coordinator) Vote(ctx context.Context, subjectID uuid.UUID, direction models.Direction) (*Outcome, error) {
	if !direction.IsValid() {
		return nil, fmt.Errorf("%w: direction must be UP or DOWN", voteErrors.ErrInvalidInput)
	}

	p, err := c.applyOptimistic(ctx, subjectID, direction)
	if err != nil {
		return nil, err
	}

	result, err := c.send(ctx, subjectID, direction)
	if err != nil {
		c.rollback(ctx, p)
		p.resume()
		c.revalidate(p.keys)

		if c.recorder != nil {
			c.recorder.RecordOptimisticOutcome(PhaseRolledBack.String())
		}
		c.notifier.VoteFailed(ctx, subjectID, err)
		return nil, err
	}

	outcome, err := c.confirm(ctx, p, result)
	p.resume()
	if err != nil {
		// The server has the vote; refetch what the pages could not be told
		log.WarnWithContext(ctx, "Vote on %s saved but cached pages were not updated, refetching: %v", subjectID, err)
		c.store.Revalidate(p.keys, querycache.PriorityActive)
		outcome = &Outcome{SubjectID: subjectID, Phase: PhaseConfirmed, Result: result}
	} else {
		c.revalidate(p.keys)
	}

	if c.recorder != nil {
		c.recorder.RecordOptimisticOutcome(PhaseConfirmed.String())
	}
	return outcome, nil
}

// applyOptimistic runs steps 1 to 3 under the coordinator lock
func (c *Coordinator) applyOptimistic(ctx context.Context, subjectID uuid.UUID, direction models.Direction) (*pending, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.pending[subjectID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrVotePending, subjectID)
	}

	entries, err := c.store.Find(ctx, c.holds(subjectID))
	if err != nil {
		return nil, fmt.Errorf("failed to find cached pages: %w", err)
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, e.Key)
	}

	p := &pending{
		subjectID:  subjectID,
		keys:       keys,
		snapshot:   make(map[string][]byte, len(keys)),
		optimistic: make(map[string][]byte, len(keys)),
		resume:     c.store.Suspend(keys),
	}

	// Snapshot after suspending so no refetch can land in between
	for _, key := range keys {
		page, err := c.store.Get(ctx, key)
		if err != nil {
			continue
		}
		codec := c.codecFor(key)
		view, ok, err := codec.View(page, subjectID)
		if err != nil || !ok {
			continue
		}

		next, delta := models.Transition(view.ViewerVote, direction)
		view.ViewerVote = next
		view.VoteCount += int64(delta)

		updated, err := codec.Write(page, view)
		if err != nil {
			p.resume()
			return nil, fmt.Errorf("failed to apply optimistic vote to %s: %w", key, err)
		}
		p.snapshot[key] = page
		p.optimistic[key] = updated
	}

	if err := c.store.SetMany(ctx, p.optimistic); err != nil {
		// SetMany may have written some pages before failing
		_ = c.store.SetMany(ctx, p.snapshot)
		p.resume()
		return nil, fmt.Errorf("failed to apply optimistic vote: %w", err)
	}

	c.pending[subjectID] = struct{}{}
	c.settled.Remove(subjectID)
	log.Debug("Optimistic vote %s on %s applied to %d pages", direction, subjectID, len(p.optimistic))
	return p, nil
}

func (c *Coordinator) send(ctx context.Context, subjectID uuid.UUID, direction models.Direction) (*models.VoteResult, error) {
	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	result, err := c.voter.ApplyVote(callCtx, subjectID, direction)
	switch {
	case err != nil && callCtx.Err() != nil && !errors.Is(err, voteErrors.ErrTransient):
		return nil, fmt.Errorf("%w: %w", voteErrors.ErrTransient, err)
	case err != nil:
		return nil, err
	case result == nil:
		return nil, fmt.Errorf("%w: empty vote response", voteErrors.ErrUnknown)
	case result.SubjectID != uuid.Nil && result.SubjectID != subjectID:
		return nil, fmt.Errorf("%w: response for %s, expected %s", voteErrors.ErrUnknown, result.SubjectID, subjectID)
	}
	return result, nil
}

// confirm writes the server values to every page that now shows the subject.
// The subject is confirmed even when the pages cannot be written.
func (c *Coordinator) confirm(ctx context.Context, p *pending, result *models.VoteResult) (*Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.settle(p.subjectID, PhaseConfirmed)

	entries, err := c.store.Find(ctx, c.holds(p.subjectID))
	if err != nil {
		return nil, fmt.Errorf("failed to find cached pages: %w", err)
	}

	server := SubjectView{SubjectID: p.subjectID, VoteCount: result.VoteCount, ViewerVote: result.ViewerVote}
	confirmed := make(map[string][]byte, len(entries))
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		updated, err := c.codecFor(e.Key).Write(e.Page, server)
		if err != nil {
			return nil, fmt.Errorf("failed to write confirmed vote to %s: %w", e.Key, err)
		}
		confirmed[e.Key] = updated
		keys = append(keys, e.Key)
	}
	if err := c.store.SetMany(ctx, confirmed); err != nil {
		return nil, fmt.Errorf("failed to write confirmed vote: %w", err)
	}

	p.keys = union(p.keys, keys)
	return &Outcome{SubjectID: p.subjectID, Phase: PhaseConfirmed, Result: result, Pages: keys}, nil
}

// rollback restores the snapshot. A page that another vote has rewritten
// since only gets this subject's entry restored.
func (c *Coordinator) rollback(ctx context.Context, p *pending) {
	c.mu.Lock()
	defer c.mu.Unlock()

	restored := make(map[string][]byte, len(p.snapshot))
	for key, snap := range p.snapshot {
		current, err := c.store.Get(ctx, key)
		if err != nil || bytes.Equal(current, p.optimistic[key]) {
			restored[key] = snap
			continue
		}

		codec := c.codecFor(key)
		view, ok, err := codec.View(snap, p.subjectID)
		if err != nil || !ok {
			continue
		}
		page, err := codec.Write(current, view)
		if err != nil {
			log.WarnWithContext(ctx, "Failed to roll back %s on %s, restoring snapshot: %v", p.subjectID, key, err)
			page = snap
		}
		restored[key] = page
	}

	if err := c.store.SetMany(ctx, restored); err != nil {
		log.ErrorWithContext(ctx, "Rollback of vote on %s failed: %v", p.subjectID, err)
	}
	c.settle(p.subjectID, PhaseRolledBack)
}

// revalidate queues a background refetch of every page nobody is looking at
func (c *Coordinator) revalidate(keys []string) {
	var inactive []string
	for _, key := range keys {
		if !c.store.IsActive(key) {
			inactive = append(inactive, key)
		}
	}
	c.store.Revalidate(inactive, querycache.PriorityBackground)
}

func (c *Coordinator) codecFor(key string) PageCodec {
	for _, codec := range c.codecs {
		if codec.Match(key) {
			return codec
		}
	}
	return nil
}

func (c *Coordinator) holds(subjectID uuid.UUID) func(key string, page []byte) bool {
	return func(key string, page []byte) bool {
		codec := c.codecFor(key)
		if codec == nil {
			return false
		}
		_, ok, err := codec.View(page, subjectID)
		return err == nil && ok
	}
}

func union(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, key := range list {
			if !seen[key] {
				seen[key] = true
				out = append(out, key)
			}
		}
	}
	return out
}
