// Copyright (c) 2024 Telar Social
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package memory is an in-process implementation of the idea and vote
// repositories for development mode and tests. Transactions are serialized
// and undone from a journal on error.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/gofrs/uuid"

	ideaModels "github.com/affan-mulla/nextup/ideas/models"
	voteModels "github.com/affan-mulla/nextup/votes/models"
)

type voteKey struct {
	subjectID uuid.UUID
	userID    uuid.UUID
}

// Store holds ideas and votes behind one lock
type Store struct {
	mu    sync.RWMutex
	ideas map[uuid.UUID]*ideaModels.Idea
	votes map[voteKey]*voteModels.Vote

	// txSem admits one transaction at a time; waiting on it honours the
	// caller's context, which waiting on mu cannot
	txSem chan struct{}
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		ideas: make(map[uuid.UUID]*ideaModels.Idea),
		votes: make(map[voteKey]*voteModels.Vote),
		txSem: make(chan struct{}, 1),
	}
}

type txKey struct{}

// journal records undo steps for the running transaction
type journal struct {
	store *Store
	undo  []func()
}

// journalFrom returns the transaction of s carried by ctx, if any
func (s *Store) journalFrom(ctx context.Context) *journal {
	if j, ok := ctx.Value(txKey{}).(*journal); ok && j.store == s {
		return j
	}
	return nil
}

// record registers an undo step when ctx carries a transaction
func (s *Store) record(ctx context.Context, undo func()) {
	if j := s.journalFrom(ctx); j != nil {
		j.undo = append(j.undo, undo)
	}
}

// lock takes the write lock unless ctx belongs to a transaction, which
// already holds it
func (s *Store) lock(ctx context.Context) (unlock func()) {
	if s.journalFrom(ctx) != nil {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// rlock is lock for readers
func (s *Store) rlock(ctx context.Context) (unlock func()) {
	if s.journalFrom(ctx) != nil {
		return func() {}
	}
	s.mu.RLock()
	return s.mu.RUnlock
}

// WithTransaction runs fn holding the store's write lock, so no reader sees
// a partly applied transaction. If fn fails every mutation made through its
// context is undone in reverse order before the lock is released.
func (s *Store) WithTransaction(ctx context.Context, fn func(context.Context) error) error {
	if s.journalFrom(ctx) != nil {
		return fn(ctx)
	}

	select {
	case s.txSem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-s.txSem }()

	s.mu.Lock()
	defer s.mu.Unlock()

	j := &journal{store: s}
	if err := fn(context.WithValue(ctx, txKey{}, j)); err != nil {
		for i := len(j.undo) - 1; i >= 0; i-- {
			j.undo[i]()
		}
		return err
	}
	return nil
}

// CountVotes returns the number of UP and DOWN rows for a subject
func (s *Store) CountVotes(subjectID uuid.UUID) (up, down int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for key, vote := range s.votes {
		if key.subjectID != subjectID {
			continue
		}
		switch vote.Direction {
		case voteModels.DirectionUp:
			up++
		case voteModels.DirectionDown:
			down++
		}
	}
	return up, down
}

func copyIdea(idea *ideaModels.Idea) *ideaModels.Idea {
	c := *idea
	return &c
}

func sortNewestFirst(ideas []*ideaModels.Idea) {
	sort.Slice(ideas, func(i, j int) bool {
		if !ideas[i].CreatedAt.Equal(ideas[j].CreatedAt) {
			return ideas[i].CreatedAt.After(ideas[j].CreatedAt)
		}
		return ideas[i].ID.String() < ideas[j].ID.String()
	})
}

func page(ideas []*ideaModels.Idea, limit, offset int) []*ideaModels.Idea {
	if offset >= len(ideas) {
		return []*ideaModels.Idea{}
	}
	end := offset + limit
	if end > len(ideas) {
		end = len(ideas)
	}
	return ideas[offset:end]
}
