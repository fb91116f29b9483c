// Copyright (c) 2024 Telar Social
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package coordinator

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	uuid "github.com/gofrs/uuid"

	ideaModels "github.com/affan-mulla/nextup/ideas/models"
	"github.com/affan-mulla/nextup/votes/models"
)

// Cache key prefixes of the three page kinds
const (
	FeedKeyPrefix    = "ideas:feed:"
	DetailKeyPrefix  = "ideas:detail:"
	ProfileKeyPrefix = "profile:"
)

// FeedKey is the cache key of the feed page starting at offset
func FeedKey(offset int) string {
	return FeedKeyPrefix + strconv.Itoa(offset)
}

// DetailKey is the cache key of one idea's detail page
func DetailKey(ideaID uuid.UUID) string {
	return DetailKeyPrefix + ideaID.String()
}

// ProfileKey is the cache key of a profile page starting at offset
func ProfileKey(userID uuid.UUID, offset int) string {
	return ProfileKeyPrefix + userID.String() + ":" + strconv.Itoa(offset)
}

// SubjectView is a subject's vote state as cached on one page,
// whatever shape that page uses for it
type SubjectView struct {
	SubjectID  uuid.UUID
	VoteCount  int64
	ViewerVote models.Direction
}

// PageCodec reads and rewrites subject entries in one page shape
type PageCodec interface {
	// Match reports whether the codec handles pages stored under key
	Match(key string) bool
	// View returns the subject's entry on the page, if present
	View(page []byte, subjectID uuid.UUID) (SubjectView, bool, error)
	// Write replaces the subject's vote count and viewer vote on the page
	Write(page []byte, view SubjectView) ([]byte, error)
}

// FeedCodec handles GET /ideas pages: voteCount + viewerVote{direction}
type FeedCodec struct{}

func (FeedCodec) Match(key string) bool { return strings.HasPrefix(key, FeedKeyPrefix) }

func (FeedCodec) View(page []byte, subjectID uuid.UUID) (SubjectView, bool, error) {
	var p ideaModels.FeedPage
	if err := json.Unmarshal(page, &p); err != nil {
		return SubjectView{}, false, fmt.Errorf("failed to decode feed page: %w", err)
	}
	for _, item := range p.Items {
		if item.ObjectID == subjectID {
			view := SubjectView{SubjectID: subjectID, VoteCount: item.VoteCount}
			if item.ViewerVote != nil {
				view.ViewerVote = item.ViewerVote.Direction
			}
			return view, true, nil
		}
	}
	return SubjectView{}, false, nil
}

func (FeedCodec) Write(page []byte, view SubjectView) ([]byte, error) {
	var p ideaModels.FeedPage
	if err := json.Unmarshal(page, &p); err != nil {
		return nil, fmt.Errorf("failed to decode feed page: %w", err)
	}
	for i := range p.Items {
		if p.Items[i].ObjectID != view.SubjectID {
			continue
		}
		p.Items[i].VoteCount = view.VoteCount
		p.Items[i].ViewerVote = nil
		if view.ViewerVote.IsValid() {
			p.Items[i].ViewerVote = &ideaModels.VoteRef{Direction: view.ViewerVote}
		}
	}
	return json.Marshal(p)
}

// DetailCodec handles GET /ideas/:ideaId pages: score + userVote{type}
type DetailCodec struct{}

func (DetailCodec) Match(key string) bool { return strings.HasPrefix(key, DetailKeyPrefix) }

func (DetailCodec) View(page []byte, subjectID uuid.UUID) (SubjectView, bool, error) {
	var d ideaModels.IdeaDetail
	if err := json.Unmarshal(page, &d); err != nil {
		return SubjectView{}, false, fmt.Errorf("failed to decode idea detail: %w", err)
	}
	if d.ObjectID != subjectID {
		return SubjectView{}, false, nil
	}
	view := SubjectView{SubjectID: subjectID, VoteCount: d.Score}
	if d.UserVote != nil {
		view.ViewerVote = d.UserVote.Type
	}
	return view, true, nil
}

func (DetailCodec) Write(page []byte, view SubjectView) ([]byte, error) {
	var d ideaModels.IdeaDetail
	if err := json.Unmarshal(page, &d); err != nil {
		return nil, fmt.Errorf("failed to decode idea detail: %w", err)
	}
	if d.ObjectID != view.SubjectID {
		return page, nil
	}
	d.Score = view.VoteCount
	d.UserVote = nil
	if view.ViewerVote.IsValid() {
		d.UserVote = &ideaModels.TypedVoteRef{Type: view.ViewerVote}
	}
	return json.Marshal(d)
}

// ProfileCodec handles GET /profiles/:userId/ideas pages: votes + bare voteType
type ProfileCodec struct{}

func (ProfileCodec) Match(key string) bool { return strings.HasPrefix(key, ProfileKeyPrefix) }

func (ProfileCodec) View(page []byte, subjectID uuid.UUID) (SubjectView, bool, error) {
	var p ideaModels.ProfilePage
	if err := json.Unmarshal(page, &p); err != nil {
		return SubjectView{}, false, fmt.Errorf("failed to decode profile page: %w", err)
	}
	for _, item := range p.Items {
		if item.ObjectID == subjectID {
			return SubjectView{SubjectID: subjectID, VoteCount: item.Votes, ViewerVote: item.VoteType}, true, nil
		}
	}
	return SubjectView{}, false, nil
}

func (ProfileCodec) Write(page []byte, view SubjectView) ([]byte, error) {
	var p ideaModels.ProfilePage
	if err := json.Unmarshal(page, &p); err != nil {
		return nil, fmt.Errorf("failed to decode profile page: %w", err)
	}
	for i := range p.Items {
		if p.Items[i].ObjectID == view.SubjectID {
			p.Items[i].Votes = view.VoteCount
			p.Items[i].VoteType = view.ViewerVote
		}
	}
	return json.Marshal(p)
}

// DefaultCodecs returns the codecs for the built-in page kinds
func DefaultCodecs() []PageCodec {
	return []PageCodec{FeedCodec{}, DetailCodec{}, ProfileCodec{}}
}
