// Copyright (c) 2024 Telar Social
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package models

import (
	"time"

	uuid "github.com/gofrs/uuid"

	voteModels "github.com/affan-mulla/nextup/votes/models"
)

// Pagination bounds for list endpoints
const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
	MaxTitleLength   = 200
	MaxBodyLength    = 10000
)

// Idea is the votable subject. Score is the vote count and only changes
// through an atomic increment in the same transaction as the vote row.
type Idea struct {
	ID               uuid.UUID `db:"id"`
	OwnerUserID      uuid.UUID `db:"owner_user_id"`
	OwnerDisplayName string    `db:"owner_display_name"`
	Title            string    `db:"title"`
	Body             string    `db:"body"`
	Score            int64     `db:"score"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

// CreateIdeaRequest is the body of POST /ideas
type CreateIdeaRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// PageQuery is decoded from ?limit=&offset=
type PageQuery struct {
	Limit  int `schema:"limit"`
	Offset int `schema:"offset"`
}

// Normalize clamps the query into the allowed range
func (q *PageQuery) Normalize() {
	if q.Limit <= 0 {
		q.Limit = DefaultPageLimit
	}
	if q.Limit > MaxPageLimit {
		q.Limit = MaxPageLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
}

// NextOffset returns the offset of the following page, or nil when got < limit
func (q PageQuery) NextOffset(got int) *int {
	if got < q.Limit {
		return nil
	}
	next := q.Offset + q.Limit
	return &next
}

// The three read endpoints carry the viewer's vote in different shapes.
// Clients caching these pages must normalise them before comparing.

// VoteRef is the feed shape: {"direction":"UP"} or null
type VoteRef struct {
	Direction voteModels.Direction `json:"direction"`
}

// TypedVoteRef is the detail shape: {"type":"UP"} or null
type TypedVoteRef struct {
	Type voteModels.Direction `json:"type"`
}

// FeedItem is one idea on the home feed
type FeedItem struct {
	ObjectID         uuid.UUID `json:"objectId"`
	OwnerUserID      uuid.UUID `json:"ownerUserId"`
	OwnerDisplayName string    `json:"ownerDisplayName"`
	Title            string    `json:"title"`
	Body             string    `json:"body"`
	VoteCount        int64     `json:"voteCount"`
	ViewerVote       *VoteRef  `json:"viewerVote"`
	CreatedAt        time.Time `json:"createdAt"`
}

// FeedPage is the body of GET /ideas
type FeedPage struct {
	Items      []FeedItem `json:"items"`
	Offset     int        `json:"offset"`
	NextOffset *int       `json:"nextOffset"`
}

// IdeaDetail is the body of GET /ideas/:ideaId
type IdeaDetail struct {
	ObjectID         uuid.UUID     `json:"objectId"`
	OwnerUserID      uuid.UUID     `json:"ownerUserId"`
	OwnerDisplayName string        `json:"ownerDisplayName"`
	Title            string        `json:"title"`
	Body             string        `json:"body"`
	Score            int64         `json:"score"`
	UserVote         *TypedVoteRef `json:"userVote"`
	CreatedAt        time.Time     `json:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`
}

// ProfileIdea is one idea on a user's profile tab. VoteType is a bare enum, "" when absent.
type ProfileIdea struct {
	ObjectID  uuid.UUID            `json:"objectId"`
	Title     string               `json:"title"`
	Votes     int64                `json:"votes"`
	VoteType  voteModels.Direction `json:"voteType"`
	CreatedAt time.Time            `json:"createdAt"`
}

// ProfilePage is the body of GET /profiles/:userId/ideas
type ProfilePage struct {
	UserID     uuid.UUID     `json:"userId"`
	Items      []ProfileIdea `json:"items"`
	Offset     int           `json:"offset"`
	NextOffset *int          `json:"nextOffset"`
}

// ToFeedItem projects an idea onto the feed shape
func (i *Idea) ToFeedItem(viewerVote voteModels.Direction) FeedItem {
	item := FeedItem{
		ObjectID:         i.ID,
		OwnerUserID:      i.OwnerUserID,
		OwnerDisplayName: i.OwnerDisplayName,
		Title:            i.Title,
		Body:             i.Body,
		VoteCount:        i.Score,
		CreatedAt:        i.CreatedAt,
	}
	if viewerVote.IsValid() {
		item.ViewerVote = &VoteRef{Direction: viewerVote}
	}
	return item
}

// ToDetail projects an idea onto the detail shape
func (i *Idea) ToDetail(viewerVote voteModels.Direction) IdeaDetail {
	detail := IdeaDetail{
		ObjectID:         i.ID,
		OwnerUserID:      i.OwnerUserID,
		OwnerDisplayName: i.OwnerDisplayName,
		Title:            i.Title,
		Body:             i.Body,
		Score:            i.Score,
		CreatedAt:        i.CreatedAt,
		UpdatedAt:        i.UpdatedAt,
	}
	if viewerVote.IsValid() {
		detail.UserVote = &TypedVoteRef{Type: viewerVote}
	}
	return detail
}

// ToProfileIdea projects an idea onto the profile shape
func (i *Idea) ToProfileIdea(viewerVote voteModels.Direction) ProfileIdea {
	return ProfileIdea{
		ObjectID:  i.ID,
		Title:     i.Title,
		Votes:     i.Score,
		VoteType:  viewerVote,
		CreatedAt: i.CreatedAt,
	}
}
