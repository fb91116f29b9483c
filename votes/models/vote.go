// Copyright (c) 2024 Telar Social
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/gofrs/uuid"
)

// ErrInvalidDirection is returned when a direction cannot be parsed
var ErrInvalidDirection = errors.New("invalid vote direction")

// Direction is the state of one user's vote on one subject.
// The numeric values match the vote_type_id column.
type Direction int

const (
	DirectionNone Direction = 0 // no vote row
	DirectionUp   Direction = 1 // +1 score
	DirectionDown Direction = 2 // -1 score
)

// IsValid reports whether d can be requested by a client
func (d Direction) IsValid() bool {
	return d == DirectionUp || d == DirectionDown
}

// Weight returns the contribution of d to a subject's vote count
func (d Direction) Weight() int {
	switch d {
	case DirectionUp:
		return 1
	case DirectionDown:
		return -1
	default:
		return 0
	}
}

func (d Direction) String() string {
	switch d {
	case DirectionUp:
		return "UP"
	case DirectionDown:
		return "DOWN"
	default:
		return ""
	}
}

// ParseDirection accepts "UP"/"DOWN" in any case and the numeric type ids "1"/"2"
func ParseDirection(s string) (Direction, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "UP", "1":
		return DirectionUp, nil
	case "DOWN", "2":
		return DirectionDown, nil
	}
	return DirectionNone, fmt.Errorf("%w: %q", ErrInvalidDirection, s)
}

// MarshalJSON encodes UP/DOWN as strings and None as an empty string
func (d Direction) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts "UP", "DOWN", "", null and the legacy numeric ids 1 and 2
func (d *Direction) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*d = DirectionNone
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "" {
			*d = DirectionNone
			return nil
		}
		parsed, err := ParseDirection(s)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	}

	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDirection, string(data))
	}
	switch Direction(n) {
	case DirectionNone, DirectionUp, DirectionDown:
		*d = Direction(n)
		return nil
	}
	return fmt.Errorf("%w: %d", ErrInvalidDirection, n)
}

// Transition computes the next vote state and the vote count delta when a user
// with vote `current` requests `requested`.
//
//	absent + UP   -> UP     +1
//	absent + DOWN -> DOWN   -1
//	UP     + UP   -> absent -1
//	DOWN   + DOWN -> absent +1
//	UP     + DOWN -> DOWN   -2
//	DOWN   + UP   -> UP     +2
//
// An invalid requested direction leaves the state unchanged.
func Transition(current, requested Direction) (Direction, int) {
	if !requested.IsValid() {
		return current, 0
	}
	next := requested
	if current == requested {
		next = DirectionNone
	}
	return next, next.Weight() - current.Weight()
}

// Converge is the transition used when a request must land on `requested`
// regardless of the stored state. It never toggles a vote off.
func Converge(current, requested Direction) (Direction, int) {
	if !requested.IsValid() || current == requested {
		return current, 0
	}
	return requested, requested.Weight() - current.Weight()
}

// Vote represents a user's vote on a subject
type Vote struct {
	ID        uuid.UUID `db:"id" json:"objectId"`
	SubjectID uuid.UUID `db:"subject_id" json:"subjectId"`
	UserID    uuid.UUID `db:"user_id" json:"userId"`
	Direction Direction `db:"direction" json:"direction"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// VoteResult is the authoritative state after a vote has been applied
type VoteResult struct {
	SubjectID  uuid.UUID
	VoteCount  int64
	ViewerVote Direction
}

// ViewerVoteBody is the JSON form of a viewer vote
type ViewerVoteBody struct {
	Direction Direction `json:"direction"`
}

// VoteResponse is the body returned by POST /votes
type VoteResponse struct {
	Success    bool            `json:"success"`
	SubjectID  string          `json:"subjectId"`
	VoteCount  int64           `json:"voteCount"`
	ViewerVote *ViewerVoteBody `json:"viewerVote"`
}

// ToResponse converts a result to its wire form
func (r *VoteResult) ToResponse() VoteResponse {
	resp := VoteResponse{
		Success:   true,
		SubjectID: r.SubjectID.String(),
		VoteCount: r.VoteCount,
	}
	if r.ViewerVote != DirectionNone {
		resp.ViewerVote = &ViewerVoteBody{Direction: r.ViewerVote}
	}
	return resp
}

// ToResult converts a decoded response back into a result
func (r VoteResponse) ToResult() (*VoteResult, error) {
	subjectID, err := uuid.FromString(r.SubjectID)
	if err != nil {
		return nil, fmt.Errorf("invalid subjectId in response: %w", err)
	}
	result := &VoteResult{SubjectID: subjectID, VoteCount: r.VoteCount}
	if r.ViewerVote != nil {
		result.ViewerVote = r.ViewerVote.Direction
	}
	return result, nil
}

// VoteRequest is the body of POST /votes.
// postId and typeId are accepted for older clients.
type VoteRequest struct {
	SubjectID string    `json:"subjectId"`
	Direction Direction `json:"direction"`
	PostID    string    `json:"postId,omitempty"`
	TypeID    Direction `json:"typeId,omitempty"`
}

// Normalize folds the legacy fields into SubjectID and Direction
func (r *VoteRequest) Normalize() {
	if r.SubjectID == "" {
		r.SubjectID = r.PostID
	}
	if r.Direction == DirectionNone {
		r.Direction = r.TypeID
	}
}
