// Copyright (c) 2024 Telar Social
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package handlers

import (
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"
	uuid "github.com/gofrs/uuid"

	"github.com/affan-mulla/nextup/internal/types"
	"github.com/affan-mulla/nextup/votes/errors"
	"github.com/affan-mulla/nextup/votes/models"
	"github.com/affan-mulla/nextup/votes/services"
)

// VoteHandler handles all vote-related HTTP requests
type VoteHandler struct {
	voteService services.VoteService
}

// NewVoteHandler creates a new VoteHandler with injected dependencies
func NewVoteHandler(voteService services.VoteService) *VoteHandler {
	return &VoteHandler{
		voteService: voteService,
	}
}

// Vote handles vote creation, switching and toggling off
// Endpoint: POST /votes
// Body: {"subjectId": "uuid", "direction": "UP"}
func (h *VoteHandler) Vote(c *fiber.Ctx) error {
	var req models.VoteRequest
	if err := c.BodyParser(&req); err != nil {
		return errors.HandleInvalidRequestError(c, "Invalid request body")
	}
	req.Normalize()

	user, ok := c.Locals(types.UserCtxName).(types.UserContext)
	if !ok || user.IsAnonymous() {
		return errors.HandleServiceError(c, errors.ErrUnauthorized)
	}

	if req.SubjectID == "" {
		return errors.HandleInvalidRequestError(c, "subjectId is required")
	}
	subjectID, err := uuid.FromString(req.SubjectID)
	if err != nil {
		return errors.HandleServiceError(c, fmt.Errorf("%w: subjectId must be a valid UUID", errors.ErrInvalidInput))
	}

	result, err := h.voteService.ApplyVote(c.UserContext(), user.UserID, subjectID, req.Direction)
	if err != nil {
		return errors.HandleServiceError(c, err)
	}

	return c.Status(http.StatusOK).JSON(result.ToResponse())
}
