// Copyright (c) 2024 Telar Social
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package handlers

import (
	"net/http"
	"net/url"

	"github.com/gofiber/fiber/v2"
	uuid "github.com/gofrs/uuid"
	"github.com/gorilla/schema"

	"github.com/affan-mulla/nextup/ideas/errors"
	"github.com/affan-mulla/nextup/ideas/models"
	"github.com/affan-mulla/nextup/ideas/services"
	"github.com/affan-mulla/nextup/internal/types"
)

// IdeaHandler handles all idea-related HTTP requests
type IdeaHandler struct {
	ideaService services.IdeaService
	decoder     *schema.Decoder
}

// NewIdeaHandler creates a new IdeaHandler with injected dependencies
func NewIdeaHandler(ideaService services.IdeaService) *IdeaHandler {
	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)
	return &IdeaHandler{
		ideaService: ideaService,
		decoder:     decoder,
	}
}

// CreateIdea handles idea creation
func (h *IdeaHandler) CreateIdea(c *fiber.Ctx) error {
	var req models.CreateIdeaRequest
	if err := c.BodyParser(&req); err != nil {
		return errors.HandleInvalidRequestError(c, "Invalid request body")
	}

	user, ok := c.Locals(types.UserCtxName).(types.UserContext)
	if !ok {
		return errors.HandleServiceError(c, errors.ErrMissingUserContext)
	}

	idea, err := h.ideaService.CreateIdea(c.UserContext(), &req, &user)
	if err != nil {
		return errors.HandleServiceError(c, err)
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"objectId": idea.ID.String(),
	})
}

// GetIdea handles retrieving a single idea.
// UUID format is enforced by constraints.RequireUUID.
func (h *IdeaHandler) GetIdea(c *fiber.Ctx) error {
	ideaID, err := uuid.FromString(c.Params("ideaId"))
	if err != nil {
		return errors.HandleUUIDError(c, "ideaId")
	}

	detail, err := h.ideaService.GetIdea(c.UserContext(), ideaID, viewerID(c))
	if err != nil {
		return errors.HandleServiceError(c, err)
	}
	return c.JSON(detail)
}

// Feed handles GET /ideas
func (h *IdeaHandler) Feed(c *fiber.Ctx) error {
	query, err := h.pageQuery(c)
	if err != nil {
		return errors.HandleValidationError(c, "Invalid pagination parameters")
	}

	page, err := h.ideaService.Feed(c.UserContext(), query, viewerID(c))
	if err != nil {
		return errors.HandleServiceError(c, err)
	}
	return c.JSON(page)
}

// ProfileIdeas handles GET /profiles/:userId/ideas
func (h *IdeaHandler) ProfileIdeas(c *fiber.Ctx) error {
	ownerID, err := uuid.FromString(c.Params("userId"))
	if err != nil {
		return errors.HandleUUIDError(c, "userId")
	}

	query, err := h.pageQuery(c)
	if err != nil {
		return errors.HandleValidationError(c, "Invalid pagination parameters")
	}

	page, err := h.ideaService.ProfileIdeas(c.UserContext(), ownerID, query, viewerID(c))
	if err != nil {
		return errors.HandleServiceError(c, err)
	}
	return c.JSON(page)
}

func (h *IdeaHandler) pageQuery(c *fiber.Ctx) (models.PageQuery, error) {
	values := url.Values{}
	for k, v := range c.Queries() {
		values.Set(k, v)
	}

	var query models.PageQuery
	if err := h.decoder.Decode(&query, values); err != nil {
		return query, err
	}
	return query, nil
}

// viewerID returns the authenticated user, or uuid.Nil on anonymous reads
func viewerID(c *fiber.Ctx) uuid.UUID {
	if user, ok := c.Locals(types.UserCtxName).(types.UserContext); ok {
		return user.UserID
	}
	return uuid.Nil
}
