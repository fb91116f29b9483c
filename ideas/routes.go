// Copyright (c) 2024 Telar Social
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package ideas

import (
	"github.com/gofiber/fiber/v2"

	"github.com/affan-mulla/nextup/ideas/handlers"
	"github.com/affan-mulla/nextup/internal/middleware/authjwt"
	"github.com/affan-mulla/nextup/internal/middleware/constraints"
	"github.com/affan-mulla/nextup/internal/middleware/ratelimit"
	platformconfig "github.com/affan-mulla/nextup/internal/platform/config"
)

// IdeasHandlers holds all the handlers this router needs
type IdeasHandlers struct {
	IdeaHandler *handlers.IdeaHandler
}

// RegisterRoutes is the single entry point for setting up ideas routes.
// Reads accept anonymous viewers; writes require a valid token.
func RegisterRoutes(app fiber.Router, handlers *IdeasHandlers, cfg *platformconfig.Config) {
	requireAuth := authjwt.New(authjwt.Config{PublicKey: cfg.JWT.PublicKey})
	optionalAuth := authjwt.New(authjwt.Config{PublicKey: cfg.JWT.PublicKey, Optional: true})

	createHandlers := []fiber.Handler{requireAuth}
	if cfg.RateLimits.IdeaCreate.Enabled {
		createHandlers = append(createHandlers, ratelimit.NewIdeaCreateLimiter(ratelimit.LimitsFromConfig(cfg.RateLimits)))
	}
	createHandlers = append(createHandlers, handlers.IdeaHandler.CreateIdea)

	group := app.Group("/ideas")
	group.Post("/", createHandlers...)
	group.Get("/", optionalAuth, handlers.IdeaHandler.Feed)
	group.Get("/:ideaId", constraints.RequireUUID("ideaId"), optionalAuth, handlers.IdeaHandler.GetIdea)

	app.Get("/profiles/:userId/ideas", constraints.RequireUUID("userId"), optionalAuth, handlers.IdeaHandler.ProfileIdeas)
}
