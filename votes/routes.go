// Copyright (c) 2024 Telar Social
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package votes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/affan-mulla/nextup/internal/middleware/authjwt"
	"github.com/affan-mulla/nextup/internal/middleware/ratelimit"
	platformconfig "github.com/affan-mulla/nextup/internal/platform/config"
	"github.com/affan-mulla/nextup/votes/handlers"
)

// VotesHandlers holds all the handlers this router needs
type VotesHandlers struct {
	VoteHandler *handlers.VoteHandler
}

// RegisterRoutes is the single entry point for setting up votes routes
func RegisterRoutes(app fiber.Router, handlers *VotesHandlers, cfg *platformconfig.Config) {
	chain := []fiber.Handler{authjwt.New(authjwt.Config{PublicKey: cfg.JWT.PublicKey})}

	// The limiter runs after auth so it can key on the user id
	if cfg.RateLimits.Vote.Enabled {
		chain = append(chain, ratelimit.NewVoteLimiter(ratelimit.LimitsFromConfig(cfg.RateLimits)))
	}
	chain = append(chain, handlers.VoteHandler.Vote)

	group := app.Group("/votes")
	group.Post("/", chain...)
}
