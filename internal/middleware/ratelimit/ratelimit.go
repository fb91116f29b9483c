// Package ratelimit provides per-caller rate limiting for write endpoints
package ratelimit

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/affan-mulla/nextup/internal/pkg/log"
	platformconfig "github.com/affan-mulla/nextup/internal/platform/config"
	"github.com/affan-mulla/nextup/internal/types"
)

// EndpointLimits defines rate limiting configuration for specific endpoints
type EndpointLimits struct {
	// Votes: 60 per minute per user
	VoteMaxRequests    int
	VoteWindowDuration time.Duration

	// Idea creation: 10 per hour per user
	IdeaCreateMaxRequests    int
	IdeaCreateWindowDuration time.Duration
}

// DefaultEndpointLimits returns the default limits
func DefaultEndpointLimits() EndpointLimits {
	return EndpointLimits{
		VoteMaxRequests:          60,
		VoteWindowDuration:       time.Minute,
		IdeaCreateMaxRequests:    10,
		IdeaCreateWindowDuration: time.Hour,
	}
}

// LimitsFromConfig overlays configured limits on the defaults.
// Zero values keep the default.
func LimitsFromConfig(cfg platformconfig.RateLimitsConfig) *EndpointLimits {
	limits := DefaultEndpointLimits()
	if cfg.Vote.Max > 0 {
		limits.VoteMaxRequests = cfg.Vote.Max
	}
	if cfg.Vote.Duration > 0 {
		limits.VoteWindowDuration = cfg.Vote.Duration
	}
	if cfg.IdeaCreate.Max > 0 {
		limits.IdeaCreateMaxRequests = cfg.IdeaCreate.Max
	}
	if cfg.IdeaCreate.Duration > 0 {
		limits.IdeaCreateWindowDuration = cfg.IdeaCreate.Duration
	}
	return &limits
}

// EndpointType represents the limited endpoints
type EndpointType int

const (
	EndpointVote EndpointType = iota
	EndpointIdeaCreate
)

// Config holds the configuration for rate limiting middleware
type Config struct {
	// Endpoint type to determine which limits to apply
	EndpointType EndpointType

	// Custom limits (optional - uses defaults if not provided)
	Limits *EndpointLimits

	// Next defines a function to skip this middleware when returned true
	Next func(c *fiber.Ctx) bool

	// Custom key generator (optional - uses UserKey if not provided)
	KeyGenerator func(c *fiber.Ctx) string

	// LimitReached defines the response when rate limit is exceeded
	LimitReached func(c *fiber.Ctx) error
}

// UserKey limits authenticated callers by user id and everyone else by IP.
// It must run after the auth middleware.
func UserKey(c *fiber.Ctx) string {
	if user, ok := c.Locals(types.UserCtxName).(types.UserContext); ok && !user.IsAnonymous() {
		return "uid:" + user.UserID.String() + ":" + c.Path()
	}
	return "ip:" + c.IP() + ":" + c.Path()
}

// configDefault sets default configuration values
func configDefault(config Config) Config {
	if config.Limits == nil {
		limits := DefaultEndpointLimits()
		config.Limits = &limits
	}

	if config.KeyGenerator == nil {
		config.KeyGenerator = UserKey
	}

	if config.LimitReached == nil {
		config.LimitReached = func(c *fiber.Ctx) error {
			endpointName := getEndpointName(config.EndpointType)
			_, windowDuration := getLimits(config.EndpointType, config.Limits)

			log.Warn("[RateLimit] Rate limit exceeded for %s key=%s", endpointName, config.KeyGenerator(c))

			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"code":       "RATE_LIMITED",
				"message":    fmt.Sprintf("Too many %s requests. Please try again later.", endpointName),
				"retryAfter": int(windowDuration.Seconds()),
			})
		}
	}

	return config
}

// getEndpointName returns human-readable endpoint name for logging
func getEndpointName(endpointType EndpointType) string {
	switch endpointType {
	case EndpointVote:
		return "vote"
	case EndpointIdeaCreate:
		return "idea"
	default:
		return "unknown"
	}
}

func getLimits(endpointType EndpointType, limits *EndpointLimits) (int, time.Duration) {
	switch endpointType {
	case EndpointVote:
		return limits.VoteMaxRequests, limits.VoteWindowDuration
	case EndpointIdeaCreate:
		return limits.IdeaCreateMaxRequests, limits.IdeaCreateWindowDuration
	default:
		return 5, 15 * time.Minute
	}
}

// New creates a new rate limiting middleware handler
func New(config Config) fiber.Handler {
	cfg := configDefault(config)
	maxRequests, windowDuration := getLimits(cfg.EndpointType, cfg.Limits)

	return limiter.New(limiter.Config{
		Max:          maxRequests,
		Expiration:   windowDuration,
		KeyGenerator: cfg.KeyGenerator,
		LimitReached: cfg.LimitReached,
		Next:         cfg.Next,
	})
}

// NewVoteLimiter creates a rate limiter for POST /votes
func NewVoteLimiter(customLimits *EndpointLimits) fiber.Handler {
	return New(Config{
		EndpointType: EndpointVote,
		Limits:       customLimits,
	})
}

// NewIdeaCreateLimiter creates a rate limiter for POST /ideas
func NewIdeaCreateLimiter(customLimits *EndpointLimits) fiber.Handler {
	return New(Config{
		EndpointType: EndpointIdeaCreate,
		Limits:       customLimits,
	})
}
