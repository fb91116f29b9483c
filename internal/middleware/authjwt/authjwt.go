package authjwt

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
	"github.com/affan-mulla/nextup/internal/types"
)

// Config defines the config for the JWT middleware.
type Config struct {
	// The EC public key for validating ES256 tokens.
	PublicKey string
	// The claim key where the UserContext is stored.
	ClaimKey string
	// The context key to store the UserContext.
	UserCtxName string
	// Optional lets requests without a token through as anonymous viewers.
	// A token that is present but invalid is still rejected.
	Optional bool
}

func (cfg *Config) defaults() {
	if cfg.ClaimKey == "" {
		cfg.ClaimKey = types.ClaimKey
	}
	if cfg.UserCtxName == "" {
		cfg.UserCtxName = types.UserCtxName
	}
}

// New creates a new middleware handler.
func New(cfg Config) fiber.Handler {
	cfg.defaults()

	// Parse the key once on startup.
	ecPublicKey, err := jwt.ParseECPublicKeyFromPEM([]byte(cfg.PublicKey))
	if err != nil {
		panic(fmt.Sprintf("failed to parse EC public key: %v", err))
	}

	return func(c *fiber.Ctx) error {
		tokenString := extractToken(c)
		if tokenString == "" {
			if cfg.Optional {
				return c.Next()
			}
			return unauthorized(c, "Missing or invalid JWT", "")
		}

		userCtx, err := validate(tokenString, ecPublicKey, cfg.ClaimKey)
		if err != nil {
			return unauthorized(c, "Invalid token", err.Error())
		}

		c.Locals(cfg.UserCtxName, userCtx)
		return c.Next()
	}
}

// ValidateToken validates a JWT token and returns the UserContext if valid.
// It does not write to the response.
func ValidateToken(tokenString string, publicKey string, claimKey string) (types.UserContext, error) {
	ecPublicKey, err := jwt.ParseECPublicKeyFromPEM([]byte(publicKey))
	if err != nil {
		return types.UserContext{}, fmt.Errorf("failed to parse EC public key: %w", err)
	}
	return validate(tokenString, ecPublicKey, claimKey)
}

// extractToken reads the bearer header first (API clients) and falls back to the access_token cookie (browsers)
func extractToken(c *fiber.Ctx) string {
	authHeader := c.Get(types.HeaderAuthorization)
	if strings.HasPrefix(authHeader, types.BearerPrefix) {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 {
			return parts[1]
		}
	}
	return c.Cookies(types.AccessTokenName)
}

func validate(tokenString string, key *ecdsa.PublicKey, claimKey string) (types.UserContext, error) {
	var userCtx types.UserContext

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// CRITICAL: Enforce the expected signing algorithm.
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return key, nil
	})
	if err != nil {
		return userCtx, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return userCtx, errors.New("invalid token")
	}

	if exp, ok := claims["exp"].(float64); ok && int64(exp) < time.Now().Unix() {
		return userCtx, errors.New("token has expired")
	}

	claimData, ok := claims[claimKey].(map[string]interface{})
	if !ok {
		return userCtx, errors.New("invalid token claim format")
	}

	userCtx, err = mapToUserContext(claimData)
	if err != nil {
		return userCtx, fmt.Errorf("invalid user context in token: %w", err)
	}
	return userCtx, nil
}

// mapToUserContext converts claim data to UserContext
func mapToUserContext(claimData map[string]interface{}) (types.UserContext, error) {
	var userCtx types.UserContext

	userIDStr, ok := claimData[types.HeaderUID].(string)
	if !ok {
		return userCtx, errors.New("missing or invalid uid in claim")
	}
	userID, err := uuid.FromString(userIDStr)
	if err != nil {
		return userCtx, fmt.Errorf("invalid user ID: %v", err)
	}
	userCtx.UserID = userID

	if username, ok := claimData["username"].(string); ok {
		userCtx.Username = username
	}
	if displayName, ok := claimData["displayName"].(string); ok {
		userCtx.DisplayName = displayName
	}
	if avatar, ok := claimData["avatar"].(string); ok {
		userCtx.Avatar = avatar
	}
	if systemRole, ok := claimData["role"].(string); ok {
		userCtx.SystemRole = systemRole
	}

	return userCtx, nil
}

func unauthorized(c *fiber.Ctx, message, details string) error {
	body := fiber.Map{
		"code":    "UNAUTHORIZED",
		"message": message,
	}
	if details != "" {
		body["details"] = details
	}
	return c.Status(fiber.StatusUnauthorized).JSON(body)
}
