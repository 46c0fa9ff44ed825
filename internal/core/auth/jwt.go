package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"storefront/internal/core/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// LocalsKey is the fiber locals key holding the authenticated Identity.
const LocalsKey = "identity"

const (
	// RoleUser is assigned when a token carries no role claim.
	RoleUser = "user"
	// RoleAdmin grants access to the administrative order operations.
	RoleAdmin = "admin"
)

var (
	ErrMissingToken = errors.New("auth: missing bearer token")
	ErrInvalidToken = errors.New("auth: invalid token")
)

// Identity is the caller extracted from a verified token.
type Identity struct {
	UserID string
	Role   string
}

// ErrorResponse mirrors the API error envelope.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	RayID   string `json:"ray_id"`
}

// New returns a middleware that verifies HS256 bearer tokens signed with
// secret and stores the caller's Identity in the request locals.
func New(secret string) fiber.Handler {
	key := []byte(secret)

	return func(c *fiber.Ctx) error {
		rayID, ok := c.Locals("requestid").(string)
		if !ok {
			rayID = "unknown"
		}

		identity, err := Parse(c.Get(fiber.HeaderAuthorization), key)
		if err != nil {
			logger.Get().Debug("Rejected request credentials",
				zap.String("ray_id", rayID),
				zap.String("path", c.Path()),
				zap.Error(err),
			)
			msg := "Not authorized, token failed"
			if errors.Is(err, ErrMissingToken) {
				msg = "Not authorized, no token"
			}
			return c.Status(http.StatusUnauthorized).JSON(ErrorResponse{
				Message: msg,
				RayID:   rayID,
			})
		}

		c.Locals(LocalsKey, identity)
		return c.Next()
	}
}

// Parse validates an Authorization header value and returns the identity it carries.
func Parse(header string, key []byte) (Identity, error) {
	raw, found := strings.CutPrefix(header, "Bearer ")
	raw = strings.TrimSpace(raw)
	if !found || raw == "" {
		return Identity{}, ErrMissingToken
	}

	token, err := jwt.Parse(raw, func(*jwt.Token) (interface{}, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, ErrInvalidToken
	}

	userID := stringClaim(claims, "userId")
	if userID == "" {
		userID = stringClaim(claims, "sub")
	}
	if userID == "" {
		return Identity{}, fmt.Errorf("%w: token has no subject", ErrInvalidToken)
	}

	role := stringClaim(claims, "role")
	if role == "" {
		role = RoleUser
	}
	return Identity{UserID: userID, Role: role}, nil
}

// IdentityFrom returns the identity stored by the middleware.
func IdentityFrom(c *fiber.Ctx) (Identity, bool) {
	identity, ok := c.Locals(LocalsKey).(Identity)
	return identity, ok && identity.UserID != ""
}

func stringClaim(claims jwt.MapClaims, name string) string {
	v, _ := claims[name].(string)
	return v
}
