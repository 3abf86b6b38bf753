package middleware

import (
	"Fasting-Tracker/domain"
	"Fasting-Tracker/internal/api/presenters"
	"Fasting-Tracker/pkg/jwt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

const (
	ClientIDHeader = "X-Client-ID"

	localsIdentity = "identity"
	localsUserID   = "user_id"
	localsOwner    = "owner"
)

type (
	Middleware interface {
		CORSMiddleware() fiber.Handler
		// AuthMiddleware rejects requests without a valid bearer token.
		AuthMiddleware(jwtService jwt.JWTService) fiber.Handler
		// OptionalAuthMiddleware resolves a bearer token when present; an
		// invalid token is still rejected.
		OptionalAuthMiddleware(jwtService jwt.JWTService) fiber.Handler
		// OwnerMiddleware keys the request by user id or X-Client-ID.
		OwnerMiddleware() fiber.Handler
	}

	middleware struct{}
)

func NewMiddleware() Middleware {
	return &middleware{}
}

func (m *middleware) CORSMiddleware() fiber.Handler {
	return cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, " + ClientIDHeader,
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
	})
}

func (m *middleware) AuthMiddleware(jwtService jwt.JWTService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c)
		if token == "" {
			return presenters.ErrorResponse(c, fiber.StatusUnauthorized, domain.MessageFailedGetToken, domain.ErrUnauthenticated)
		}
		return m.resolve(c, jwtService, token)
	}
}

func (m *middleware) OptionalAuthMiddleware(jwtService jwt.JWTService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c)
		if token == "" {
			return c.Next()
		}
		return m.resolve(c, jwtService, token)
	}
}

func (m *middleware) resolve(c *fiber.Ctx, jwtService jwt.JWTService, token string) error {
	identity, err := jwtService.ResolveIdentity(token)
	if err != nil {
		return presenters.ErrorResponse(c, fiber.StatusUnauthorized, domain.MessageFailedTokenInvalid, err)
	}
	c.Locals(localsIdentity, &identity)
	c.Locals(localsUserID, identity.ID)
	return c.Next()
}

func (m *middleware) OwnerMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		owner, err := domain.NewOwner(GetIdentity(c), strings.TrimSpace(c.Get(ClientIDHeader)))
		if err != nil {
			return presenters.ErrorResponse(c, fiber.StatusBadRequest, domain.MessageFailedOwnerMissing, err)
		}
		c.Locals(localsOwner, owner)
		return c.Next()
	}
}

// GetIdentity returns the authenticated caller, or nil.
func GetIdentity(c *fiber.Ctx) *domain.Identity {
	identity, _ := c.Locals(localsIdentity).(*domain.Identity)
	return identity
}

// GetOwner returns the owner resolved by OwnerMiddleware.
func GetOwner(c *fiber.Ctx) (domain.Owner, error) {
	owner, ok := c.Locals(localsOwner).(domain.Owner)
	if !ok || owner.Key == "" {
		return domain.Owner{}, domain.ErrOwnerMissing
	}
	return owner, nil
}

func bearerToken(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	if len(header) < 7 || !strings.EqualFold(header[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
