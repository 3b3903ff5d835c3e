package middleware

import (
	"errors"
	"reasondesk/internal/errs"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const (
	LocalsUserID = "userID"
	LocalsUser   = "user"
)

// AuthRequired verifies the bearer token and stores its subject under
// LocalsUserID. Without a configured secret every request passes through
// anonymously.
func (m Middleware) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		log := m.log.File("auth").Function("AuthRequired")

		if m.Config.AuthJWTSecret == "" {
			return c.Next()
		}

		raw := bearerToken(c.Get(fiber.HeaderAuthorization))
		if raw == "" {
			raw = c.Query("token")
		}
		if raw == "" {
			return unauthorized(c, "missing bearer token")
		}

		subject, err := m.verify(raw)
		if err != nil {
			log.Debug("rejected token", "error", err)
			return unauthorized(c, "invalid token")
		}

		if m.userRepo != nil {
			user, err := m.userRepo.GetByID(c.Context(), subject)
			switch {
			case err == nil && !user.IsActive:
				return unauthorized(c, "user is inactive")
			case err == nil:
				c.Locals(LocalsUser, *user)
			case !errors.Is(err, errs.ErrNotFound):
				log.Er("failed to load user", err, "userID", subject)
				return c.Status(fiber.StatusInternalServerError).
					JSON(fiber.Map{"message": "error", "error": "failed to load user"})
			}
		}

		c.Locals(LocalsUserID, subject)
		return c.Next()
	}
}

func (m Middleware) verify(raw string) (string, error) {
	token, err := jwt.Parse(raw, func(*jwt.Token) (any, error) {
		return []byte(m.Config.AuthJWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}

	subject, err := token.Claims.GetSubject()
	if err != nil {
		return "", err
	}
	if subject == "" {
		return "", errors.New("token has no subject")
	}

	return subject, nil
}

// IssueToken signs an HS256 token for userID valid for ttl.
func (m Middleware) IssueToken(userID string, ttl time.Duration) (string, error) {
	if m.Config.AuthJWTSecret == "" {
		return "", errors.New("auth secret is not configured")
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(m.Config.AuthJWTSecret))
}

// UserID returns the authenticated user id, or "" for anonymous requests.
func UserID(c *fiber.Ctx) string {
	userID, _ := c.Locals(LocalsUserID).(string)
	return userID
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func unauthorized(c *fiber.Ctx, reason string) error {
	return c.Status(fiber.StatusUnauthorized).
		JSON(fiber.Map{"message": "unauthorized", "error": reason})
}
