// Package middleware holds the fiber middleware of the ops API.
package middleware

import (
	"errors"
	"log"
	"strings"
	"time"

	"chatstore/internal/utils/response"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const (
	OpsScope  = "ops"
	opsIssuer = "chatstore"
)

// OpsClaims identify an operator token.
type OpsClaims struct {
	jwt.RegisteredClaims
	Scope string `json:"scope"`
}

// MintOpsToken signs an HS256 token for subject valid for ttl.
func MintOpsToken(secret, subject string, ttl time.Duration, now time.Time) (string, error) {
	if secret == "" {
		return "", errors.New("ops secret not configured")
	}
	claims := OpsClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    opsIssuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Scope: OpsScope,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseOpsToken validates signature, expiry and scope.
func ParseOpsToken(secret, tokenString string) (*OpsClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &OpsClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(opsIssuer))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*OpsClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.Scope != OpsScope {
		return nil, errors.New("token lacks ops scope")
	}
	return claims, nil
}

// OpsAuth rejects requests without a valid Bearer ops token. With no
// secret configured every request is rejected.
func OpsAuth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if secret == "" {
			return response.Error(c, fiber.StatusServiceUnavailable, "ops api disabled")
		}
		authHeader := c.Get("Authorization")
		tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || tokenString == "" {
			return response.Unauthorized(c)
		}
		claims, err := ParseOpsToken(secret, tokenString)
		if err != nil {
			log.Printf("ops auth: %v", err)
			return response.Unauthorized(c)
		}
		c.Locals("operator", claims.Subject)
		return c.Next()
	}
}

// Operator returns the authenticated operator subject.
func Operator(c *fiber.Ctx) string {
	s, _ := c.Locals("operator").(string)
	return s
}
