package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"campaign-payments/internal/response"
	"campaign-payments/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// OperatorContextKey is where OperatorAuthMiddleware stores the operator
const OperatorContextKey = "operator"

// OperatorClaims are the claims carried by an operator token
type OperatorClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// IssueOperatorToken signs an HS256 operator token
func IssueOperatorToken(secret, operatorID, role string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("operator token secret is empty")
	}
	now := time.Now()
	claims := OperatorClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   operatorID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseOperatorToken validates a token and returns the operator it names
func ParseOperatorToken(secret, tokenString string) (services.Operator, error) {
	if secret == "" {
		return services.Operator{}, errors.New("operator authentication is not configured")
	}

	claims := &OperatorClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return services.Operator{}, fmt.Errorf("invalid operator token: %w", err)
	}
	if claims.Subject == "" {
		return services.Operator{}, errors.New("operator token has no subject")
	}

	return services.Operator{ID: claims.Subject, Role: claims.Role}, nil
}

// OperatorAuthMiddleware requires a valid operator bearer token
func OperatorAuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tokenString, found := strings.CutPrefix(header, "Bearer ")
		if !found || tokenString == "" {
			response.ErrorJSON(c, http.StatusUnauthorized, "Missing operator token")
			c.Abort()
			return
		}

		operator, err := ParseOperatorToken(secret, strings.TrimSpace(tokenString))
		if err != nil {
			response.ErrorJSON(c, http.StatusUnauthorized, "Invalid operator token")
			c.Abort()
			return
		}

		c.Set(OperatorContextKey, operator)
		c.Next()
	}
}

// OperatorFromContext returns the operator set by OperatorAuthMiddleware
func OperatorFromContext(c *gin.Context) (services.Operator, bool) {
	value, exists := c.Get(OperatorContextKey)
	if !exists {
		return services.Operator{}, false
	}
	operator, ok := value.(services.Operator)
	return operator, ok
}
