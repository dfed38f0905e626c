package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

// Authenticator enforces bearer-token auth on the API surface when enabled.
type Authenticator struct {
	enabled bool
	secret  []byte
	logger  *logrus.Logger
}

// RouterClaims are the JWT claims accepted by the router API.
type RouterClaims struct {
	TenantID string `json:"tenant_id,omitempty"`
	jwt.RegisteredClaims
}

func NewAuthenticator(enabled bool, secret string, logger *logrus.Logger) *Authenticator {
	return &Authenticator{
		enabled: enabled,
		secret:  []byte(secret),
		logger:  logger,
	}
}

// Middleware validates the Authorization header. Health and spec endpoints
// stay open so probes and tooling work unauthenticated.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.enabled || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r)
		if err != nil {
			a.unauthorized(w, r, err)
			return
		}

		claims, err := a.validateToken(token)
		if err != nil {
			a.unauthorized(w, r, err)
			return
		}

		a.logger.WithFields(logrus.Fields{
			"tenant_id": claims.TenantID,
			"subject":   claims.Subject,
			"path":      r.URL.Path,
		}).Debug("Authenticated request")

		next.ServeHTTP(w, r)
	})
}

func (a *Authenticator) validateToken(tokenString string) (*RouterClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &RouterClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}

	claims, ok := token.Claims.(*RouterClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	return claims, nil
}

func (a *Authenticator) unauthorized(w http.ResponseWriter, r *http.Request, err error) {
	a.logger.WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
		"error":  err.Error(),
	}).Warn("Unauthorized request")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   "unauthorized",
		"message": "valid bearer token required",
	})
}

func extractBearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", fmt.Errorf("missing Authorization header")
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", fmt.Errorf("Authorization header must be a bearer token")
	}

	return strings.TrimSpace(parts[1]), nil
}

func isPublicPath(path string) bool {
	if path == "/health" || path == "/openapi.yaml" || path == "/openapi.json" {
		return true
	}
	return false
}
