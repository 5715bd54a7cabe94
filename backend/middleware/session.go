package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/shhady/leadform/backend/pkg/logger"
)

// SessionClaims binds a token to one form session. It identifies the
// session, it does not authenticate a user.
type SessionClaims struct {
	SessionID string `json:"sid"`
	Agent     string `json:"agent,omitempty"`
	jwt.RegisteredClaims
}

// GenerateSessionToken signs a token for sessionID valid for ttl.
func GenerateSessionToken(sessionID, agent, secret string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(ttl)

	claims := SessionClaims{
		SessionID: sessionID,
		Agent:     agent,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// ParseSessionToken validates tokenString and returns its claims.
func ParseSessionToken(tokenString, secret string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.SessionID == "" {
		return nil, errors.New("invalid session token")
	}
	return claims, nil
}

// SessionAuth requires a bearer token whose session matches the :id route
// parameter.
func SessionAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			return
		}

		claims, err := ParseSessionToken(parts[1], secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired session token"})
			return
		}
		if id := c.Param("id"); id != "" && id != claims.SessionID {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Token does not match session"})
			return
		}

		c.Set("session_id", claims.SessionID)
		ctx := logger.WithValue(c.Request.Context(), logger.SessionIDKey, claims.SessionID)
		if claims.Agent != "" {
			c.Set("agent", claims.Agent)
			ctx = logger.WithValue(ctx, logger.AgentKey, claims.Agent)
		}
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// GetSessionID gets the session id from context
func GetSessionID(c *gin.Context) string {
	if id, exists := c.Get("session_id"); exists {
		return id.(string)
	}
	return ""
}
