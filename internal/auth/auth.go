package auth

import (
	"fmt"
	"net/http"
	"strings"

	"partner-server/internal/observability"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AgentIDKey is the gin context key carrying the authenticated agent id.
const AgentIDKey = "Agent-ID"

// Middleware validates bearer tokens issued by the main application. The
// token subject is the agent id every downstream handler scopes its work to.
type Middleware struct {
	secret []byte
	logger *observability.Logger
}

func NewMiddleware(secret string, logger *observability.Logger) *Middleware {
	return &Middleware{secret: []byte(secret), logger: logger}
}

// Handle is the gin middleware entrypoint.
func (m *Middleware) Handle(c *gin.Context) {
	tokenHeader := c.GetHeader("Authorization")
	if tokenHeader == "" || !strings.HasPrefix(tokenHeader, "Bearer ") {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization token is missing or invalid"})
		c.Abort()
		return
	}

	tokenString := strings.TrimPrefix(tokenHeader, "Bearer ")

	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		m.logger.InfoWithError(c.Request.Context(), "rejected bearer token", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization token is missing or invalid"})
		c.Abort()
		return
	}

	if _, err := uuid.Parse(claims.Subject); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization token is missing or invalid"})
		c.Abort()
		return
	}

	c.Set(AgentIDKey, claims.Subject)
	c.Next()
}

// AgentID extracts the authenticated agent id from the gin context.
func AgentID(c *gin.Context) (uuid.UUID, bool) {
	value, exists := c.Get(AgentIDKey)
	if !exists {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(value.(string))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
