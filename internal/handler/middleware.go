package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"user_service/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	ClaimsKey       = "claims"
	requestIDHeader = "X-Request-ID"
	uuidLength      = 36
)

type TokenVerifier interface {
	Verify(token string) (jwt.MapClaims, error)
}

// AuthMiddleware rejects requests without a valid bearer token. Missing and
// invalid tokens get the same 401 response.
func AuthMiddleware(tokens TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			newErrorResponse(c, http.StatusUnauthorized, forbiddenAccess)

			return
		}

		var tokenStr string
		if parts := strings.Fields(authHeader); len(parts) > 1 {
			tokenStr = parts[1]
		}

		claims, err := tokens.Verify(tokenStr)
		if err != nil {
			newErrorResponse(c, http.StatusUnauthorized, forbiddenAccess)

			return
		}

		c.Set(ClaimsKey, claims)
		c.Request = c.Request.WithContext(auth.ContextWithClaims(c.Request.Context(), claims))

		c.Next()
	}
}

func requestLogger(lgr *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// only well-formed UUIDs are taken from the client
		requestID := c.GetHeader(requestIDHeader)
		if _, err := uuid.Parse(requestID); err != nil || len(requestID) != uuidLength {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)

		c.Next()

		lgr.Info("request completed",
			slog.String("request_id", requestID),
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
		)
	}
}
