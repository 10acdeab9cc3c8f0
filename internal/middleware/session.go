package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/edquest/proctor-backend/internal/config"
	"github.com/edquest/proctor-backend/internal/response"
)

// proctorStreamTTL bounds a lock left behind by a crashed process.
const proctorStreamTTL = 12 * time.Hour

// SingleProctorStream allows one open proctoring stream per user and test.
// The lock is taken before the handler runs and released when it returns,
// which for a WebSocket handler is when the connection closes.
func SingleProctorStream(rdb *redis.Client, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		key := config.CacheKey.UserActiveProctorKey(c.Param("test_id"), claims.UserID)
		ok, err := rdb.SetNX(c.Request.Context(), key, claims.ID, proctorStreamTTL).Result()
		if err != nil {
			log.Error().Err(err).Str("key", key).Msg("Failed to acquire proctor stream lock")
			response.AbortFail(c, http.StatusInternalServerError, response.ErrInternal)
			return
		}
		if !ok {
			response.AbortFail(c, http.StatusConflict, response.ErrStreamActive)
			return
		}

		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := rdb.Del(ctx, key).Err(); err != nil {
				log.Warn().Err(err).Str("key", key).Msg("Failed to release proctor stream lock")
			}
		}()
		c.Next()
	}
}
