package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/conveyance-bills/internal/application/service"
	"github.com/garyjia/conveyance-bills/internal/domain/entity"
)

// HeaderUserID carries the id of the calling user
const HeaderUserID = "X-User-ID"

const actorKey = "actor"

// RequireActor resolves the caller from HeaderUserID and stores it on the context
func (h *Handlers) RequireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if userID == "" {
			abort(c, http.StatusUnauthorized, "missing "+HeaderUserID+" header")
			return
		}

		user, err := h.users.Get(c.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, service.ErrNotFound) {
				abort(c, http.StatusUnauthorized, "unknown user")
				return
			}
			h.logger.Error("Failed to resolve actor", "error", err, "user_id", userID)
			abort(c, http.StatusInternalServerError, "internal server error")
			return
		}

		c.Set(actorKey, user.Actor())
		c.Next()
	}
}

func actorFrom(c *gin.Context) (entity.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return entity.Actor{}, false
	}
	actor, ok := v.(entity.Actor)
	return actor, ok
}

// mustActor returns the actor set by RequireActor
func mustActor(c *gin.Context) entity.Actor {
	actor, _ := actorFrom(c)
	return actor
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, Response{Success: false, Error: message})
}
