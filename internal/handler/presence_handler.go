package handler

import (
	"context"
	"net/http"
	"strings"

	"benome-realtime/internal/services"
	"benome-realtime/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const maxPresenceLookup = 100

type PresenceReader interface {
	Snapshot(ctx context.Context, userIDs []uuid.UUID) ([]services.PresenceSnapshot, error)
}

type PresenceHandler struct {
	service PresenceReader
}

func NewPresenceHandler(service PresenceReader) *PresenceHandler {
	return &PresenceHandler{service: service}
}

// Get handles GET /v1/presence?user_ids=a,b
func (h *PresenceHandler) Get(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}

	raw := strings.Split(c.Query("user_ids"), ",")
	ids := make([]uuid.UUID, 0, len(raw))
	seen := make(map[uuid.UUID]struct{}, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		id, err := uuid.Parse(s)
		if err != nil {
			badRequest(c, "invalid user id "+s)
			return
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) > maxPresenceLookup {
		badRequest(c, "too many user ids")
		return
	}

	snapshots, err := h.service.Snapshot(c.Request.Context(), ids)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromPresence(snapshots)))
}
