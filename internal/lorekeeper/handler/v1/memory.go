package v1

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/wyrdlab/reverie/internal/lorekeeper/handler/middleware"
	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/domain/service"
	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/pkg/errno"
	"github.com/wyrdlab/reverie/internal/pkg/core"
	"github.com/wyrdlab/reverie/pkg/errorx"
)

// MemoryHandler handles GET /memory.
type MemoryHandler struct {
	manager *service.Manager
}

// NewMemoryHandler creates a MemoryHandler.
func NewMemoryHandler(manager *service.Manager) *MemoryHandler {
	return &MemoryHandler{manager: manager}
}

// Get returns the user's remembered facts.
func (h *MemoryHandler) Get(c *gin.Context) {
	userID, _ := middleware.Identity(c)

	facts, err := h.manager.UserFacts(c.Request.Context(), userID)
	if err != nil {
		// A user who has never chatted has no row yet, which is just an
		// empty memory.
		if !errors.Is(err, errno.ErrUserNotFound) {
			core.WriteResponse(c, errorx.WrapC(err, ErrFactsLoad, "load facts"), nil)
			return
		}
		facts = nil
	}
	if facts == nil {
		facts = []string{}
	}
	core.WriteResponse(c, nil, MemoryResponse{UserProfileFacts: facts})
}
