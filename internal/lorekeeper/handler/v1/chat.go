package v1

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/wyrdlab/reverie/internal/lorekeeper/handler/middleware"
	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/domain/entity"
	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/domain/service"
	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/pkg/errno"
	"github.com/wyrdlab/reverie/internal/pkg/core"
	"github.com/wyrdlab/reverie/pkg/errorx"
	"github.com/wyrdlab/reverie/pkg/logger"
	"github.com/wyrdlab/reverie/pkg/utils/json"
)

// ChatHandler handles POST /chat.
//
// Non-streaming requests collect the turn's terminal event into one JSON
// body. Streaming requests get application/x-ndjson with one event per
// line, flushed as the orchestrator produces them.
type ChatHandler struct {
	manager *service.Manager
}

// NewChatHandler creates a ChatHandler.
func NewChatHandler(manager *service.Manager) *ChatHandler {
	return &ChatHandler{manager: manager}
}

// Handle is the entry point for POST /chat.
func (h *ChatHandler) Handle(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		core.WriteResponse(c, errorx.WrapC(err, ErrBind, "bind chat request"), nil)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		core.WriteResponse(c, errorx.WithCode(ErrEmptyMessage, "message is empty"), nil)
		return
	}

	userID, username := middleware.Identity(c)

	sessionID, orch, err := h.manager.Acquire(c.Request.Context(), userID, username, req.SessionID)
	if err != nil {
		if errors.Is(err, errno.ErrSessionNotFound) {
			core.WriteResponse(c, errorx.WrapC(err, ErrSessionNotFound, "session %q", req.SessionID), nil)
			return
		}
		core.WriteResponse(c, errorx.WrapC(err, ErrTurnFailed, "acquire session"), nil)
		return
	}

	events := orch.ProcessTurn(c.Request.Context(), req.Message)

	if req.Streaming {
		h.handleStream(c, events)
		return
	}
	h.handleNonStream(c, sessionID, events)
}

// handleStream writes one JSON event per line in arrival order.
func (h *ChatHandler) handleStream(c *gin.Context, events <-chan *entity.Event) {
	c.Header("Content-Type", "application/x-ndjson")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	w := c.Writer
	for event := range events {
		data, err := json.Marshal(event)
		if err != nil {
			logger.Warn("[Chat] marshal event: %v", err)
			continue
		}
		fmt.Fprintf(w, "%s\n", data)
		w.Flush()
	}
}

// handleNonStream drains the stream and returns the terminal event.
func (h *ChatHandler) handleNonStream(c *gin.Context, sessionID string, events <-chan *entity.Event) {
	var terminal *entity.Event
	for event := range events {
		if event.Kind == entity.EventFinal || event.Kind == entity.EventError {
			terminal = event
		}
	}

	if terminal == nil {
		// The consumer's context ended the turn before a terminal event.
		core.WriteResponse(c, errorx.WithCode(ErrTurnFailed, "turn produced no result for session %q", sessionID), nil)
		return
	}
	c.JSON(http.StatusOK, terminal)
}
