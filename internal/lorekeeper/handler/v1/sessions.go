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

// SessionHandler handles the session management endpoints.
type SessionHandler struct {
	manager *service.Manager
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(manager *service.Manager) *SessionHandler {
	return &SessionHandler{manager: manager}
}

// List handles GET /sessions.
func (h *SessionHandler) List(c *gin.Context) {
	userID, _ := middleware.Identity(c)

	sessions, err := h.manager.ListSessions(c.Request.Context(), userID)
	if err != nil {
		core.WriteResponse(c, errorx.WrapC(err, ErrSessionList, "list sessions"), nil)
		return
	}

	resp := SessionListResponse{Sessions: make([]SessionSummary, 0, len(sessions))}
	for _, s := range sessions {
		resp.Sessions = append(resp.Sessions, SessionSummary{
			ID:           s.ID,
			Title:        s.Title,
			CreatedAt:    FormatTime(s.CreatedAt),
			LastModified: FormatTime(s.LastActivityAt),
		})
	}
	core.WriteResponse(c, nil, resp)
}

// History handles GET /sessions/:id/history.
func (h *SessionHandler) History(c *gin.Context) {
	userID, _ := middleware.Identity(c)
	sessionID := c.Param("id")

	messages, err := h.manager.History(c.Request.Context(), userID, sessionID)
	if err != nil {
		if errors.Is(err, errno.ErrSessionNotFound) {
			core.WriteResponse(c, errorx.WrapC(err, ErrSessionNotFound, "session %q", sessionID), nil)
			return
		}
		core.WriteResponse(c, errorx.WrapC(err, ErrHistory, "history of %q", sessionID), nil)
		return
	}

	resp := HistoryResponse{Messages: make([]HistoryMessage, 0, len(messages))}
	for _, m := range messages {
		resp.Messages = append(resp.Messages, HistoryMessage{
			ID:        m.ID,
			Role:      string(m.Role),
			Content:   m.ContentFull,
			Timestamp: FormatTime(m.Timestamp),
		})
	}
	core.WriteResponse(c, nil, resp)
}

// Delete handles DELETE /sessions/:id.
func (h *SessionHandler) Delete(c *gin.Context) {
	userID, _ := middleware.Identity(c)
	sessionID := c.Param("id")

	if err := h.manager.Delete(c.Request.Context(), userID, sessionID); err != nil {
		if errors.Is(err, errno.ErrSessionNotFound) {
			core.WriteResponse(c, errorx.WrapC(err, ErrSessionNotFound, "session %q", sessionID), nil)
			return
		}
		core.WriteResponse(c, errorx.WrapC(err, ErrSessionDelete, "delete session %q", sessionID), nil)
		return
	}
	core.WriteResponse(c, nil, gin.H{"status": "ok"})
}
