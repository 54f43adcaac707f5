package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/suPer8Hu/swaif-depths/internal/chat"
	"github.com/suPer8Hu/swaif-depths/internal/common"
)

// LeadHistory returns the cached conversation snapshots of a lead. Unknown
// leads get an empty list, never a 404.
func (h *Handler) LeadHistory(c *gin.Context) {
	phone := chat.CleanPhone(c.Param("phone"))
	if phone == "" {
		common.Fail(c, http.StatusBadRequest, 10010, "phone required")
		return
	}
	common.OK(c, gin.H{
		"lead_phone":    phone,
		"conversations": h.History.GetHistory(c.Request.Context(), phone),
	})
}

func (h *Handler) LeadConversations(c *gin.Context) {
	phone := chat.CleanPhone(c.Param("phone"))
	if phone == "" {
		common.Fail(c, http.StatusBadRequest, 10010, "phone required")
		return
	}
	convs, err := h.Repo.ListConversationsByLead(c.Request.Context(), phone)
	if err != nil {
		internalError(c, 50020, "failed to list conversations", err)
		return
	}
	if convs == nil {
		convs = []chat.Conversation{}
	}
	common.OK(c, gin.H{"lead_phone": phone, "conversations": convs})
}

func (h *Handler) GetConversation(c *gin.Context) {
	conv, err := h.Repo.GetConversation(c.Request.Context(), c.Param("conversation_id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40402, "conversation not found")
			return
		}
		internalError(c, 50021, "failed to load conversation", err)
		return
	}
	common.OK(c, conv)
}

func (h *Handler) ConversationMessages(c *gin.Context) {
	id := c.Param("conversation_id")
	common.OK(c, gin.H{
		"conversation_id": id,
		"messages":        h.History.GetConversationMessages(c.Request.Context(), id),
	})
}

// ResetHistory drops every cached snapshot. Persisted conversations are kept.
func (h *Handler) ResetHistory(c *gin.Context) {
	if err := h.History.Reset(c.Request.Context()); err != nil {
		internalError(c, 50022, "failed to reset history cache", err)
		return
	}
	common.OK(c, gin.H{"reset": true})
}
