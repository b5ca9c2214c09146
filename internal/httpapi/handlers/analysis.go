package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/airu-app/supportchat/internal/common"
)

type triggerAnalysisReq struct {
	SessionID string `json:"session_id" binding:"required"`
}

// TriggerAnalysis is the fire-and-forget analysis boundary: enqueue failures
// are logged, never surfaced, so the caller's completion flow is not blocked.
func (h *Handler) TriggerAnalysis(c *gin.Context) {
	var req triggerAnalysisReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	if err := h.Trigger.Trigger(c.Request.Context(), req.SessionID); err != nil {
		log.Printf("[TriggerAnalysis] enqueue failed session=%s err=%v", req.SessionID, err)
	}

	common.OK(c, gin.H{"session_id": req.SessionID, "queued": true})
}
