package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/airu-app/supportchat/internal/ai"
	"github.com/airu-app/supportchat/internal/chat"
	"github.com/airu-app/supportchat/internal/common"
	"github.com/airu-app/supportchat/internal/httpapi/middleware"
)

func sessionIDFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(middleware.SessionIDKey)
	if !ok {
		return "", false
	}
	sid, ok := v.(string)
	return sid, ok && sid != ""
}

func (h *Handler) ListDepartments(c *gin.Context) {
	common.OK(c, gin.H{"departments": chat.Departments()})
}

type surveyContextReq struct {
	SurveyID    string `json:"survey_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type createSessionReq struct {
	Department    string            `json:"department" binding:"required"`
	PageURL       string            `json:"page_url"`
	SurveyContext *surveyContextReq `json:"survey_context"`
}

// CreateChatSession runs the pre-chat part of the flow in one call: the
// widget has already walked the visitor through survey confirmation or
// department selection, so the chosen department arrives here and the
// controller is driven straight into active chat.
func (h *Handler) CreateChatSession(c *gin.Context) {
	var req createSessionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	page := chat.PageContext{PageURL: req.PageURL}
	if sc := req.SurveyContext; sc != nil {
		page.Survey = &ai.SurveyContext{
			SurveyID:    sc.SurveyID,
			Title:       sc.Title,
			Description: sc.Description,
		}
	}

	ctrl := chat.NewController(h.Repo, h.Gen, h.Trigger)
	ctrl.Start(page)

	var (
		sess    *chat.Session
		welcome string
		err     error
	)
	if ctrl.State() == chat.StateSurveyConfirm {
		if req.Department == string(chat.DepartmentSurvey) {
			sess, welcome, err = ctrl.ConfirmSurvey(c.Request.Context())
		} else {
			// the visitor declined the survey offer and picked a department
			if derr := ctrl.DeclineSurvey(); derr != nil {
				common.Fail(c, http.StatusInternalServerError, 50001, "failed to create session")
				return
			}
			sess, welcome, err = ctrl.SelectDepartment(c.Request.Context(), req.Department)
		}
	} else {
		sess, welcome, err = ctrl.SelectDepartment(c.Request.Context(), req.Department)
	}
	if err != nil {
		if errors.Is(err, chat.ErrUnknownDepartment) {
			common.Fail(c, http.StatusBadRequest, 10002, "unknown department")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to create session")
		return
	}

	token, err := middleware.NewSessionToken(h.Cfg.SessionSecret, sess.SessionID)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to create session")
		return
	}

	h.Registry.Put(sess.SessionID, ctrl)

	common.OK(c, gin.H{
		"session_id": sess.SessionID,
		"token":      token,
		"department": sess.Department,
		"welcome":    welcome,
	})
}

type sendMessageReq struct {
	Message string `json:"message" binding:"required"`
}

// SendChatMessageStream drives one conversation turn and bridges the
// controller's cumulative updates onto an outbound SSE response.
func (h *Handler) SendChatMessageStream(c *gin.Context) {
	sid, okk := sessionIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "session token required")
		return
	}

	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	ctrl, okk := h.Registry.Get(sid)
	if !okk {
		common.Fail(c, http.StatusNotFound, 40004, "session not found")
		return
	}

	// SSE headers
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // helpful if behind nginx
	c.Status(http.StatusOK)

	flusher, okk := c.Writer.(http.Flusher)
	if !okk {
		fmt.Fprintf(c.Writer, "event: error\ndata: flusher not supported\n\n")
		return
	}

	writeJSON := func(event string, payload any) {
		b, err := json.Marshal(payload)
		if err != nil {
			fmt.Fprintf(c.Writer, "event: error\ndata: {\"message\":\"json marshal failed\"}\n\n")
			flusher.Flush()
			return
		}
		fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, string(b))
		flusher.Flush()
	}

	// Updates are cumulative full text, so dropping one under backpressure
	// loses nothing: the next update supersedes it.
	updates := make(chan string, 64)
	done := make(chan struct{})
	var final string
	var sendErr error

	go func() {
		defer close(done)
		final, sendErr = ctrl.Send(c.Request.Context(), req.Message, func(content string) {
			select {
			case updates <- content:
			default:
			}
		})
	}()

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case content := <-updates:
			writeJSON("chunk", gin.H{"type": "chunk", "content": content})

		case <-ticker.C:
			writeJSON("ping", gin.H{"type": "ping", "ts": time.Now().Unix()})

		case <-done:
			for {
				select {
				case content := <-updates:
					writeJSON("chunk", gin.H{"type": "chunk", "content": content})
					continue
				default:
				}
				break
			}
			if sendErr != nil {
				writeJSON("error", gin.H{"type": "error", "message": sendErr.Error()})
				return
			}
			writeJSON("done", gin.H{"type": "done", "content": final})
			return

		case <-ctx.Done():
			return
		}
	}
}

func (h *Handler) ListChatMessages(c *gin.Context) {
	sid, okk := sessionIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "session token required")
		return
	}
	if c.Param("session_id") != sid {
		common.Fail(c, http.StatusNotFound, 40004, "session not found")
		return
	}

	if _, err := h.Repo.GetSessionBySessionID(c.Request.Context(), sid); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40004, "session not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to list messages")
		return
	}

	msgs, err := h.Repo.ListMessages(c.Request.Context(), sid)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to list messages")
		return
	}
	common.OK(c, gin.H{"messages": msgs})
}

type endSessionReq struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

// EndChatSession runs the closing flow: optional contact capture, the
// fire-and-forget analysis trigger, and completion.
func (h *Handler) EndChatSession(c *gin.Context) {
	sid, okk := sessionIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "session token required")
		return
	}
	if c.Param("session_id") != sid {
		common.Fail(c, http.StatusNotFound, 40004, "session not found")
		return
	}

	var req endSessionReq
	_ = c.ShouldBindJSON(&req) // empty body means the user skipped

	ctrl, okk := h.Registry.Get(sid)
	if !okk {
		common.Fail(c, http.StatusNotFound, 40004, "session not found")
		return
	}

	if err := ctrl.EndChat(); err != nil {
		if errors.Is(err, chat.ErrTurnInFlight) {
			common.Fail(c, http.StatusConflict, 40901, "a reply is still in progress")
			return
		}
		common.Fail(c, http.StatusBadRequest, 40002, "chat is not active")
		return
	}

	info := &chat.ContactInfo{Name: req.Name, Phone: req.Phone, Email: req.Email}
	if err := ctrl.SubmitContact(c.Request.Context(), info); err != nil {
		common.Fail(c, http.StatusInternalServerError, 50003, "failed to end session")
		return
	}

	h.Registry.Remove(sid)

	common.OK(c, gin.H{
		"session_id": sid,
		"status":     chat.StatusCompleted,
	})
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}
