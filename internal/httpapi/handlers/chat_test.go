package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/airu-app/supportchat/internal/ai"
	"github.com/airu-app/supportchat/internal/chat"
	"github.com/airu-app/supportchat/internal/config"
	"github.com/airu-app/supportchat/internal/httpapi/middleware"
)

type scriptedGenerator struct {
	deltas []string
}

func (g *scriptedGenerator) StreamChat(ctx context.Context, req ai.ChatRequest) (<-chan ai.Update, <-chan error) {
	updates := make(chan ai.Update, 16)
	errs := make(chan error, 1)
	go func() {
		defer close(updates)
		defer close(errs)
		var b strings.Builder
		for _, d := range g.deltas {
			b.WriteString(d)
			updates <- ai.Update{Delta: d, Content: b.String()}
		}
	}()
	return updates, errs
}

type recordingTrigger struct {
	mu       sync.Mutex
	sessions []string
}

func (r *recordingTrigger) Trigger(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = append(r.sessions, sessionID)
	return nil
}

func setupRouter(t *testing.T, gen ai.Generator) (*gin.Engine, *chat.Repo, *recordingTrigger) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(gormsqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&chat.Session{}, &chat.Message{}, &chat.Job{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	repo := chat.NewRepo(db)
	trigger := &recordingTrigger{}
	cfg := config.Config{SessionSecret: "test-secret"}

	r := gin.New()
	h := NewHandler(cfg, repo, gen, trigger)
	r.GET("/departments", h.ListDepartments)
	r.POST("/chat/sessions", h.CreateChatSession)
	auth := r.Group("/")
	auth.Use(middleware.SessionAuth(cfg.SessionSecret))
	auth.POST("/chat/messages/stream", h.SendChatMessageStream)
	auth.GET("/chat/sessions/:session_id/messages", h.ListChatMessages)
	auth.POST("/chat/sessions/:session_id/end", h.EndChatSession)

	return r, repo, trigger
}

func doJSON(t *testing.T, r *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func createSession(t *testing.T, r *gin.Engine, body any) (sessionID, token string) {
	t.Helper()
	resp := doJSON(t, r, http.MethodPost, "/chat/sessions", "", body)
	if resp.Code != http.StatusOK {
		t.Fatalf("create session: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var env struct {
		Data struct {
			SessionID string `json:"session_id"`
			Token     string `json:"token"`
			Welcome   string `json:"welcome"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Data.SessionID == "" || env.Data.Token == "" || env.Data.Welcome == "" {
		t.Fatalf("incomplete session payload: %s", resp.Body.String())
	}
	return env.Data.SessionID, env.Data.Token
}

func TestListDepartments(t *testing.T) {
	r, _, _ := setupRouter(t, &scriptedGenerator{})
	resp := doJSON(t, r, http.MethodGet, "/departments", "", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var env struct {
		Data struct {
			Departments []chat.DepartmentProfile `json:"departments"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(env.Data.Departments) != 5 {
		t.Fatalf("expected 5 departments, got %d", len(env.Data.Departments))
	}
}

func TestCreateSessionUnknownDepartment(t *testing.T) {
	r, _, _ := setupRouter(t, &scriptedGenerator{})
	resp := doJSON(t, r, http.MethodPost, "/chat/sessions", "", gin.H{"department": "billing"})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestStreamEndpointRequiresToken(t *testing.T) {
	r, _, _ := setupRouter(t, &scriptedGenerator{})
	resp := doJSON(t, r, http.MethodPost, "/chat/messages/stream", "", gin.H{"message": "hi"})
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestChatRoundTrip(t *testing.T) {
	gen := &scriptedGenerator{deltas: []string{"ご案内", "します。"}}
	r, repo, trigger := setupRouter(t, gen)

	sid, token := createSession(t, r, gin.H{
		"department": "customer_service",
		"page_url":   "/help",
	})

	// one turn over the SSE bridge
	resp := doJSON(t, r, http.MethodPost, "/chat/messages/stream", token, gin.H{"message": "料金について"})
	if resp.Code != http.StatusOK {
		t.Fatalf("stream: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if ct := resp.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("expected event-stream content type, got %q", ct)
	}
	body := resp.Body.String()
	if !strings.Contains(body, "event: done") {
		t.Fatalf("expected a done event, got: %s", body)
	}
	if !strings.Contains(body, "ご案内します。") {
		t.Fatalf("expected final content in stream, got: %s", body)
	}

	// transcript is ordered and complete
	resp = doJSON(t, r, http.MethodGet, "/chat/sessions/"+sid+"/messages", token, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("messages: expected 200, got %d", resp.Code)
	}
	var env struct {
		Data struct {
			Messages []chat.Message `json:"messages"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(env.Data.Messages) != 3 {
		t.Fatalf("expected welcome+user+assistant, got %d", len(env.Data.Messages))
	}
	if env.Data.Messages[1].Role != chat.RoleUser || env.Data.Messages[2].Role != chat.RoleAssistant {
		t.Fatalf("unexpected transcript order: %+v", env.Data.Messages)
	}

	// closing flow
	resp = doJSON(t, r, http.MethodPost, "/chat/sessions/"+sid+"/end", token, gin.H{
		"name":  "山田太郎",
		"email": "taro@example.com",
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("end: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	sess, err := repo.GetSessionBySessionID(context.Background(), sid)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess.CustomerName == nil || *sess.CustomerName != "山田太郎" {
		t.Fatalf("contact not captured: %+v", sess)
	}

	// fire-and-forget trigger runs on its own goroutine
	deadlineOK := false
	for i := 0; i < 200; i++ {
		trigger.mu.Lock()
		n := len(trigger.sessions)
		trigger.mu.Unlock()
		if n == 1 {
			deadlineOK = true
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !deadlineOK {
		t.Fatalf("analysis trigger was not invoked")
	}

	// ended sessions leave the registry
	resp = doJSON(t, r, http.MethodPost, "/chat/messages/stream", token, gin.H{"message": "まだいますか"})
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after completion, got %d", resp.Code)
	}
}

func TestSurveySessionWelcomeMentionsSurvey(t *testing.T) {
	r, _, _ := setupRouter(t, &scriptedGenerator{})
	resp := doJSON(t, r, http.MethodPost, "/chat/sessions", "", gin.H{
		"department": "survey",
		"survey_context": gin.H{
			"survey_id": "sv-1",
			"title":     "顧客満足度調査2026",
		},
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if !strings.Contains(resp.Body.String(), "顧客満足度調査2026") {
		t.Fatalf("survey welcome should mention the survey title: %s", resp.Body.String())
	}
}
