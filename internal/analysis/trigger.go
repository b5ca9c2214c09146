package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/airu-app/supportchat/internal/chat"
	"github.com/airu-app/supportchat/internal/common"
	"github.com/airu-app/supportchat/internal/store/rabbitmq"
	"github.com/airu-app/supportchat/internal/store/redisstore"
)

// QueueTrigger enqueues an analysis job for the worker. The redis guard
// ensures a session is enqueued at most once even if the trigger endpoint is
// hit again for the same session.
type QueueTrigger struct {
	repo  *chat.Repo
	pub   *rabbitmq.Publisher
	guard *redisstore.Store
}

func NewQueueTrigger(repo *chat.Repo, pub *rabbitmq.Publisher, guard *redisstore.Store) *QueueTrigger {
	return &QueueTrigger{repo: repo, pub: pub, guard: guard}
}

func (t *QueueTrigger) Trigger(ctx context.Context, sessionID string) error {
	first, err := t.guard.OnceAnalysis(ctx, sessionID)
	if err != nil {
		// guard unavailable: enqueue anyway, the analyzer is idempotent
		log.Printf("[QueueTrigger] once-guard unavailable session=%s err=%v", sessionID, err)
		first = true
	}
	if !first {
		return nil
	}

	jobID, err := common.NewULID()
	if err != nil {
		return err
	}
	job := &chat.Job{
		ID:        jobID,
		SessionID: sessionID,
		Status:    chat.JobQueued,
	}
	if err := t.repo.CreateJob(ctx, job); err != nil {
		return err
	}
	return t.pub.PublishJob(ctx, jobID)
}

// HTTPTrigger invokes the analysis endpoint over HTTP, for deployments where
// the chat engine is embedded apart from the server binary.
type HTTPTrigger struct {
	BaseURL string
	HTTP    *http.Client
}

func NewHTTPTrigger(baseURL string) *HTTPTrigger {
	return &HTTPTrigger{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *HTTPTrigger) Trigger(ctx context.Context, sessionID string) error {
	body, err := json.Marshal(map[string]string{"session_id": sessionID})
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/analysis/trigger", strings.TrimRight(t.BaseURL, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("analysis trigger: status %d", resp.StatusCode)
	}
	return nil
}
