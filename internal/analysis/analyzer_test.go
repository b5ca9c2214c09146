package analysis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/airu-app/supportchat/internal/ai"
	"github.com/airu-app/supportchat/internal/chat"
)

func openTestRepo(t *testing.T) *chat.Repo {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&chat.Session{}, &chat.Message{}, &chat.Job{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return chat.NewRepo(db)
}

type fakeClassifier struct {
	mu     sync.Mutex
	calls  int
	result ai.Classification
	err    error
}

func (f *fakeClassifier) Classify(ctx context.Context, messages []ai.Message) (ai.Classification, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return ai.Classification{}, f.err
	}
	return f.result, nil
}

func (f *fakeClassifier) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func seedSession(t *testing.T, repo *chat.Repo, sid string) {
	t.Helper()
	err := repo.CreateSession(context.Background(), &chat.Session{
		SessionID:  sid,
		Department: string(chat.DepartmentGeneral),
		Status:     chat.StatusActive,
		StartedAt:  time.Now(),
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
}

func TestEmptyTranscriptShortCircuits(t *testing.T) {
	repo := openTestRepo(t)
	cls := &fakeClassifier{}
	a := NewAnalyzer(repo, cls)

	seedSession(t, repo, "01ANALYZEEMPTY000000000000")
	// only the seeded welcome message, no user turn
	if _, err := repo.AppendMessage(context.Background(), "01ANALYZEEMPTY000000000000", chat.RoleAssistant, "こんにちは！"); err != nil {
		t.Fatalf("append welcome: %v", err)
	}

	if err := a.Run(context.Background(), "01ANALYZEEMPTY000000000000"); err != nil {
		t.Fatalf("run: %v", err)
	}
	if cls.callCount() != 0 {
		t.Fatalf("empty transcript must not call the classification endpoint")
	}

	sess, err := repo.GetSessionBySessionID(context.Background(), "01ANALYZEEMPTY000000000000")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess.Status != chat.StatusCompleted {
		t.Fatalf("expected completed, got %q", sess.Status)
	}
	if sess.Sentiment == nil || *sess.Sentiment != ai.SentimentNeutral {
		t.Fatalf("expected neutral sentiment, got %+v", sess.Sentiment)
	}
	if sess.Summary == nil || *sess.Summary != emptyTranscriptSummary {
		t.Fatalf("expected %q summary, got %+v", emptyTranscriptSummary, sess.Summary)
	}
	if sess.EndedAt == nil {
		t.Fatalf("expected ended_at to be set")
	}
}

func TestTranscriptClassificationWritesResult(t *testing.T) {
	repo := openTestRepo(t)
	cls := &fakeClassifier{result: ai.Classification{
		Sentiment: ai.SentimentSatisfied,
		Summary:   "解約手続きの案内に満足",
	}}
	a := NewAnalyzer(repo, cls)

	const sid = "01ANALYZEFULL0000000000000"
	seedSession(t, repo, sid)
	for _, m := range []struct{ role, content string }{
		{chat.RoleAssistant, "こんにちは！"},
		{chat.RoleUser, "解約したいです"},
		{chat.RoleAssistant, "承知しました。お手続きをご案内します。"},
	} {
		if _, err := repo.AppendMessage(context.Background(), sid, m.role, m.content); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	if err := a.Run(context.Background(), sid); err != nil {
		t.Fatalf("run: %v", err)
	}
	if cls.callCount() != 1 {
		t.Fatalf("expected one classification call, got %d", cls.callCount())
	}

	sess, err := repo.GetSessionBySessionID(context.Background(), sid)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess.Sentiment == nil || *sess.Sentiment != ai.SentimentSatisfied {
		t.Fatalf("sentiment not written: %+v", sess.Sentiment)
	}
	if sess.Summary == nil || *sess.Summary != "解約手続きの案内に満足" {
		t.Fatalf("summary not written: %+v", sess.Summary)
	}
}

func TestAlreadyCompletedSessionIsNoOp(t *testing.T) {
	repo := openTestRepo(t)
	cls := &fakeClassifier{}
	a := NewAnalyzer(repo, cls)

	const sid = "01ANALYZEDONE0000000000000"
	seedSession(t, repo, sid)
	if _, err := repo.AppendMessage(context.Background(), sid, chat.RoleUser, "hi"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := repo.CompleteSession(context.Background(), sid, ai.SentimentNeutral, "done", time.Now()); err != nil {
		t.Fatalf("complete: %v", err)
	}

	if err := a.Run(context.Background(), sid); err != nil {
		t.Fatalf("run: %v", err)
	}
	if cls.callCount() != 0 {
		t.Fatalf("re-delivery for a completed session must not classify again")
	}
}

func TestClassifierFailurePropagatesWithoutCompleting(t *testing.T) {
	repo := openTestRepo(t)
	cls := &fakeClassifier{err: errors.New("endpoint down")}
	a := NewAnalyzer(repo, cls)

	const sid = "01ANALYZEFAIL0000000000000"
	seedSession(t, repo, sid)
	if _, err := repo.AppendMessage(context.Background(), sid, chat.RoleUser, "hi"); err != nil {
		t.Fatalf("append: %v", err)
	}

	if err := a.Run(context.Background(), sid); err == nil {
		t.Fatalf("expected classifier failure to propagate for retry")
	}

	sess, err := repo.GetSessionBySessionID(context.Background(), sid)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess.Status != chat.StatusActive {
		t.Fatalf("failed classification must not complete the session")
	}
}
