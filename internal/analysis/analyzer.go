package analysis

import (
	"context"
	"log"
	"time"

	"github.com/airu-app/supportchat/internal/ai"
	"github.com/airu-app/supportchat/internal/chat"
)

const emptyTranscriptSummary = "no conversation"

// Analyzer classifies a finished session's transcript and writes the result
// onto the session record. It runs on the worker side of the analysis queue.
type Analyzer struct {
	repo *chat.Repo
	cls  ai.Classifier
}

func NewAnalyzer(repo *chat.Repo, cls ai.Classifier) *Analyzer {
	return &Analyzer{repo: repo, cls: cls}
}

// Run loads the transcript and completes the session with a sentiment and
// summary. An empty transcript short-circuits to a neutral default without
// calling the classification endpoint. Re-delivery for an already-completed
// session is a no-op.
func (a *Analyzer) Run(ctx context.Context, sessionID string) error {
	sess, err := a.repo.GetSessionBySessionID(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.Status == chat.StatusCompleted {
		log.Printf("[Analyzer] session already completed session=%s", sessionID)
		return nil
	}

	msgs, err := a.repo.ListMessages(ctx, sessionID)
	if err != nil {
		return err
	}

	// Only user turns count as conversation; a session holding nothing but
	// the seeded welcome message is still empty.
	var userTurns int
	for _, m := range msgs {
		if m.Role == chat.RoleUser {
			userTurns++
		}
	}
	if userTurns == 0 {
		return a.repo.CompleteSession(ctx, sessionID, ai.SentimentNeutral, emptyTranscriptSummary, time.Now())
	}

	transcript := make([]ai.Message, 0, len(msgs))
	for _, m := range msgs {
		transcript = append(transcript, ai.Message{Role: m.Role, Content: m.Content})
	}

	result, err := a.cls.Classify(ctx, transcript)
	if err != nil {
		return err
	}

	return a.repo.CompleteSession(ctx, sessionID, result.Sentiment, result.Summary, time.Now())
}
