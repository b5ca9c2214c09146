package ai

import "context"

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SurveyContext carries the survey the visitor was viewing when the chat
// opened. It parameterizes the survey department's prompting.
type SurveyContext struct {
	SurveyID    string `json:"survey_id,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// ChatRequest is the generation-endpoint request body.
type ChatRequest struct {
	Messages      []Message      `json:"messages"`
	SessionID     string         `json:"session_id"`
	Department    string         `json:"department"`
	SurveyContext *SurveyContext `json:"survey_context,omitempty"`
}

// Update is one incremental decoding result. Content always carries the
// entire cumulative assistant text so consumers render canonical full text.
type Update struct {
	Delta   string
	Content string
}

// Generator streams assistant replies. Both channels close when the
// stream ends; at most one error is sent.
type Generator interface {
	StreamChat(ctx context.Context, req ChatRequest) (<-chan Update, <-chan error)
}

type Classification struct {
	Sentiment string `json:"sentiment"`
	Summary   string `json:"summary"`
}

// Classifier produces a post-session sentiment classification.
type Classifier interface {
	Classify(ctx context.Context, messages []Message) (Classification, error)
}
