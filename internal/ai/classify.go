package ai

import (
	"context"
	"encoding/json"
	"errors"
)

const (
	SentimentSatisfied    = "satisfied"
	SentimentNeutral      = "neutral"
	SentimentDissatisfied = "dissatisfied"
)

type tool struct {
	Type     string       `json:"type"`
	Function toolFunction `json:"function"`
}

type toolFunction struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters,omitempty"`
}

var classifyTool = tool{
	Type: "function",
	Function: toolFunction{
		Name:        "record_classification",
		Description: "Record the customer's overall sentiment and a short summary of the conversation.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"sentiment": map[string]any{
					"type": "string",
					"enum": []string{SentimentSatisfied, SentimentNeutral, SentimentDissatisfied},
				},
				"summary": map[string]any{
					"type": "string",
				},
			},
			"required": []string{"sentiment", "summary"},
		},
	},
}

type toolCallResp struct {
	Choices []struct {
		Message struct {
			ToolCalls []struct {
				Function struct {
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

// Classify asks the generation endpoint for a structured sentiment
// classification of the transcript via a forced tool call.
func (c *Client) Classify(ctx context.Context, messages []Message) (Classification, error) {
	if c.HTTP == nil {
		return Classification{}, errors.New("ai: http client is nil")
	}

	httpReq, err := c.newRequest(ctx, chatCompletionReq{
		Model:    c.Model,
		Messages: messages,
		Tools:    []tool{classifyTool},
		ToolChoice: map[string]any{
			"type":     "function",
			"function": map[string]string{"name": classifyTool.Function.Name},
		},
	})
	if err != nil {
		return Classification{}, err
	}

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return Classification{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Classification{}, endpointError(resp)
	}

	var decoded toolCallResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Classification{}, err
	}
	if len(decoded.Choices) == 0 || len(decoded.Choices[0].Message.ToolCalls) == 0 {
		return Classification{}, errors.New("ai: no tool call in classification response")
	}

	var out Classification
	args := decoded.Choices[0].Message.ToolCalls[0].Function.Arguments
	if err := json.Unmarshal([]byte(args), &out); err != nil {
		return Classification{}, err
	}
	out.Sentiment = NormalizeSentiment(out.Sentiment)
	return out, nil
}

// NormalizeSentiment maps anything outside the closed sentiment set to neutral.
func NormalizeSentiment(s string) string {
	switch s {
	case SentimentSatisfied, SentimentNeutral, SentimentDissatisfied:
		return s
	default:
		return SentimentNeutral
	}
}
