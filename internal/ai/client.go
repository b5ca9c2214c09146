package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// EndpointError carries the generation endpoint's own error message so
// callers can surface it verbatim (e.g. a localized "busy, try again").
type EndpointError struct {
	StatusCode int
	Message    string
}

func (e *EndpointError) Error() string { return e.Message }

// Client talks to the generation endpoint: streaming chat completions and
// structured post-session classification.
type Client struct {
	BaseURL string
	APIKey  string
	Model   string
	HTTP    *http.Client
}

func NewClient(baseURL, apiKey, model string) *Client {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   model,
		// no client-wide timeout: it would cut streams off mid-reply.
		// Callers bound requests with ctx.
		HTTP: &http.Client{},
	}
}

type chatCompletionReq struct {
	Model         string         `json:"model"`
	Messages      []Message      `json:"messages"`
	Stream        bool           `json:"stream"`
	SessionID     string         `json:"session_id,omitempty"`
	Department    string         `json:"department,omitempty"`
	SurveyContext *SurveyContext `json:"survey_context,omitempty"`
	Tools         []tool         `json:"tools,omitempty"`
	ToolChoice    any            `json:"tool_choice,omitempty"`
}

type errBody struct {
	Error string `json:"error"`
}

func (c *Client) newRequest(ctx context.Context, body any) (*http.Request, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/chat/completions", strings.TrimRight(c.BaseURL, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	return req, nil
}

// endpointError decodes the failure body's error string, falling back to a
// generic status message when the body is empty or not JSON.
func endpointError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
	var eb errBody
	if err := json.Unmarshal(raw, &eb); err == nil && eb.Error != "" {
		return &EndpointError{StatusCode: resp.StatusCode, Message: eb.Error}
	}
	msg := strings.TrimSpace(string(raw))
	if msg == "" {
		msg = fmt.Sprintf("generation endpoint: status %d", resp.StatusCode)
	}
	return &EndpointError{StatusCode: resp.StatusCode, Message: msg}
}

// StreamChat opens a generation stream and decodes it incrementally.
// Both channels close when the stream reaches a terminal condition; at most
// one error is sent. Canceling ctx releases the response body reader.
func (c *Client) StreamChat(ctx context.Context, req ChatRequest) (<-chan Update, <-chan error) {
	updates := make(chan Update, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(updates)
		defer close(errs)

		if c.HTTP == nil {
			errs <- errors.New("ai: http client is nil")
			return
		}

		httpReq, err := c.newRequest(ctx, chatCompletionReq{
			Model:         c.Model,
			Messages:      req.Messages,
			Stream:        true,
			SessionID:     req.SessionID,
			Department:    req.Department,
			SurveyContext: req.SurveyContext,
		})
		if err != nil {
			errs <- err
			return
		}

		resp, err := c.HTTP.Do(httpReq)
		if err != nil {
			errs <- err
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			errs <- endpointError(resp)
			return
		}
		if resp.Body == nil {
			errs <- errors.New("ai: response has no body")
			return
		}

		dec := NewStreamDecoder()
		buf := make([]byte, 4096)
		for {
			n, readErr := resp.Body.Read(buf)
			if n > 0 {
				batch, done, decErr := dec.Feed(buf[:n])
				for _, u := range batch {
					select {
					case updates <- u:
					case <-ctx.Done():
						return
					}
				}
				if decErr != nil {
					errs <- decErr
					return
				}
				if done {
					return
				}
			}
			if readErr == io.EOF {
				// terminal condition: natural end of stream
				return
			}
			if readErr != nil {
				if ctx.Err() != nil {
					errs <- ctx.Err()
				} else {
					errs <- readErr
				}
				return
			}
		}
	}()

	return updates, errs
}
