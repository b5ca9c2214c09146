package chat

import "context"

// AnalysisTrigger kicks off post-session classification. Implementations are
// fire-and-forget from the controller's point of view: a trigger failure
// never blocks the completion flow.
type AnalysisTrigger interface {
	Trigger(ctx context.Context, sessionID string) error
}
