package chat

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/airu-app/supportchat/internal/ai"
	"github.com/airu-app/supportchat/internal/common"
)

// State is the conversation stage of one support session.
type State int

const (
	StateInit State = iota
	StateSurveyConfirm
	StateDepartmentSelection
	StateActiveChat
	StateEndingCustomerInfo
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateSurveyConfirm:
		return "survey_confirm"
	case StateDepartmentSelection:
		return "department_selection"
	case StateActiveChat:
		return "active_chat"
	case StateEndingCustomerInfo:
		return "ending_customer_info"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

var (
	ErrInvalidTransition = errors.New("chat: operation not valid in current state")
	ErrTurnInFlight      = errors.New("chat: a turn is already in flight")
	ErrUnknownDepartment = errors.New("chat: unknown department")
)

// PageContext is what the widget knows about the page the chat opened on.
type PageContext struct {
	PageURL string
	Survey  *ai.SurveyContext
}

type ContactInfo struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

func (ci *ContactInfo) empty() bool {
	return ci == nil || (ci.Name == "" && ci.Phone == "" && ci.Email == "")
}

// Controller drives one conversation from department selection through
// completion. One browser tab maps to one controller; operations are
// serialized by the mutex, and at most one generation turn is live at a time.
type Controller struct {
	repo    *Repo
	gen     ai.Generator
	trigger AnalysisTrigger

	mu       sync.Mutex
	state    State
	page     PageContext
	profile  DepartmentProfile
	session  *Session
	inFlight bool

	// lifetime context: Close cancels it, which also cancels any turn
	// still reading from the generation stream.
	ctx    context.Context
	cancel context.CancelFunc
}

func NewController(repo *Repo, gen ai.Generator, trigger AnalysisTrigger) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		repo:    repo,
		gen:     gen,
		trigger: trigger,
		state:   StateInit,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start leaves Init: survey context routes to the confirmation step,
// otherwise straight to department selection.
func (c *Controller) Start(page PageContext) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateInit {
		return c.state
	}
	c.page = page
	if page.Survey != nil {
		c.state = StateSurveyConfirm
	} else {
		c.state = StateDepartmentSelection
	}
	return c.state
}

// ConfirmSurvey accepts the survey-help offer: the session is created with
// the survey department and seeded with its welcome message.
func (c *Controller) ConfirmSurvey(ctx context.Context) (*Session, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateSurveyConfirm {
		return nil, "", ErrInvalidTransition
	}
	profile, _ := DepartmentByID(string(DepartmentSurvey))
	return c.createSessionLocked(ctx, profile)
}

// DeclineSurvey falls back to manual department selection.
func (c *Controller) DeclineSurvey() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateSurveyConfirm {
		return ErrInvalidTransition
	}
	c.state = StateDepartmentSelection
	return nil
}

// SelectDepartment creates the session for one of the five fixed variants.
func (c *Controller) SelectDepartment(ctx context.Context, department string) (*Session, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateDepartmentSelection {
		return nil, "", ErrInvalidTransition
	}
	profile, ok := DepartmentByID(department)
	if !ok {
		return nil, "", ErrUnknownDepartment
	}
	return c.createSessionLocked(ctx, profile)
}

// createSessionLocked persists the session, seeds the templated welcome
// message (no network call), and enters ActiveChat. Caller holds c.mu.
func (c *Controller) createSessionLocked(ctx context.Context, profile DepartmentProfile) (*Session, string, error) {
	sid, err := common.NewULID()
	if err != nil {
		return nil, "", err
	}

	sess := &Session{
		SessionID:  sid,
		Department: string(profile.ID),
		Status:     StatusActive,
		StartedAt:  time.Now(),
		PageURL:    c.page.PageURL,
	}
	if sc := c.page.Survey; sc != nil {
		sess.SurveyID = sc.SurveyID
		sess.SurveyTitle = sc.Title
		sess.SurveyDescription = sc.Description
	}
	if err := c.repo.CreateSession(ctx, sess); err != nil {
		return nil, "", err
	}

	welcome := profile.WelcomeMessage(c.page.Survey)
	if _, err := c.repo.AppendMessage(ctx, sid, RoleAssistant, welcome); err != nil {
		log.Printf("[Controller] welcome append failed session=%s err=%v", sid, err)
	}

	c.profile = profile
	c.session = sess
	c.state = StateActiveChat
	return sess, welcome, nil
}

// Send runs one conversation turn: persist the user message, stream the
// assistant reply, then persist the filtered final text. onUpdate receives
// the growing cumulative text for re-rendering; it may be nil.
//
// Empty (trimmed) input or a missing session is a no-op. A second Send while
// a turn is live returns ErrTurnInFlight. A transport failure discards the
// in-flight assistant text, leaves the state untouched, and is returned to
// the caller.
func (c *Controller) Send(ctx context.Context, text string, onUpdate func(content string)) (string, error) {
	c.mu.Lock()
	if c.session == nil {
		// no session yet: the send control should not have been reachable
		c.mu.Unlock()
		return "", nil
	}
	if c.state != StateActiveChat {
		c.mu.Unlock()
		return "", ErrInvalidTransition
	}
	text = strings.TrimSpace(text)
	if text == "" {
		c.mu.Unlock()
		return "", nil
	}
	if c.inFlight {
		c.mu.Unlock()
		return "", ErrTurnInFlight
	}
	c.inFlight = true
	sess := c.session
	profile := c.profile
	survey := c.page.Survey
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()
	}()

	// Closing the controller must release the stream even though the turn
	// runs under the caller's context.
	turnCtx, cancelTurn := context.WithCancel(ctx)
	defer cancelTurn()
	stopWatch := context.AfterFunc(c.ctx, cancelTurn)
	defer stopWatch()

	// Durable user write before the network call starts. A write failure is
	// logged, not surfaced; the conversation continues.
	if _, err := c.repo.AppendMessage(turnCtx, sess.SessionID, RoleUser, text); err != nil {
		log.Printf("[Controller] user append failed session=%s err=%v", sess.SessionID, err)
	}

	history, err := c.repo.ListMessages(turnCtx, sess.SessionID)
	if err != nil {
		log.Printf("[Controller] history load failed session=%s err=%v", sess.SessionID, err)
	}

	msgs := make([]ai.Message, 0, len(history)+1)
	msgs = append(msgs, ai.Message{Role: "system", Content: profile.SystemPrompt(survey)})
	for _, m := range history {
		content := m.Content
		if m.Role == RoleUser {
			content = Sanitize(content)
		}
		msgs = append(msgs, ai.Message{Role: m.Role, Content: content})
	}
	if len(history) == 0 {
		// history write failed above; still send the sanitized input
		msgs = append(msgs, ai.Message{Role: RoleUser, Content: Sanitize(text)})
	}

	updates, errs := c.gen.StreamChat(turnCtx, ai.ChatRequest{
		Messages:      msgs,
		SessionID:     sess.SessionID,
		Department:    sess.Department,
		SurveyContext: survey,
	})

	var final string
	for u := range updates {
		final = u.Content
		if onUpdate != nil {
			onUpdate(u.Content)
		}
	}
	if err, ok := <-errs; ok && err != nil {
		// transport failure: the unpersisted assistant text is discarded
		return "", err
	}

	filtered := FilterDisclosure(final)
	if filtered != "" {
		if _, err := c.repo.AppendMessage(turnCtx, sess.SessionID, RoleAssistant, filtered); err != nil {
			log.Printf("[Controller] assistant append failed session=%s err=%v", sess.SessionID, err)
		}
	}
	return filtered, nil
}

// EndChat moves to the customer-info step.
func (c *Controller) EndChat() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateActiveChat {
		return ErrInvalidTransition
	}
	if c.inFlight {
		return ErrTurnInFlight
	}
	c.state = StateEndingCustomerInfo
	return nil
}

// SubmitContact records optional contact fields (nil or empty means the user
// skipped), fires the analysis trigger without waiting for its result, and
// completes the session from the user's point of view.
func (c *Controller) SubmitContact(ctx context.Context, info *ContactInfo) error {
	c.mu.Lock()
	if c.state != StateEndingCustomerInfo {
		c.mu.Unlock()
		return ErrInvalidTransition
	}
	sess := c.session
	c.state = StateCompleted
	c.mu.Unlock()

	if !info.empty() {
		var name, phone, email *string
		if info.Name != "" {
			name = &info.Name
		}
		if info.Phone != "" {
			phone = &info.Phone
		}
		if info.Email != "" {
			email = &info.Email
		}
		if err := c.repo.UpdateSessionContact(ctx, sess.SessionID, name, phone, email); err != nil {
			log.Printf("[Controller] contact update failed session=%s err=%v", sess.SessionID, err)
		}
	}

	if c.trigger != nil {
		// fire-and-forget; trigger failures never reach the user
		go func(sid string) {
			if err := c.trigger.Trigger(context.WithoutCancel(ctx), sid); err != nil {
				log.Printf("[Controller] analysis trigger failed session=%s err=%v", sid, err)
			}
		}(sess.SessionID)
	}
	return nil
}

// State returns the current conversation stage.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns the session aggregate, nil before creation.
func (c *Controller) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Close releases the controller. Any in-flight stream read is canceled so a
// late chunk cannot mutate state after the UI is gone.
func (c *Controller) Close() {
	c.cancel()
}
