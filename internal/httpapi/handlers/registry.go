package handlers

import (
	"sync"

	"github.com/airu-app/supportchat/internal/chat"
)

// Registry holds the live controller for each open session. One browser tab
// maps to one session, so entries appear at session creation and leave at
// completion.
type Registry struct {
	mu          sync.Mutex
	controllers map[string]*chat.Controller
}

func NewRegistry() *Registry {
	return &Registry{controllers: make(map[string]*chat.Controller)}
}

func (r *Registry) Put(sessionID string, ctrl *chat.Controller) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.controllers[sessionID] = ctrl
}

func (r *Registry) Get(sessionID string) (*chat.Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ctrl, ok := r.controllers[sessionID]
	return ctrl, ok
}

// Remove evicts and closes the controller, releasing any in-flight stream.
func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	ctrl, ok := r.controllers[sessionID]
	delete(r.controllers, sessionID)
	r.mu.Unlock()
	if ok {
		ctrl.Close()
	}
}
