package handlers

import (
	"github.com/airu-app/supportchat/internal/ai"
	"github.com/airu-app/supportchat/internal/chat"
	"github.com/airu-app/supportchat/internal/config"
)

type Handler struct {
	Cfg      config.Config
	Repo     *chat.Repo
	Gen      ai.Generator
	Trigger  chat.AnalysisTrigger
	Registry *Registry
}

func NewHandler(cfg config.Config, repo *chat.Repo, gen ai.Generator, trigger chat.AnalysisTrigger) *Handler {
	return &Handler{
		Cfg:      cfg,
		Repo:     repo,
		Gen:      gen,
		Trigger:  trigger,
		Registry: NewRegistry(),
	}
}
