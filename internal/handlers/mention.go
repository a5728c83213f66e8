package handlers

import (
	"context"

	"github.com/basket/tzwatch/internal/model"
	"github.com/basket/tzwatch/internal/pipeline"
)

const defaultHelpText = "I convert times and track timezones for this chat. " +
	"Mention a time (\"let's meet at 3pm\") and I'll convert it for everyone here. " +
	"Say where you're based and I'll remember it."

// MentionHandler answers a bot mention or help request with a short usage
// reply. It carries no state of its own.
type MentionHandler struct {
	HelpText string
}

func (h MentionHandler) Handle(_ context.Context, _ model.DetectedTrigger, rc pipeline.ResolvedContext) ([]model.OutboundMessage, error) {
	text := h.HelpText
	if text == "" {
		text = defaultHelpText
	}
	return []model.OutboundMessage{{
		Platform: rc.Platform,
		ChatID:   rc.ChatID,
		Text:     text,
	}}, nil
}
