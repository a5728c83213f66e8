package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/basket/tzwatch/internal/geocoder"
	"github.com/basket/tzwatch/internal/model"
	"github.com/basket/tzwatch/internal/pipeline"
	"github.com/basket/tzwatch/internal/tzidentity"
)

// RelocationHandler reacts to a confirmed relocation statement by
// invalidating the user's current confidence — tz_iana stays as historical
// reference — and, when the stated city resolves, annotating the trigger
// with a candidate so the orchestrator can seed a CONFIRM_RELOCATION
// session without asking the user to repeat themselves. It never replies
// directly; the session machine owns that conversation.
type RelocationHandler struct {
	Identity *tzidentity.Manager
	Geocoder *geocoder.Geocoder
	Now      func() time.Time
}

func (h RelocationHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h RelocationHandler) Handle(ctx context.Context, trig model.DetectedTrigger, rc pipeline.ResolvedContext) ([]model.OutboundMessage, error) {
	if err := h.Identity.InvalidateOnRelocation(ctx, rc.Platform, rc.UserID, h.now()); err != nil {
		return nil, fmt.Errorf("invalidate on relocation: %w", err)
	}

	city, _ := trig.Data["city"].(string)
	if city != "" && h.Geocoder != nil {
		if match, ok := h.Geocoder.Lookup(city); ok {
			trig.Data["resolved_city"] = match.CanonicalName
			trig.Data["resolved_tz"] = match.TzIANA
		}
	}
	return nil, nil
}
