package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/basket/tzwatch/internal/llm"
	"github.com/basket/tzwatch/internal/model"
	"github.com/basket/tzwatch/internal/pipeline"
	"github.com/basket/tzwatch/internal/tzidentity"
)

// GeoMentionHandler resolves an ambiguous city mention (no explicit
// relocation or time phrase matched it) through the LLM geo-intent
// classifier. A relocation verdict is treated exactly like
// RelocationHandler's: confidence invalidated, candidate city/tz annotated
// onto the trigger for the orchestrator to pick up. Time-query and
// false-positive verdicts need no action — there was never a parsed time to
// act on, only a city name. An uncertain verdict is left for the
// orchestrator to turn into a GEO_INTENT clarification session.
type GeoMentionHandler struct {
	LLM      *llm.Client
	Identity *tzidentity.Manager
	Now      func() time.Time
}

func (h GeoMentionHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h GeoMentionHandler) Handle(ctx context.Context, trig model.DetectedTrigger, rc pipeline.ResolvedContext) ([]model.OutboundMessage, error) {
	city, _ := trig.Data["city"].(string)
	tz, _ := trig.Data["tz_iana"].(string)

	intent, err := h.LLM.ClassifyGeoIntent(ctx, trig.OriginalText, city)
	if err != nil {
		intent = llm.GeoIntentUncertain
	}
	trig.Data["geo_intent"] = string(intent)

	if intent == llm.GeoIntentRelocation {
		if err := h.Identity.InvalidateOnRelocation(ctx, rc.Platform, rc.UserID, h.now()); err != nil {
			return nil, fmt.Errorf("invalidate on relocation: %w", err)
		}
		trig.Data["resolved_city"] = city
		trig.Data["resolved_tz"] = tz
	}
	return nil, nil
}
