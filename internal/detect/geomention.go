package detect

import (
	"context"
	"strings"

	"github.com/basket/tzwatch/internal/classify"
	"github.com/basket/tzwatch/internal/geocoder"
	"github.com/basket/tzwatch/internal/model"
)

// GeoMentionDetector fires on a message that names a known city but matches
// neither RelocationDetector nor TimeDetector's patterns — the pipeline
// runs this only after those two come up empty, and hands the result to an
// LLM geo-intent call to decide what, if anything, the city mention means.
type GeoMentionDetector struct {
	Classifier *classify.LocationTrigger
	Geocoder   *geocoder.Geocoder
}

func (d GeoMentionDetector) Detect(_ context.Context, event model.NormalizedEvent) []model.DetectedTrigger {
	if d.Classifier == nil || d.Geocoder == nil {
		return nil
	}
	result := d.Classifier.Predict(event.Text)
	if !result.Triggered {
		return nil
	}
	matches := d.Geocoder.FindInText(event.Text)
	if len(matches) == 0 {
		return nil
	}
	match := matches[0]
	return []model.DetectedTrigger{{
		TriggerType:  model.TriggerGeoMention,
		Confidence:   result.Confidence,
		OriginalText: strings.TrimSpace(event.Text),
		Data: map[string]any{
			"city":    match.CanonicalName,
			"tz_iana": match.TzIANA,
		},
	}}
}
