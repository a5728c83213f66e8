package classify

// LocationResult is the outcome of the relocation/location-mention trigger.
type LocationResult struct {
	Triggered   bool
	TriggerType string // "explicit_location", "change_phrase", or "question"
	Confidence  float64
}

// LocationTrigger answers "does this text mention the speaker's own
// location or a change of it?" The actual city name, if any, is resolved
// downstream by internal/geocoder — this classifier only decides whether
// the text is about the speaker's location at all.
type LocationTrigger struct {
	Classifier *Classifier
}

func (l *LocationTrigger) Predict(text string) LocationResult {
	r := l.Classifier.Predict(text)
	return LocationResult{Triggered: r.Triggered, TriggerType: r.TriggerType, Confidence: r.Confidence}
}
