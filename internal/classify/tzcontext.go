package classify

// TzContextResult is the outcome of the timezone-context trigger.
type TzContextResult struct {
	Triggered   bool
	TriggerType string // "explicit_tz" or "clarification_question"
	Confidence  float64
}

// TzContextTrigger answers "does this text need timezone resolution?" —
// either an explicit timezone mention or a clarification question about
// one.
type TzContextTrigger struct {
	Classifier *Classifier
}

func (t *TzContextTrigger) Predict(text string) TzContextResult {
	r := t.Classifier.Predict(text)
	return TzContextResult{Triggered: r.Triggered, TriggerType: r.TriggerType, Confidence: r.Confidence}
}
