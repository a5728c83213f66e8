package classify

// Result is the outcome of running a binary+subtype classifier over one
// piece of text.
type Result struct {
	Triggered   bool
	TriggerType string // "" when Triggered is false or the classifier has no subtype head
	Confidence  float64
}

// Classifier wraps one ModelSet with its low/high decision thresholds.
// Below Low the verdict is a confident negative, above High a confident
// positive; in between, the raw binary prediction (proba >= 0.5) decides.
type Classifier struct {
	Models     *ModelSet
	Low, High  float64
}

// Predict vectorizes text and applies the threshold rule, then (only when
// triggered and a subtype head exists) resolves the trigger subtype.
func (c *Classifier) Predict(text string) Result {
	v := Vectorize(text)
	proba := c.Models.Binary.PredictProba(v)
	triggered := decide(proba, c.Low, c.High)

	if !triggered {
		return Result{Triggered: false, Confidence: 1 - proba}
	}

	result := Result{Triggered: true, Confidence: proba}
	if c.Models.Type != nil {
		label, _ := c.Models.Type.Predict(v)
		result.TriggerType = label
	}
	return result
}

func decide(proba, low, high float64) bool {
	if proba > high {
		return true
	}
	if proba < low {
		return false
	}
	return proba >= 0.5
}
