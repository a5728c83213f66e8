package classify

import "testing"

func TestLocationTrigger_Predict_PassesThroughSubtype(t *testing.T) {
	models := confidentModel(5.0)
	models.Type = &MultinomialModel{
		Labels:   []string{"explicit_location", "change_phrase", "question"},
		PerLabel: map[string]*LogisticModel{
			"explicit_location": {Bias: 1.0},
			"change_phrase":     {Bias: 9.0},
			"question":          {Bias: 0.5},
		},
	}
	trig := &LocationTrigger{Classifier: &Classifier{Models: models, Low: 0.4, High: 0.6}}
	r := trig.Predict("переехал в Берлин")
	if !r.Triggered || r.TriggerType != "change_phrase" {
		t.Fatalf("expected triggered change_phrase, got %+v", r)
	}
}

func TestLocationTrigger_Predict_NotTriggered(t *testing.T) {
	trig := &LocationTrigger{Classifier: &Classifier{Models: confidentModel(-5.0), Low: 0.4, High: 0.6}}
	r := trig.Predict("version 3.0 released")
	if r.Triggered {
		t.Fatalf("expected not triggered, got %+v", r)
	}
}
