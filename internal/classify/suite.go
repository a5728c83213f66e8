package classify

import "fmt"

// Suite is the lazily-loaded set of all three trigger classifiers, sharing
// one model-directory registry.
type Suite struct {
	registry *registry

	Time      *TimeClassifier
	TzContext *TzContextTrigger
	Location  *LocationTrigger
}

// SuiteConfig mirrors internal/config's ClassifierConfig without importing
// it directly, keeping this package free of a dependency on internal/config.
type SuiteConfig struct {
	ModelDir          string
	TimeLow, TimeHigh float64
	TzContextLow, TzContextHigh float64
	LocationLow, LocationHigh  float64
	LongTextThreshold int
	WindowSize        int
}

// NewSuite loads the three named model files (time_classifier,
// tz_context_trigger, location_trigger) from cfg.ModelDir and wires them
// into their respective typed classifiers.
func NewSuite(cfg SuiteConfig) (*Suite, error) {
	reg := newRegistry(cfg.ModelDir)

	timeModels, err := reg.Get("time_classifier")
	if err != nil {
		return nil, fmt.Errorf("load time classifier: %w", err)
	}
	tzModels, err := reg.Get("tz_context_trigger")
	if err != nil {
		return nil, fmt.Errorf("load tz-context classifier: %w", err)
	}
	locModels, err := reg.Get("location_trigger")
	if err != nil {
		return nil, fmt.Errorf("load location classifier: %w", err)
	}

	return &Suite{
		registry: reg,
		Time: &TimeClassifier{
			Classifier:        &Classifier{Models: timeModels, Low: cfg.TimeLow, High: cfg.TimeHigh},
			LongTextThreshold: cfg.LongTextThreshold,
			WindowSize:        cfg.WindowSize,
		},
		TzContext: &TzContextTrigger{
			Classifier: &Classifier{Models: tzModels, Low: cfg.TzContextLow, High: cfg.TzContextHigh},
		},
		Location: &LocationTrigger{
			Classifier: &Classifier{Models: locModels, Low: cfg.LocationLow, High: cfg.LocationHigh},
		},
	}, nil
}
