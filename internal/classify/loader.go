package classify

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// modelFile is the on-disk JSON shape a trained classifier is persisted as.
// It stands in for the pickled {vectorizer, model(s), type_labels} bundle:
// the vectorizer itself needs no persisted state (it's a stateless hashing
// vectorizer), so only the logistic weights and subtype labels are stored.
type modelFile struct {
	Bias        float64            `json:"bias"`
	Weights     []float64          `json:"weights"`
	TypeLabels  []string           `json:"type_labels,omitempty"`
	TypeBias    map[string]float64 `json:"type_bias,omitempty"`
	TypeWeights map[string][]float64 `json:"type_weights,omitempty"`
}

// ModelSet bundles a binary head with an optional subtype head.
type ModelSet struct {
	Binary *LogisticModel
	Type   *MultinomialModel // nil if this classifier has no subtype head
}

func loadModelFile(path string) (*ModelSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model file %s: %w", path, err)
	}
	var mf modelFile
	if err := json.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("parse model file %s: %w", path, err)
	}

	ms := &ModelSet{
		Binary: &LogisticModel{Weights: Vector(mf.Weights), Bias: mf.Bias},
	}
	if len(mf.TypeLabels) > 0 {
		perLabel := make(map[string]*LogisticModel, len(mf.TypeLabels))
		for _, label := range mf.TypeLabels {
			perLabel[label] = &LogisticModel{
				Weights: Vector(mf.TypeWeights[label]),
				Bias:    mf.TypeBias[label],
			}
		}
		ms.Type = &MultinomialModel{Labels: mf.TypeLabels, PerLabel: perLabel}
	}
	return ms, nil
}

// registry is a lazily-populated, thread-safe cache of loaded model sets
// keyed by file name, the same double-checked-locking shape as
// internal/limits' RateLimiter.getWindow.
type registry struct {
	mu      sync.RWMutex
	dir     string
	loaded  map[string]*ModelSet
}

func newRegistry(dir string) *registry {
	return &registry{dir: dir, loaded: make(map[string]*ModelSet)}
}

// Get returns the named model set, loading it from disk on first use.
func (r *registry) Get(name string) (*ModelSet, error) {
	r.mu.RLock()
	ms, ok := r.loaded[name]
	r.mu.RUnlock()
	if ok {
		return ms, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if ms, ok = r.loaded[name]; ok {
		return ms, nil
	}
	ms, err := loadModelFile(filepath.Join(r.dir, name+".json"))
	if err != nil {
		return nil, err
	}
	r.loaded[name] = ms
	return ms, nil
}
