package classify

import (
	"os"
	"path/filepath"
	"testing"
)

func writeModelFile(t *testing.T, dir, name, json string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name+".json"), []byte(json), 0o644); err != nil {
		t.Fatalf("write model file: %v", err)
	}
}

func TestRegistry_LoadsAndCachesModelFile(t *testing.T) {
	dir := t.TempDir()
	writeModelFile(t, dir, "time_classifier", `{"bias": 1.5, "weights": [0.1, 0.2]}`)

	reg := newRegistry(dir)
	ms, err := reg.Get("time_classifier")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ms.Binary.Bias != 1.5 {
		t.Fatalf("expected bias 1.5, got %v", ms.Binary.Bias)
	}

	// Delete the file; a cached registry must still serve the loaded model.
	if err := os.Remove(filepath.Join(dir, "time_classifier.json")); err != nil {
		t.Fatalf("remove model file: %v", err)
	}
	ms2, err := reg.Get("time_classifier")
	if err != nil {
		t.Fatalf("expected cached result, got error: %v", err)
	}
	if ms2 != ms {
		t.Fatalf("expected the same cached ModelSet instance")
	}
}

func TestRegistry_LoadsSubtypeHead(t *testing.T) {
	dir := t.TempDir()
	writeModelFile(t, dir, "tz_context_trigger", `{
		"bias": 0.5,
		"weights": [0.1],
		"type_labels": ["explicit_tz", "clarification_question"],
		"type_bias": {"explicit_tz": 1.0, "clarification_question": 2.0},
		"type_weights": {"explicit_tz": [0.1], "clarification_question": [0.2]}
	}`)

	reg := newRegistry(dir)
	ms, err := reg.Get("tz_context_trigger")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ms.Type == nil {
		t.Fatalf("expected a subtype head to be loaded")
	}
	if len(ms.Type.Labels) != 2 {
		t.Fatalf("expected 2 subtype labels, got %d", len(ms.Type.Labels))
	}
}

func TestRegistry_MissingFileReturnsError(t *testing.T) {
	reg := newRegistry(t.TempDir())
	if _, err := reg.Get("does_not_exist"); err == nil {
		t.Fatalf("expected error for missing model file")
	}
}
