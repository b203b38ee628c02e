package llm

import "testing"

func TestDecodeLLMJSONExtractsEmbeddedObject(t *testing.T) {
	var out struct {
		Name string `json:"name"`
	}
	if err := DecodeLLMJSON("Here you go: {\"name\":\"Body Roll\"} enjoy", &out); err != nil {
		t.Fatalf("DecodeLLMJSON returned error: %v", err)
	}
	if out.Name != "Body Roll" {
		t.Fatalf("unexpected name %q", out.Name)
	}
}

func TestDecodeLLMJSONRejectsEmpty(t *testing.T) {
	var out map[string]any
	if err := DecodeLLMJSON("   ", &out); err == nil {
		t.Fatal("expected error for empty payload")
	}
}

func TestUnwrapSingleKey(t *testing.T) {
	wrapped := map[string]any{"step": map[string]any{"stepName": "Slide"}}
	inner := UnwrapSingleKey(wrapped)
	if inner["stepName"] != "Slide" {
		t.Fatalf("expected inner object, got %v", inner)
	}
	flat := map[string]any{"stepName": "Slide", "stepNumber": 1.0}
	if got := UnwrapSingleKey(flat); len(got) != 2 {
		t.Fatalf("expected flat payload unchanged, got %v", got)
	}
	scalar := map[string]any{"stepName": "Slide"}
	if got := UnwrapSingleKey(scalar); got["stepName"] != "Slide" {
		t.Fatalf("expected scalar single-key payload unchanged, got %v", got)
	}
}
