package quality

import (
	"slices"
	"strings"
	"testing"
)

func newTestGate(t *testing.T) *Gate {
	t.Helper()
	g, err := NewGate(Config{
		MinLengthRatio: 0.3,
		RefusalPhrases: []string{"I cannot", "I apologize"},
		TargetScript:   "Devanagari",
	})
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}
	return g
}

func TestGate_Assess(t *testing.T) {
	g := newTestGate(t)
	source := "The king went to the forest with his brother and his wife."

	tests := []struct {
		name      string
		generated string
		want      []string
	}{
		{"good output", "राजा अपने भाई और पत्नी के साथ वन को गए।", nil},
		{"empty", "   ", []string{ReasonEmpty}},
		{"too short", "राजा।", []string{ReasonTooShort}},
		{"refusal", "I cannot translate this, but here: राजा अपने भाई के साथ वन गए।", []string{ReasonRefusal}},
		{"refusal case-insensitive", "i APOLOGIZE, राजा अपने भाई के साथ वन को गए।", []string{ReasonRefusal}},
		{"wrong script", "The king went to the forest with his brother.", []string{ReasonMissingScript}},
		{"short refusal in wrong script", "I cannot.", []string{ReasonTooShort, ReasonRefusal, ReasonMissingScript}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := g.Assess(source, tt.generated)
			if !slices.Equal(a.Reasons, tt.want) {
				t.Errorf("reasons = %v, want %v", a.Reasons, tt.want)
			}
			if a.Acceptable != (len(tt.want) == 0) {
				t.Errorf("acceptable = %v with reasons %v", a.Acceptable, a.Reasons)
			}
		})
	}
}

func TestGate_DisabledChecks(t *testing.T) {
	g, err := NewGate(Config{})
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}
	a := g.Assess(strings.Repeat("long source ", 50), "x")
	if !a.Acceptable {
		t.Errorf("expected acceptable with checks disabled, got %v", a.Reasons)
	}
	if a := g.Assess("src", ""); a.Acceptable {
		t.Error("empty output must always be flagged")
	}
}

func TestNewGate_UnknownScript(t *testing.T) {
	if _, err := NewGate(Config{TargetScript: "Elvish"}); err == nil {
		t.Fatal("expected error for unknown script")
	}
}
