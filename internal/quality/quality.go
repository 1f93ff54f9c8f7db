// Package quality flags suspicious generated output without blocking it.
package quality

import (
	"fmt"
	"strings"
	"unicode"
)

// Reason codes recorded on flagged units.
const (
	ReasonEmpty         = "empty_output"
	ReasonTooShort      = "too_short"
	ReasonRefusal       = "refusal_phrase"
	ReasonMissingScript = "missing_target_script"
)

// Config tunes the gate. Zero values disable the corresponding check,
// except that empty output is always flagged.
type Config struct {
	// MinLengthRatio flags output shorter than this fraction of the source.
	MinLengthRatio float64
	// RefusalPhrases are matched case-insensitively anywhere in the output.
	RefusalPhrases []string
	// TargetScript is a key of unicode.Scripts, e.g. "Devanagari".
	TargetScript string
}

// Assessment is the gate's verdict on one unit.
type Assessment struct {
	Acceptable bool     `json:"acceptable"`
	Reasons    []string `json:"reasons,omitempty"`
}

// Gate applies heuristic checks to generated text.
type Gate struct {
	cfg    Config
	script *unicode.RangeTable
}

// NewGate creates a gate. An unknown TargetScript is an error.
func NewGate(cfg Config) (*Gate, error) {
	g := &Gate{cfg: cfg}
	if cfg.TargetScript != "" {
		table, ok := unicode.Scripts[cfg.TargetScript]
		if !ok {
			return nil, fmt.Errorf("unknown unicode script %q", cfg.TargetScript)
		}
		g.script = table
	}
	return g, nil
}

// Assess inspects generated output against its source. It never fails;
// the caller records the reasons and keeps the output.
func (g *Gate) Assess(source, generated string) Assessment {
	out := strings.TrimSpace(generated)
	if out == "" {
		return Assessment{Reasons: []string{ReasonEmpty}}
	}

	var reasons []string
	srcLen := len([]rune(strings.TrimSpace(source)))
	if g.cfg.MinLengthRatio > 0 && float64(len([]rune(out))) < g.cfg.MinLengthRatio*float64(srcLen) {
		reasons = append(reasons, ReasonTooShort)
	}

	lower := strings.ToLower(out)
	for _, phrase := range g.cfg.RefusalPhrases {
		if phrase != "" && strings.Contains(lower, strings.ToLower(phrase)) {
			reasons = append(reasons, ReasonRefusal)
			break
		}
	}

	if g.script != nil && !containsScript(out, g.script) {
		reasons = append(reasons, ReasonMissingScript)
	}

	return Assessment{Acceptable: len(reasons) == 0, Reasons: reasons}
}

func containsScript(s string, table *unicode.RangeTable) bool {
	for _, r := range s {
		if unicode.Is(table, r) {
			return true
		}
	}
	return false
}
