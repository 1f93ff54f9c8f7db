package chunk

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode"
)

// terminalMarks are accepted as the last character of a well-formed unit.
const terminalMarks = `.!?।)"':;”’`

// Validation is the advisory result of checking a unit's structure.
type Validation struct {
	OK      bool     `json:"ok"`
	Reasons []string `json:"reasons,omitempty"`
}

// Validate checks that a unit looks like complete prose: it ends with a
// terminal mark, double quotes are paired and parentheses balance.
// Extra terminators (e.g. configured boundaries) are also accepted as endings.
func Validate(u Unit, extraTerminators string) Validation {
	var reasons []string

	trimmed := strings.TrimRightFunc(u.Text, unicode.IsSpace)
	if trimmed == "" {
		reasons = append(reasons, "empty unit")
	} else {
		runes := []rune(trimmed)
		last := runes[len(runes)-1]
		if !strings.ContainsRune(terminalMarks, last) && !strings.ContainsRune(extraTerminators, last) {
			reasons = append(reasons, fmt.Sprintf("does not end with terminal punctuation (ends with %q)", last))
		}
	}

	if n := strings.Count(u.Text, `"`); n%2 != 0 {
		reasons = append(reasons, fmt.Sprintf("unbalanced double quotes (%d)", n))
	}
	if open, closed := strings.Count(u.Text, "("), strings.Count(u.Text, ")"); open != closed {
		reasons = append(reasons, fmt.Sprintf("unbalanced parentheses (%d open, %d close)", open, closed))
	}

	return Validation{OK: len(reasons) == 0, Reasons: reasons}
}

// LogValidation validates every unit and logs one warning per unit with
// issues, followed by a summary. It returns the number of flagged units.
func LogValidation(logger *slog.Logger, units []Unit, extraTerminators string) int {
	if logger == nil {
		logger = slog.Default()
	}
	flagged := 0
	for _, u := range units {
		v := Validate(u, extraTerminators)
		if v.OK {
			continue
		}
		flagged++
		logger.Warn("unit failed structural validation",
			"unit", u.Number,
			"fingerprint", u.Fingerprint,
			"reasons", strings.Join(v.Reasons, "; "))
	}
	if flagged > 0 {
		logger.Warn("structural validation summary", "flagged", flagged, "total", len(units))
	}
	return flagged
}
