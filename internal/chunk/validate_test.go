package chunk

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		extra   string
		ok      bool
		reasons int
	}{
		{"period", "A sentence.", "", true, 0},
		{"danda", "एक वाक्य।", "", true, 0},
		{"closing paren", "An aside (really)", "", true, 0},
		{"closing quote", `He said "go."`, "", true, 0},
		{"trailing space ignored", "Done!  \n", "", true, 0},
		{"no terminal", "Half a thought", "", false, 1},
		{"extra terminator", "終わり。", "。", true, 0},
		{"odd quotes", `He said "go.`, "", false, 1},
		{"unbalanced parens", "An (aside.", "", false, 1},
		{"everything wrong", `An "(aside`, "", false, 3},
		{"empty", "   ", "", false, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Validate(Unit{Number: 1, Text: tt.text}, tt.extra)
			if v.OK != tt.ok {
				t.Errorf("OK = %v, want %v (reasons %v)", v.OK, tt.ok, v.Reasons)
			}
			if len(v.Reasons) != tt.reasons {
				t.Errorf("got %d reasons %v, want %d", len(v.Reasons), v.Reasons, tt.reasons)
			}
		})
	}
}

func TestLogValidation(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	units := []Unit{
		{Number: 1, Text: "Fine."},
		{Number: 2, Text: "Broken (one"},
		{Number: 3, Text: "Also fine!"},
	}
	if n := LogValidation(logger, units, ""); n != 1 {
		t.Fatalf("expected 1 flagged unit, got %d", n)
	}

	out := buf.String()
	if strings.Count(out, "unit failed structural validation") != 1 {
		t.Errorf("expected one warning per flagged unit, got:\n%s", out)
	}
	if !strings.Contains(out, "unit=2") {
		t.Errorf("expected unit number in log, got:\n%s", out)
	}
}
