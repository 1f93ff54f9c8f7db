package chunk

import (
	"strings"
	"testing"
	"unicode"
)

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func joinUnits(units []Unit) string {
	parts := make([]string, len(units))
	for i, u := range units {
		parts[i] = u.Text
	}
	return strings.Join(parts, " ")
}

func TestSplit_Empty(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t\n"} {
		if units := Split(text, 100); len(units) != 0 {
			t.Errorf("Split(%q) = %d units, want 0", text, len(units))
		}
	}
}

func TestSplit_NoTerminators(t *testing.T) {
	text := "a long run of words with no sentence ending at all"
	units := Split(text, 10)
	if len(units) != 1 {
		t.Fatalf("expected 1 unit, got %d", len(units))
	}
	if units[0].Text != text {
		t.Errorf("unit text = %q", units[0].Text)
	}
}

func TestSplit_GreedyPacking(t *testing.T) {
	text := "One two. Three four. Five six. Seven eight."
	units := Split(text, 20)

	want := []string{"One two. Three four.", "Five six.", "Seven eight."}
	if len(units) != len(want) {
		t.Fatalf("expected %d units, got %d: %q", len(want), len(units), joinUnits(units))
	}
	for i, w := range want {
		if units[i].Text != w {
			t.Errorf("unit %d = %q, want %q", i+1, units[i].Text, w)
		}
	}
}

func TestSplit_OversizedSentenceKeptIntact(t *testing.T) {
	long := strings.Repeat("word ", 40) + "end."
	text := "Short one. " + long + " Tail."
	units := Split(text, 30)

	if len(units) != 3 {
		t.Fatalf("expected 3 units, got %d", len(units))
	}
	if units[1].Text != strings.TrimSpace(long) {
		t.Errorf("oversized sentence was altered: %q", units[1].Text)
	}
	if units[1].Len() <= 30 {
		t.Errorf("expected oversized unit, got len %d", units[1].Len())
	}
}

func TestSplit_Properties(t *testing.T) {
	texts := map[string]string{
		"english":    "It was a bright cold day in April. The clocks were striking thirteen! Who knew? Winston Smith slipped quickly through the glass doors.",
		"devanagari": "राम वन को गए। सीता उनके साथ थीं। लक्ष्मण भी गए। अयोध्या शोक में डूब गई।",
		"trailing":   "First sentence. Second sentence without an ending",
		"quotes":     `He said "stop." Then (quietly) he left. "Why?" she asked.`,
		"decimals":   "Pi is about 3.14 and e is 2.71. Both are irrational.",
		"no spaces":  "A.B.C.D.E.F.",
	}

	for name, text := range texts {
		for _, size := range []int{1, 10, 25, 60, 1000} {
			units := Split(text, size)

			if got, want := stripSpace(joinUnits(units)), stripSpace(text); got != want {
				t.Errorf("%s/%d: coverage mismatch\n got %q\nwant %q", name, size, got, want)
			}
			for i, u := range units {
				if u.Number != i+1 {
					t.Errorf("%s/%d: unit %d has number %d", name, size, i, u.Number)
				}
				if u.Fingerprint != Fingerprint(u.Text) || len(u.Fingerprint) != FingerprintLen {
					t.Errorf("%s/%d: bad fingerprint %q", name, size, u.Fingerprint)
				}
				if strings.TrimSpace(u.Text) != u.Text || u.Text == "" {
					t.Errorf("%s/%d: unit %d not trimmed: %q", name, size, u.Number, u.Text)
				}
			}
		}
	}
}

func TestSplit_UnitsWithinBoundUnlessSingleSentence(t *testing.T) {
	text := "Alpha beta gamma. Delta epsilon. Zeta eta theta iota. Kappa. Lambda mu nu xi omicron pi rho."
	const size = 25
	for _, u := range Split(text, size) {
		if u.Len() > size && len(sentences(u.Text, DefaultBoundaries)) > 1 {
			t.Errorf("unit %d exceeds %d chars with multiple sentences: %q", u.Number, size, u.Text)
		}
	}
}

func TestSplit_Devanagari(t *testing.T) {
	text := "राम वन को गए। सीता उनके साथ थीं।"
	units := Split(text, 14)
	if len(units) != 2 {
		t.Fatalf("expected 2 units, got %d", len(units))
	}
	if units[0].Text != "राम वन को गए।" {
		t.Errorf("unit 1 = %q", units[0].Text)
	}
}

func TestSplitter_CustomBoundaries(t *testing.T) {
	s := Splitter{MaxSize: 5, Boundaries: "。"}
	units := s.Split("今日は晴れ。明日は雨。")
	if len(units) != 2 {
		t.Fatalf("expected 2 units, got %d", len(units))
	}
	if units[1].Text != "明日は雨。" {
		t.Errorf("unit 2 = %q", units[1].Text)
	}

	// Default terminators are not used when custom ones are configured.
	if got := len(s.Split("One. Two. Three.")); got != 1 {
		t.Errorf("expected a single unit, got %d", got)
	}
}

func TestSentences_TerminatorRunsAndClosers(t *testing.T) {
	got := sentences(`Wait?! "Yes." (Fine.) ok`, DefaultBoundaries)
	want := []string{"Wait?!", ` "Yes."`, " (Fine.)", " ok"}
	if len(got) != len(want) {
		t.Fatalf("got %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("span %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("hello world")
	if a != Fingerprint("hello world") {
		t.Error("fingerprint should be stable")
	}
	if a == Fingerprint("hello world!") {
		t.Error("fingerprint should change with content")
	}
	// md5("hello world") = 5eb63bbbe01eeed093cb22bb8f5acdc3
	if a != "5eb63bbb" {
		t.Errorf("unexpected fingerprint %q", a)
	}
}

func TestSourceFingerprint(t *testing.T) {
	if SourceFingerprint("a") == SourceFingerprint("b") {
		t.Error("different sources should not collide")
	}
	if len(SourceFingerprint("")) != 64 {
		t.Errorf("expected a full sha256 hex digest")
	}
}
