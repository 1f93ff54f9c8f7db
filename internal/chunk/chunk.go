// Package chunk splits source text into ordered, bounded units of work.
package chunk

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// DefaultBoundaries are the sentence terminators used when none are configured.
// The danda (।) ends sentences in Devanagari text.
const DefaultBoundaries = ".!?।"

// FingerprintLen is the number of hex characters kept from the digest.
const FingerprintLen = 8

// Unit is one bounded piece of source text.
// Numbers are 1-based and dense within a job.
type Unit struct {
	Number      int    `json:"number"`
	Text        string `json:"text"`
	Fingerprint string `json:"fingerprint"`
}

// Len returns the unit length in characters.
func (u Unit) Len() int {
	return len([]rune(u.Text))
}

// Fingerprint returns a short content hash of text.
// It detects accidental changes, not tampering.
func Fingerprint(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])[:FingerprintLen]
}

// SourceFingerprint identifies the full input text of a job.
func SourceFingerprint(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Splitter cuts text at sentence boundaries and packs sentences greedily
// into units of at most MaxSize characters.
type Splitter struct {
	MaxSize    int
	Boundaries string
}

// Split is shorthand for a Splitter with the default boundaries.
func Split(text string, maxSize int) []Unit {
	return Splitter{MaxSize: maxSize}.Split(text)
}

// Split returns the ordered units for text. Empty or whitespace-only input
// yields no units. A sentence longer than MaxSize becomes its own unit and
// is never cut mid-sentence.
func (s Splitter) Split(text string) []Unit {
	boundaries := s.Boundaries
	if boundaries == "" {
		boundaries = DefaultBoundaries
	}

	var (
		units   []Unit
		current strings.Builder
		curLen  int
	)
	flush := func() {
		t := strings.TrimSpace(current.String())
		current.Reset()
		curLen = 0
		if t == "" {
			return
		}
		units = append(units, Unit{
			Number:      len(units) + 1,
			Text:        t,
			Fingerprint: Fingerprint(t),
		})
	}

	for _, sentence := range sentences(text, boundaries) {
		n := len([]rune(sentence))
		if curLen > 0 && curLen+n > s.MaxSize {
			flush()
		}
		current.WriteString(sentence)
		curLen += n
	}
	flush()

	return units
}

// sentences splits text into spans that each end with a terminator run
// (plus any closing quotes or brackets). Text after the last terminator is
// returned as a final span. Concatenating the spans reproduces text.
func sentences(text string, boundaries string) []string {
	runes := []rune(text)
	var out []string
	start := 0

	for i := 0; i < len(runes); i++ {
		if !strings.ContainsRune(boundaries, runes[i]) {
			continue
		}
		if runes[i] == '.' && isDecimalPoint(runes, i) {
			continue
		}

		end := i + 1
		for end < len(runes) && strings.ContainsRune(boundaries, runes[end]) {
			end++
		}
		for end < len(runes) && isClosingPunctuation(runes[end]) {
			end++
		}
		out = append(out, string(runes[start:end]))
		start = end
		i = end - 1
	}

	if start < len(runes) {
		out = append(out, string(runes[start:]))
	}
	return out
}

func isDecimalPoint(runes []rune, idx int) bool {
	return idx > 0 && idx+1 < len(runes) && unicode.IsDigit(runes[idx-1]) && unicode.IsDigit(runes[idx+1])
}

func isClosingPunctuation(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '}', '”', '’', '»':
		return true
	default:
		return false
	}
}
