package prompts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestExtractVariables(t *testing.T) {
	got := ExtractVariables("unit {{.Number}} of {{ .Total }}: {{.Text}} {{.Number}}")
	want := []string{"Number", "Text", "Total"}
	if len(got) != len(want) {
		t.Fatalf("ExtractVariables() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ExtractVariables()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestHashText(t *testing.T) {
	if HashText("a") == HashText("b") {
		t.Error("different text should hash differently")
	}
	if len(HashText("a")) != 64 {
		t.Errorf("hash length = %d, want 64", len(HashText("a")))
	}
}

func TestBuilder_Embedded(t *testing.T) {
	b := NewBuilder()
	if b.IsOverride() {
		t.Error("embedded builder should not be an override")
	}

	r, err := b.Build(Data{Text: "Hello there.", Number: 3, Total: 9, TargetLanguage: "Hindi"})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	for _, want := range []string{"Hello there.", "unit 3 of 9", "Hindi"} {
		if !strings.Contains(r.Prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, r.Prompt)
		}
	}
	if r.System == "" {
		t.Error("system prompt should not be empty")
	}
	if r.Hash != b.Hash() || r.Hash != HashText(translateTmpl) {
		t.Error("rendered hash should match the embedded template hash")
	}
	if r.Key != TranslatePromptKey {
		t.Errorf("Key = %q, want %q", r.Key, TranslatePromptKey)
	}
}

func TestBuilder_Override(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompt.tmpl")
	text := "Translate to {{.TargetLanguage}} ({{.Number}}/{{.Total}}):\n{{.Text}}"
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}

	b, err := NewBuilderFromFile(path)
	if err != nil {
		t.Fatalf("NewBuilderFromFile() error = %v", err)
	}
	if !b.IsOverride() {
		t.Error("file builder should be an override")
	}
	r, err := b.Build(Data{Text: "abc", Number: 1, Total: 2, TargetLanguage: "Tamil"})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if r.Prompt != "Translate to Tamil (1/2):\nabc" {
		t.Errorf("Prompt = %q", r.Prompt)
	}
	if r.Hash != HashText(text) {
		t.Error("override hash should be the hash of the override text")
	}
}

func TestNewBuilderFromFile_EmptyPath(t *testing.T) {
	b, err := NewBuilderFromFile("")
	if err != nil {
		t.Fatalf("NewBuilderFromFile(\"\") error = %v", err)
	}
	if b.IsOverride() {
		t.Error("empty path should use the embedded template")
	}
}

func TestNewBuilderFromText_Invalid(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty", "   "},
		{"no text variable", "Translate unit {{.Number}}"},
		{"unknown variable", "{{.Text}} {{.Book}}"},
		{"parse error", "{{.Text}} {{if}}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewBuilderFromText(tt.text); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNewBuilderFromFile_Missing(t *testing.T) {
	if _, err := NewBuilderFromFile(filepath.Join(t.TempDir(), "nope.tmpl")); err == nil {
		t.Error("expected error for missing file")
	}
}
