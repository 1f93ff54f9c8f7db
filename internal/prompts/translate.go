package prompts

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"text/template"
)

//go:embed system.tmpl
var systemPrompt string

//go:embed translate.tmpl
var translateTmpl string

var translateTemplate = template.Must(template.New("translate").Option("missingkey=error").Parse(translateTmpl))

// Prompt keys
const (
	SystemPromptKey    = "translate.system"
	TranslatePromptKey = "translate.user"
)

// Data is the variable set available to a translation template.
type Data struct {
	Text           string
	Number         int
	Total          int
	TargetLanguage string
}

// Rendered is a prompt ready to send, along with the hash of the template it came from.
type Rendered struct {
	Key        string
	System     string
	Prompt     string
	Hash       string
	IsOverride bool
}

// Builder renders per-unit translation prompts from the embedded template or an override file.
type Builder struct {
	tmpl       *template.Template
	text       string
	hash       string
	isOverride bool
}

// NewBuilder returns a builder using the embedded template.
func NewBuilder() *Builder {
	return &Builder{
		tmpl: translateTemplate,
		text: translateTmpl,
		hash: HashText(translateTmpl),
	}
}

// NewBuilderFromFile parses an override template. An empty path falls back to the embedded default.
func NewBuilderFromFile(path string) (*Builder, error) {
	if path == "" {
		return NewBuilder(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt file: %w", err)
	}
	return NewBuilderFromText(string(raw))
}

// NewBuilderFromText parses text as an override template.
// The template must reference {{.Text}}, otherwise the unit would never reach the model.
func NewBuilderFromText(text string) (*Builder, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("prompt template is empty")
	}
	vars := ExtractVariables(text)
	if !contains(vars, "Text") {
		return nil, fmt.Errorf("prompt template must reference {{.Text}}")
	}
	for _, v := range vars {
		if !knownVariable(v) {
			return nil, fmt.Errorf("prompt template references unknown variable %q", v)
		}
	}
	tmpl, err := template.New("translate").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompt template: %w", err)
	}
	return &Builder{tmpl: tmpl, text: text, hash: HashText(text), isOverride: true}, nil
}

// Hash returns the SHA256 of the active template text.
func (b *Builder) Hash() string { return b.hash }

// Variables lists the variables the active template uses.
func (b *Builder) Variables() []string { return ExtractVariables(b.text) }

// IsOverride reports whether the builder uses an override template.
func (b *Builder) IsOverride() bool { return b.isOverride }

// Build renders the prompt for one unit.
func (b *Builder) Build(data Data) (Rendered, error) {
	var buf bytes.Buffer
	if err := b.tmpl.Execute(&buf, data); err != nil {
		return Rendered{}, fmt.Errorf("failed to render prompt for unit %d: %w", data.Number, err)
	}
	return Rendered{
		Key:        TranslatePromptKey,
		System:     SystemPrompt(),
		Prompt:     buf.String(),
		Hash:       b.hash,
		IsOverride: b.isOverride,
	}, nil
}

// SystemPrompt returns the system prompt sent with every unit.
func SystemPrompt() string {
	return strings.TrimSpace(systemPrompt)
}

func knownVariable(name string) bool {
	switch name {
	case "Text", "Number", "Total", "TargetLanguage":
		return true
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
