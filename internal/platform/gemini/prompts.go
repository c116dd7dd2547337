package gemini

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

var prompts = template.Must(template.ParseFS(promptFS, "prompts/*.tmpl"))

// Template names
const (
	questionsTemplate   = "questions.tmpl"
	hierarchyTemplate   = "hierarchy.tmpl"
	distractorsTemplate = "distractors.tmpl"
)

type questionsPrompt struct {
	Content string
	Max     int
}

type hierarchyPrompt struct {
	Topic string
}

type distractorsPrompt struct {
	Question string
	Answer   string
	Count    int
}

// renderPrompt executes the named template with data.
func renderPrompt(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := prompts.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to execute prompt template %s: %w", name, err)
	}
	return buf.String(), nil
}
