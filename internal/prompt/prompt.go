// Package prompt renders the instruction given to a responder for one
// transcript dispatch.
package prompt

import (
	"fmt"
	"strings"
	"text/template"

	"intaked/internal/transcript"
)

// DefaultTemplate is the fixed instructional prompt embedding the file path.
// It directs the responder to read the full file, identify the latest human
// turn, and append a reply block terminated by the sentinel marker.
const DefaultTemplate = `Read the dialogue transcript at {{.Path}} in full.
Turns are separated by a line containing exactly "{{.TurnDelimiter}}".
Identify the latest human turn and compose a reply to it.
Append your reply to the end of the file as a new turn: a "{{.TurnDelimiter}}" line,
a "## Reply (<ISO8601 UTC timestamp>)" heading, the reply body, and finally a line
containing exactly "{{.Marker}}".
Do not modify or delete any existing content in the file.`

// Data is what templates may reference.
type Data struct {
	Path          string
	Marker        string
	TurnDelimiter string
	LatestTurn    string
}

// Renderer compiles one template once and renders it per dispatch.
type Renderer struct {
	template *template.Template
}

// NewRenderer compiles source, falling back to DefaultTemplate when source is
// blank.
func NewRenderer(source string) (*Renderer, error) {
	if strings.TrimSpace(source) == "" {
		source = DefaultTemplate
	}
	compiled, err := template.New("instruction").Option("missingkey=error").Parse(source)
	if err != nil {
		return nil, fmt.Errorf("parse prompt template: %w", err)
	}
	return &Renderer{template: compiled}, nil
}

// Render produces the instruction for one transcript path.
func (renderer *Renderer) Render(data Data) (string, error) {
	if renderer == nil || renderer.template == nil {
		return "", fmt.Errorf("prompt renderer is not initialized")
	}
	if data.Marker == "" {
		data.Marker = transcript.AwaitingMarker
	}
	if data.TurnDelimiter == "" {
		data.TurnDelimiter = transcript.TurnDelimiter
	}

	builder := strings.Builder{}
	if err := renderer.template.Execute(&builder, data); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return builder.String(), nil
}
