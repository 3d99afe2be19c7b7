// Package agent implements the lead scoring stages: ICP fit, research brief,
// priority tier, and next action. Each agent reads the lead context, calls the
// text generator when its deterministic rules do not decide, and stores its
// typed result back on the context.
package agent

import (
	"bytes"
	"embed"
	"text/template"

	"github.com/rotisserie/eris"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

var prompts = template.Must(template.ParseFS(promptFS, "prompts/*.tmpl"))

func renderPrompt(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := prompts.ExecuteTemplate(&buf, name, data); err != nil {
		return "", eris.Wrapf(err, "agent: render prompt %s", name)
	}
	return buf.String(), nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
