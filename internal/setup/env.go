package setup

import (
	"errors"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"

	"github.com/whassan99/Notion-AI-CRM-Agents/internal/config"
)

// Keys the wizard prompts for.
const (
	KeyNotionAPIKey     = "NOTION_API_KEY"
	KeyNotionDatabaseID = "NOTION_DATABASE_ID"
	KeyClaudeAPIKey     = "CLAUDE_API_KEY"
	KeyClaudeModel      = "CLAUDE_MODEL"
)

// orderedKeys lead the written file; everything else follows sorted.
var orderedKeys = []string{KeyNotionAPIKey, KeyNotionDatabaseID, KeyClaudeAPIKey, KeyClaudeModel}

// ReadEnv loads an existing .env file. A missing file yields an empty map.
func ReadEnv(path string) (map[string]string, error) {
	values, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "setup: read %s", path)
	}
	return values, nil
}

// FormatEnvValue quotes values containing a space, '#' or '"'.
func FormatEnvValue(v string) string {
	if !strings.ContainsAny(v, " #\"") {
		return v
	}
	return `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
}

// RenderEnv renders values as .env lines with the wizard keys first.
func RenderEnv(values map[string]string) string {
	known := make(map[string]bool, len(orderedKeys))
	for _, k := range orderedKeys {
		known[k] = true
	}
	extra := make([]string, 0, len(values))
	for k := range values {
		if !known[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)

	var b strings.Builder
	for _, k := range append(append([]string{}, orderedKeys...), extra...) {
		v, ok := values[k]
		if !ok {
			continue
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(FormatEnvValue(v))
		b.WriteByte('\n')
	}
	return b.String()
}

// WriteEnv writes values to path, readable only by the owner.
func WriteEnv(path string, values map[string]string) error {
	if err := os.WriteFile(path, []byte(RenderEnv(values)), 0o600); err != nil {
		return eris.Wrapf(err, "setup: write %s", path)
	}
	return nil
}

// Warnings flags credential values whose shape looks wrong. They are advisory;
// the user may continue anyway.
func Warnings(values map[string]string) []string {
	var out []string
	if v := values[KeyNotionAPIKey]; v != "" && !config.ValidNotionKey(v) {
		out = append(out, "NOTION_API_KEY does not match expected prefix (secret_ or ntn_).")
	}
	if v := values[KeyNotionDatabaseID]; v != "" && !config.ValidDatabaseID(v) {
		out = append(out, "NOTION_DATABASE_ID should be 32 hex characters (dashes optional).")
	}
	if v := values[KeyClaudeAPIKey]; v != "" && !config.ValidClaudeKey(v) {
		out = append(out, "CLAUDE_API_KEY does not match expected prefix (sk-ant-).")
	}
	return out
}
