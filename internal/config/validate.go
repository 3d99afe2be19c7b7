package config

import (
	"encoding/hex"
	"errors"
	"io/fs"
	"strings"

	"github.com/rotisserie/eris"
)

// Validate checks credential shapes before any processing starts. All
// problems are reported together, each with a hint on how to fix it.
// requireNotion is false for dry runs, which never touch Notion.
func (c *Config) Validate(requireNotion bool) error {
	var problems []string

	switch {
	case c.Anthropic.Key == "":
		problems = append(problems, "CLAUDE_API_KEY is missing.\n"+
			"  Get one at: https://console.anthropic.com/settings/keys")
	case !ValidClaudeKey(c.Anthropic.Key):
		problems = append(problems, "CLAUDE_API_KEY doesn't look right (should start with 'sk-ant-').\n"+
			"  Check: https://console.anthropic.com/settings/keys")
	}

	if requireNotion {
		switch {
		case c.Notion.Token == "":
			problems = append(problems, "NOTION_API_KEY is missing.\n"+
				"  Create an integration at: https://www.notion.so/my-integrations")
		case !ValidNotionKey(c.Notion.Token):
			problems = append(problems, "NOTION_API_KEY doesn't look right (should start with 'secret_' or 'ntn_').\n"+
				"  Check: https://www.notion.so/my-integrations")
		}

		switch {
		case c.Notion.DatabaseID == "":
			problems = append(problems, "NOTION_DATABASE_ID is missing.\n"+
				"  Find it in your Notion database URL:\n"+
				"  https://notion.so/workspace/[DATABASE_ID]?v=...")
		case !ValidDatabaseID(c.Notion.DatabaseID):
			problems = append(problems, "NOTION_DATABASE_ID doesn't look right (should be 32 hex characters).\n"+
				"  Find it in your Notion database URL:\n"+
				"  https://notion.so/workspace/[DATABASE_ID]?v=...")
		}
	}

	if len(problems) > 0 {
		return eris.New(strings.Join(problems, "\n\n"))
	}
	return nil
}

// ValidClaudeKey reports whether key has the Anthropic key prefix.
func ValidClaudeKey(key string) bool {
	return strings.HasPrefix(key, "sk-ant-")
}

// ValidNotionKey reports whether key has a Notion integration token prefix.
func ValidNotionKey(key string) bool {
	return strings.HasPrefix(key, "secret_") || strings.HasPrefix(key, "ntn_")
}

// ValidDatabaseID reports whether id is 32 hex characters once dashes are removed.
func ValidDatabaseID(id string) bool {
	raw := strings.ReplaceAll(id, "-", "")
	if len(raw) != 32 {
		return false
	}
	_, err := hex.DecodeString(raw)
	return err == nil
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
