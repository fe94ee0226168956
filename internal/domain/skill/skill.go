// Package skill implements the SkillStore: a hot-reloadable directory of
// agent-authored capabilities, each described by a SKILL.toml manifest (or a
// SKILL.md whose "# Name" first line and third-line description are read;
// YAML front-matter in SKILL.md is not parsed) and exposed to the agent loop
// through the skill_manage tool.
package skill

import (
	"fmt"
	"regexp"
	"time"
)

var nameRE = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// defaultReserved lists built-in tool names a skill may never shadow.
// Overridable via config (Skills.ReservedNames).
var defaultReserved = map[string]bool{
	"mcp_manage":   true,
	"skill_manage": true,
	"sub_agent":    true,
	"save_memory":  true,
	"update_plan":  true,
}

// Skill is one installed capability.
type Skill struct {
	Name         string
	Description  string
	Version      string
	Instructions string
	Tools        []string
	Prompts      []string
	Path         string
	Enabled      bool
	InstalledAt  time.Time
}

// ValidateName enforces the skill-name grammar and rejects reserved names.
func ValidateName(name string, reserved map[string]bool) error {
	if !nameRE.MatchString(name) {
		return fmt.Errorf("invalid skill name %q: must match ^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$", name)
	}
	if reserved == nil {
		reserved = defaultReserved
	}
	if reserved[name] {
		return fmt.Errorf("skill name %q is reserved", name)
	}
	return nil
}
