package skill

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// tomlManifest is the on-disk shape of SKILL.toml.
type tomlManifest struct {
	Name         string   `toml:"name"`
	Description  string   `toml:"description"`
	Version      string   `toml:"version"`
	Instructions string   `toml:"instructions"`
	Tools        []string `toml:"tools"`
	Prompts      []string `toml:"prompts"`
}

// loadFromPath loads a skill manifest from a skill directory, preferring
// SKILL.toml and falling back to the older SKILL.md header-convention
// format (first line "# Name", third line description) this codebase used
// before the manifest format existed.
func loadFromPath(path string) (*Skill, error) {
	tomlPath := filepath.Join(path, "SKILL.toml")
	if _, err := os.Stat(tomlPath); err == nil {
		return loadTOML(path, tomlPath)
	}

	mdPath := filepath.Join(path, "SKILL.md")
	if _, err := os.Stat(mdPath); err == nil {
		return loadMarkdown(path, mdPath)
	}

	return nil, fmt.Errorf("no SKILL.toml or SKILL.md in %s", path)
}

func loadTOML(dir, tomlPath string) (*Skill, error) {
	var m tomlManifest
	if _, err := toml.DecodeFile(tomlPath, &m); err != nil {
		return nil, fmt.Errorf("decode %s: %w", tomlPath, err)
	}
	name := m.Name
	if name == "" {
		name = filepath.Base(dir)
	}
	return &Skill{
		Name:         name,
		Description:  m.Description,
		Version:      m.Version,
		Instructions: m.Instructions,
		Tools:        m.Tools,
		Prompts:      m.Prompts,
		Path:         dir,
		Enabled:      true,
	}, nil
}

// loadMarkdown parses the legacy SKILL.md convention: "# Name" on the
// first line, description on the third line, everything after treated as
// free-form instructions.
func loadMarkdown(dir, mdPath string) (*Skill, error) {
	content, err := os.ReadFile(mdPath)
	if err != nil {
		return nil, err
	}

	name := filepath.Base(dir)
	description := ""
	lines := strings.Split(string(content), "\n")
	if len(lines) > 0 && len(lines[0]) > 2 && lines[0][0] == '#' {
		name = strings.TrimSpace(lines[0][1:])
	}
	if len(lines) > 2 {
		description = strings.TrimSpace(lines[2])
	}
	instructions := string(content)

	return &Skill{
		Name:         name,
		Description:  description,
		Instructions: instructions,
		Path:         dir,
		Enabled:      true,
	}, nil
}

// writeTOML persists a skill as SKILL.toml via write-then-rename.
func writeTOML(dir string, s *Skill) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create skill dir: %w", err)
	}
	m := tomlManifest{
		Name: s.Name, Description: s.Description, Version: s.Version,
		Instructions: s.Instructions, Tools: s.Tools, Prompts: s.Prompts,
	}
	path := filepath.Join(dir, "SKILL.toml")
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create temp manifest: %w", err)
	}
	enc := toml.NewEncoder(f)
	if err := enc.Encode(m); err != nil {
		f.Close()
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
