package skill

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromPath_PrefersTOMLOverMarkdown(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "SKILL.toml"), "name = \"weather\"\ndescription = \"fetches forecasts\"\n")
	writeFile(t, filepath.Join(dir, "SKILL.md"), "# legacy\n\nold description\n")

	sk, err := loadFromPath(dir)
	if err != nil {
		t.Fatalf("loadFromPath: %v", err)
	}
	if sk.Name != "weather" || sk.Description != "fetches forecasts" {
		t.Fatalf("expected TOML manifest to win, got %+v", sk)
	}
}

func TestLoadFromPath_FallsBackToMarkdown(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "SKILL.md"), "# notes\n\ntakes meeting notes\n\nbody text")

	sk, err := loadFromPath(dir)
	if err != nil {
		t.Fatalf("loadFromPath: %v", err)
	}
	if sk.Name != "notes" || sk.Description != "takes meeting notes" {
		t.Fatalf("unexpected skill from markdown fallback: %+v", sk)
	}
}

func TestLoadFromPath_MissingManifestErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := loadFromPath(dir); err == nil {
		t.Fatal("expected error for directory with no manifest")
	}
}

func TestWriteTOML_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	sk := &Skill{Name: "echo", Description: "repeats input", Tools: []string{"bash"}}
	if err := writeTOML(dir, sk); err != nil {
		t.Fatalf("writeTOML: %v", err)
	}

	loaded, err := loadFromPath(dir)
	if err != nil {
		t.Fatalf("loadFromPath after write: %v", err)
	}
	if loaded.Name != sk.Name || loaded.Description != sk.Description {
		t.Fatalf("round trip mismatch: got %+v", loaded)
	}
	if len(loaded.Tools) != 1 || loaded.Tools[0] != "bash" {
		t.Fatalf("expected tools to round trip, got %+v", loaded.Tools)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
