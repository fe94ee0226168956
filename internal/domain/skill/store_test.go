package skill

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	return New(dir, nil, zap.NewNop()), dir
}

func TestStore_CreateReadList(t *testing.T) {
	s, _ := newTestStore(t)

	created, err := s.Create(Skill{Name: "weather", Description: "forecasts"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !created.Enabled {
		t.Fatal("expected newly created skill to be enabled by default")
	}

	got, err := s.Read("weather")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Description != "forecasts" {
		t.Fatalf("unexpected description: %q", got.Description)
	}

	if len(s.List()) != 1 {
		t.Fatalf("expected 1 skill, got %d", len(s.List()))
	}
}

func TestStore_CreateRejectsDuplicate(t *testing.T) {
	s, _ := newTestStore(t)
	if _, err := s.Create(Skill{Name: "dup"}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := s.Create(Skill{Name: "dup"}); err == nil {
		t.Fatal("expected error creating a second skill with the same name")
	}
}

func TestStore_CreateRejectsInvalidName(t *testing.T) {
	s, _ := newTestStore(t)
	if _, err := s.Create(Skill{Name: "../escape"}); err == nil {
		t.Fatal("expected error for path-escaping skill name")
	}
}

func TestStore_CreateRejectsReservedName(t *testing.T) {
	s, _ := newTestStore(t)
	if _, err := s.Create(Skill{Name: "skill_manage"}); err == nil {
		t.Fatal("expected error creating a skill with a reserved name")
	}
}

func TestStore_UpdatePersistsAndMarksDirty(t *testing.T) {
	s, _ := newTestStore(t)
	if _, err := s.Create(Skill{Name: "notes", Description: "v1"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	s.ClearDirty()

	updated, err := s.Update("notes", func(sk *Skill) { sk.Description = "v2" })
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Description != "v2" {
		t.Fatalf("expected updated description, got %q", updated.Description)
	}
	if !s.Dirty() {
		t.Fatal("expected store to be marked dirty after Update")
	}

	reread, err := loadFromPath(updated.Path)
	if err != nil {
		t.Fatalf("reloading from disk: %v", err)
	}
	if reread.Description != "v2" {
		t.Fatalf("update did not persist to disk: %+v", reread)
	}
}

func TestStore_DeleteRemovesDirectoryAndEntry(t *testing.T) {
	s, _ := newTestStore(t)
	created, err := s.Create(Skill{Name: "temp"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := s.Delete("temp"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := s.Get("temp"); ok {
		t.Fatal("expected skill to be gone from the store after Delete")
	}
	if _, err := os.Stat(created.Path); !os.IsNotExist(err) {
		t.Fatal("expected skill directory to be removed from disk")
	}
}

func TestStore_EnableDisable(t *testing.T) {
	s, _ := newTestStore(t)
	if _, err := s.Create(Skill{Name: "togglable"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := s.Disable("togglable"); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	if len(s.Enabled()) != 0 {
		t.Fatal("expected no enabled skills after Disable")
	}

	if err := s.Enable("togglable"); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if len(s.Enabled()) != 1 {
		t.Fatal("expected 1 enabled skill after Enable")
	}
}

func TestStore_DirtyClearedAfterConsumption(t *testing.T) {
	s, _ := newTestStore(t)
	if _, err := s.Create(Skill{Name: "a"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !s.Dirty() {
		t.Fatal("expected store to be dirty right after Create")
	}
	s.ClearDirty()
	if s.Dirty() {
		t.Fatal("expected Dirty to be false after ClearDirty")
	}
}

func TestNew_BootstrapsFromExistingDirectory(t *testing.T) {
	dir := t.TempDir()
	skillDir := filepath.Join(dir, "greeter")
	if err := os.MkdirAll(skillDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(skillDir, "SKILL.toml"), []byte("name = \"greeter\"\ndescription = \"says hi\"\n"), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	s := New(dir, nil, zap.NewNop())
	sk, ok := s.Get("greeter")
	if !ok {
		t.Fatal("expected bootstrap scan to discover existing skill")
	}
	if sk.Description != "says hi" {
		t.Fatalf("unexpected description: %q", sk.Description)
	}
}
