package skill

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Store is the SkillStore: an RwLock-guarded {skills, dirty} pair. dirty
// flips true on any mutation (install/uninstall/enable/disable/update) and
// on every rescan, which Watch runs when a skill directory's mtime changes
// (no stamp file is read); AgentEngine reads and
// clears it once per turn to decide whether its skill-derived system
// prompt section needs rebuilding.
type Store struct {
	mu       sync.RWMutex
	skills   map[string]*Skill
	dirty    bool
	dir      string
	reserved map[string]bool
	logger   *zap.Logger

	lastScan map[string]time.Time
}

// New creates a SkillStore rooted at dir and performs an initial scan.
// reserved overrides the built-in reserved-name denylist when non-nil
// (config Skills.ReservedNames).
func New(dir string, reserved []string, logger *zap.Logger) *Store {
	s := &Store{
		skills:   make(map[string]*Skill),
		dir:      dir,
		logger:   logger.With(zap.String("component", "skill-store")),
		lastScan: make(map[string]time.Time),
	}
	if reserved != nil {
		s.reserved = make(map[string]bool, len(reserved))
		for _, n := range reserved {
			s.reserved[n] = true
		}
	}
	s.scan()
	return s
}

// Dirty reports whether the skill set changed since the last ClearDirty.
func (s *Store) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

// ClearDirty resets the dirty flag; called after the agent engine has
// rebuilt its skill-derived prompt section.
func (s *Store) ClearDirty() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty = false
}

func (s *Store) markDirty() {
	s.dirty = true
}

// List returns all skills, enabled or not.
func (s *Store) List() []*Skill {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Skill, 0, len(s.skills))
	for _, sk := range s.skills {
		out = append(out, sk)
	}
	return out
}

// Enabled returns only enabled skills, the set the agent loop promotes
// into its system prompt / tool list.
func (s *Store) Enabled() []*Skill {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Skill, 0, len(s.skills))
	for _, sk := range s.skills {
		if sk.Enabled {
			out = append(out, sk)
		}
	}
	return out
}

// Get returns a skill by name.
func (s *Store) Get(name string) (*Skill, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sk, ok := s.skills[name]
	return sk, ok
}

// path returns the on-disk directory for a skill name, rejecting any name
// whose canonicalized path escapes the store root (e.g. "../etc").
func (s *Store) path(name string) (string, error) {
	p := filepath.Join(s.dir, name)
	rel, err := filepath.Rel(s.dir, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, "../") || filepath.IsAbs(rel) {
		return "", fmt.Errorf("skill path escapes store root: %s", name)
	}
	return p, nil
}

// Create validates, writes, and registers a new skill.
func (s *Store) Create(sk Skill) (*Skill, error) {
	if err := ValidateName(sk.Name, s.reserved); err != nil {
		return nil, err
	}
	dir, err := s.path(sk.Name)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if _, exists := s.skills[sk.Name]; exists {
		s.mu.Unlock()
		return nil, fmt.Errorf("skill %q already exists", sk.Name)
	}
	s.mu.Unlock()

	sk.Path = dir
	sk.Enabled = true
	sk.InstalledAt = time.Now()
	if err := writeTOML(dir, &sk); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.skills[sk.Name] = &sk
	s.markDirty()
	s.mu.Unlock()
	return &sk, nil
}

// Read returns the stored skill, erroring if absent.
func (s *Store) Read(name string) (*Skill, error) {
	sk, ok := s.Get(name)
	if !ok {
		return nil, fmt.Errorf("skill %q not found", name)
	}
	return sk, nil
}

// Update overwrites an existing skill's manifest fields.
func (s *Store) Update(name string, mutate func(*Skill)) (*Skill, error) {
	s.mu.Lock()
	sk, ok := s.skills[name]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("skill %q not found", name)
	}
	cp := *sk
	mutate(&cp)
	s.mu.Unlock()

	if err := writeTOML(cp.Path, &cp); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.skills[name] = &cp
	s.markDirty()
	s.mu.Unlock()
	return &cp, nil
}

// Delete removes a skill's directory and registration.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	sk, ok := s.skills[name]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("skill %q not found", name)
	}
	delete(s.skills, name)
	s.markDirty()
	s.mu.Unlock()

	return os.RemoveAll(sk.Path)
}

// Enable / Disable toggle a skill without touching its manifest file.
func (s *Store) Enable(name string) error  { return s.setEnabled(name, true) }
func (s *Store) Disable(name string) error { return s.setEnabled(name, false) }

func (s *Store) setEnabled(name string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sk, ok := s.skills[name]
	if !ok {
		return fmt.Errorf("skill %q not found", name)
	}
	sk.Enabled = enabled
	s.markDirty()
	return nil
}

// scan performs a full directory rescan, replacing the in-memory set.
// Malformed skill directories are logged and skipped.
func (s *Store) scan() {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return
	}

	found := make(map[string]*Skill)
	seen := make(map[string]time.Time)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(s.dir, e.Name())
		sk, err := loadFromPath(dir)
		if err != nil {
			s.logger.Warn("skipping malformed skill", zap.String("path", dir), zap.Error(err))
			continue
		}
		if err := ValidateName(sk.Name, s.reserved); err != nil {
			s.logger.Warn("skipping invalid skill", zap.String("path", dir), zap.Error(err))
			continue
		}
		sk.Enabled = true
		if info, err := e.Info(); err == nil {
			seen[dir] = info.ModTime()
		}
		found[sk.Name] = sk
	}

	s.mu.Lock()
	s.skills = found
	s.lastScan = seen
	s.markDirty()
	s.mu.Unlock()
}

// Rescan re-reads the skills directory from disk, preserving nothing from
// the in-memory state (an external editor is the source of truth once a
// rescan is requested). Used by the directory-mtime poller in Watch and by
// the skill_manage "reload" action.
func (s *Store) Rescan() {
	s.scan()
}

// changed reports whether any skill directory's mtime moved since the last
// scan, the trigger the poller uses to decide whether to call Rescan.
func (s *Store) changed() bool {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(entries) != len(s.lastScan) {
		return true
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		dir := filepath.Join(s.dir, e.Name())
		prev, ok := s.lastScan[dir]
		if !ok || info.ModTime().After(prev) {
			return true
		}
	}
	return false
}

// Watch polls for external changes to the skills directory until stop is
// closed, mirroring the mtime-stamp-polling convention the rest of this
// codebase uses for hot reload.
func (s *Store) Watch(stop <-chan struct{}, interval time.Duration) {
	if interval == 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if s.changed() {
				s.Rescan()
			}
		}
	}
}
