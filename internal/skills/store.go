package skills

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/haasonsaas/graphloom/pkg/models"
)

// ErrSkillNotFound indicates no persisted skill under the requested name.
var ErrSkillNotFound = errors.New("skill not found")

// injectDir is the sandbox-relative directory skills are injected into.
const injectDir = ".claude/skills"

// Store persists learned skills in a directory tree, one slug-named
// subdirectory per skill holding SKILL.md and, for code-mode skills, the
// cached script.
type Store struct {
	dir    string
	logger *slog.Logger
}

// NewStore creates a skill store rooted at dir.
func NewStore(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{dir: dir, logger: logger}
}

// Persist writes the skill's memo and optional script, replacing any
// previous version under the same slug.
func (s *Store) Persist(skill models.LearnedSkill) error {
	slug := Slug(skill.Name)
	if slug == "" {
		return fmt.Errorf("skill name %q yields an empty slug", skill.Name)
	}

	payload, err := Render(skill)
	if err != nil {
		return err
	}

	dir := filepath.Join(s.dir, slug)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create skill directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, SkillFilename), payload, 0o644); err != nil {
		return fmt.Errorf("write skill memo: %w", err)
	}

	scriptPath := filepath.Join(dir, ScriptFilename)
	if skill.Script != "" {
		if err := os.WriteFile(scriptPath, []byte(skill.Script), 0o644); err != nil {
			return fmt.Errorf("write skill script: %w", err)
		}
	} else if err := os.Remove(scriptPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove stale skill script: %w", err)
	}

	s.logger.Info("persisted learned skill", "skill", skill.Name, "slug", slug, "has_script", skill.Script != "")
	return nil
}

// Load reads a persisted skill by name, script included.
func (s *Store) Load(name string) (*models.LearnedSkill, error) {
	slug := Slug(name)
	dir := filepath.Join(s.dir, slug)

	payload, err := os.ReadFile(filepath.Join(dir, SkillFilename))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSkillNotFound, name)
		}
		return nil, fmt.Errorf("read skill memo: %w", err)
	}
	skill, err := Parse(payload)
	if err != nil {
		return nil, err
	}

	script, err := os.ReadFile(filepath.Join(dir, ScriptFilename))
	if err == nil {
		skill.Script = string(script)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read skill script: %w", err)
	}
	return skill, nil
}

// Inject delegates to the package-level Inject with the store's logger.
func (s *Store) Inject(workDir string, skill *models.LearnedSkill, currentHash string) (bool, error) {
	return Inject(workDir, skill, currentHash, s.logger)
}

// Inject writes a skill's assets into a sandbox: the memo under
// .claude/skills/<slug>/SKILL.md and the cached script at ./transform.py.
// It reports whether the skill's schema hash differs from currentHash;
// drifted assets are injected anyway and the agent is expected to adapt
// them under the ordinary validate-retry loop.
func Inject(workDir string, skill *models.LearnedSkill, currentHash string, logger *slog.Logger) (bool, error) {
	if logger == nil {
		logger = slog.Default()
	}
	slug := Slug(skill.Name)
	if slug == "" {
		return false, fmt.Errorf("skill name %q yields an empty slug", skill.Name)
	}

	dir := filepath.Join(workDir, injectDir, slug)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, fmt.Errorf("create skill inject directory: %w", err)
	}
	payload, err := Render(*skill)
	if err != nil {
		return false, err
	}
	if err := os.WriteFile(filepath.Join(dir, SkillFilename), payload, 0o644); err != nil {
		return false, fmt.Errorf("inject skill memo: %w", err)
	}
	if skill.Script != "" {
		if err := os.WriteFile(filepath.Join(workDir, ScriptFilename), []byte(skill.Script), 0o644); err != nil {
			return false, fmt.Errorf("inject skill script: %w", err)
		}
	}

	drifted := skill.SchemaHash != "" && currentHash != "" && skill.SchemaHash != currentHash
	if drifted {
		logger.Warn("injected skill was learned under a different schema",
			"skill", skill.Name, "skill_hash", skill.SchemaHash, "current_hash", currentHash)
	}
	return drifted, nil
}
