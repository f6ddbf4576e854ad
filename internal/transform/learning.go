package transform

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/haasonsaas/graphloom/internal/skills"
	"github.com/haasonsaas/graphloom/pkg/models"
)

// deriveSkill builds a learned-skill document from the agent's final text.
// In code mode the cached script is read from the sandbox.
func deriveSkill(name, instruction, finalText, sandboxRoot, schemaHash string, mode models.TransformMode, now time.Time) (*models.LearnedSkill, error) {
	memo := strings.TrimSpace(finalText)
	if memo == "" {
		memo = "Transformation completed without a closing summary. Original instruction:\n\n" + instruction
	}

	skill := &models.LearnedSkill{
		Name:        name,
		Description: firstLine(instruction),
		Memo:        memo,
		SchemaHash:  schemaHash,
		CreatedAt:   now,
	}

	if mode == models.ModeCode {
		script, err := os.ReadFile(filepath.Join(sandboxRoot, skills.ScriptFilename))
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("read learned script: %w", err)
			}
		} else {
			skill.Script = string(script)
		}
	}
	return skill, nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
