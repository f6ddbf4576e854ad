// Package skills persists and re-injects learned transformation skills.
// A skill is a SKILL.md memo with YAML frontmatter plus an optional cached
// transformation script.
package skills

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/haasonsaas/graphloom/pkg/models"
)

const (
	// SkillFilename is the expected filename for skill memos.
	SkillFilename = "SKILL.md"

	// ScriptFilename is the cached transformation script persisted next
	// to the memo.
	ScriptFilename = "transform.py"

	frontmatterDelimiter = "---"
)

type frontmatter struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	SchemaHash  string `yaml:"schema_hash,omitempty"`
	CreatedAt   string `yaml:"created_at,omitempty"`
}

// Slug converts a skill name into a stable directory slug: lowercase
// alphanumerics with hyphens.
func Slug(name string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// Render serialises a skill into SKILL.md content.
func Render(skill models.LearnedSkill) ([]byte, error) {
	if skill.Name == "" {
		return nil, fmt.Errorf("skill name is required")
	}
	fm := frontmatter{
		Name:        skill.Name,
		Description: skill.Description,
		SchemaHash:  skill.SchemaHash,
	}
	if !skill.CreatedAt.IsZero() {
		fm.CreatedAt = skill.CreatedAt.UTC().Format(time.RFC3339)
	}
	header, err := yaml.Marshal(fm)
	if err != nil {
		return nil, fmt.Errorf("encode frontmatter: %w", err)
	}

	var b bytes.Buffer
	b.WriteString(frontmatterDelimiter + "\n")
	b.Write(header)
	b.WriteString(frontmatterDelimiter + "\n\n")
	b.WriteString(strings.TrimSpace(skill.Memo))
	b.WriteString("\n")
	return b.Bytes(), nil
}

// Parse reads SKILL.md content back into a skill. The script body is not
// part of the memo and stays empty.
func Parse(data []byte) (*models.LearnedSkill, error) {
	header, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, err
	}

	var fm frontmatter
	if err := yaml.Unmarshal(header, &fm); err != nil {
		return nil, fmt.Errorf("parse frontmatter: %w", err)
	}
	if fm.Name == "" {
		return nil, fmt.Errorf("skill name is required")
	}

	skill := &models.LearnedSkill{
		Name:        fm.Name,
		Description: fm.Description,
		SchemaHash:  fm.SchemaHash,
		Memo:        strings.TrimSpace(string(body)),
	}
	if fm.CreatedAt != "" {
		if created, err := time.Parse(time.RFC3339, fm.CreatedAt); err == nil {
			skill.CreatedAt = created
		}
	}
	return skill, nil
}

func splitFrontmatter(data []byte) ([]byte, []byte, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))

	if !scanner.Scan() {
		return nil, nil, fmt.Errorf("empty skill file")
	}
	if strings.TrimSpace(scanner.Text()) != frontmatterDelimiter {
		return nil, nil, fmt.Errorf("missing opening frontmatter delimiter")
	}

	var headerLines []string
	foundClosing := false
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == frontmatterDelimiter {
			foundClosing = true
			break
		}
		headerLines = append(headerLines, line)
	}
	if !foundClosing {
		return nil, nil, fmt.Errorf("missing closing frontmatter delimiter")
	}

	var bodyLines []string
	for scanner.Scan() {
		bodyLines = append(bodyLines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("read skill file: %w", err)
	}

	return []byte(strings.Join(headerLines, "\n")), []byte(strings.Join(bodyLines, "\n")), nil
}
