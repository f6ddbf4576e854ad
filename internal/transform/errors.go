package transform

import (
	"errors"
	"fmt"
	"strings"

	"github.com/haasonsaas/graphloom/pkg/models"
)

// ErrNoOutput indicates the agent terminated without producing the
// expected artifact.
var ErrNoOutput = errors.New("agent produced no output artifact")

// ConfigError reports an invalid run configuration. Raised before the
// agent is opened.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid transform config: %s: %s", e.Field, e.Reason)
}

// SandboxError reports an I/O failure materialising the sandbox. The
// sandbox is released and no manifest is produced.
type SandboxError struct {
	Op  string
	Err error
}

func (e *SandboxError) Error() string {
	return fmt.Sprintf("sandbox %s: %v", e.Op, e.Err)
}

func (e *SandboxError) Unwrap() error { return e.Err }

// AgentProtocolError reports that the agent exhausted its iterations or
// stopped without a passing validation. LastValidation carries the most
// recent validator outcome when one was observed.
type AgentProtocolError struct {
	Reason         string
	LastValidation *models.ValidationResult
	Err            error
}

func (e *AgentProtocolError) Error() string {
	msg := "agent protocol: " + e.Reason
	if e.LastValidation != nil && len(e.LastValidation.Errors) > 0 {
		msg += "; last validation: " + strings.Join(e.LastValidation.Errors, "; ")
	}
	return msg
}

func (e *AgentProtocolError) Unwrap() error { return e.Err }

// ValidationFailedError reports that the artifact exists but never passed
// structural validation.
type ValidationFailedError struct {
	Result *models.ValidationResult
}

func (e *ValidationFailedError) Error() string {
	if e.Result == nil || len(e.Result.Errors) == 0 {
		return "artifact failed validation"
	}
	return "artifact failed validation: " + strings.Join(e.Result.Errors, "; ")
}

// DomainError reports blocking issues from the final-gate domain
// validator. Warnings never appear here.
type DomainError struct {
	Issues []models.CustomValidationError
}

func (e *DomainError) Error() string {
	if len(e.Issues) == 0 {
		return "domain validation failed"
	}
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		parts = append(parts, fmt.Sprintf("%s: %s", issue.Path, issue.Message))
	}
	return "domain validation failed: " + strings.Join(parts, "; ")
}
