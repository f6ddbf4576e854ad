package transform

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// inputsDirName is the sandbox subdirectory inputs are copied into, which
// list_files enumerates by default.
const inputsDirName = "inputs"

// sandbox is the per-run scoped directory the agent operates in.
type sandbox struct {
	root string

	// owned is true when the orchestrator created the directory and must
	// remove it on every exit path.
	owned bool
}

// newSandbox materialises the sandbox: an existing directory when workDir
// is set, otherwise a fresh unique-prefix directory marked for cleanup.
func newSandbox(workDir string) (*sandbox, error) {
	if workDir != "" {
		abs, err := filepath.Abs(workDir)
		if err != nil {
			return nil, &SandboxError{Op: "resolve work dir", Err: err}
		}
		if err := os.MkdirAll(abs, 0o755); err != nil {
			return nil, &SandboxError{Op: "create work dir", Err: err}
		}
		return &sandbox{root: abs}, nil
	}

	root, err := os.MkdirTemp("", "graphloom-run-")
	if err != nil {
		return nil, &SandboxError{Op: "create work dir", Err: err}
	}
	return &sandbox{root: root, owned: true}, nil
}

// populate copies each input into the sandbox's inputs directory,
// preserving base names. Directories are copied recursively.
func (s *sandbox) populate(inputPaths []string) error {
	inputs := filepath.Join(s.root, inputsDirName)
	if err := os.MkdirAll(inputs, 0o755); err != nil {
		return &SandboxError{Op: "create inputs dir", Err: err}
	}

	for _, path := range inputPaths {
		info, err := os.Stat(path)
		if err != nil {
			return &SandboxError{Op: "stat input " + path, Err: err}
		}
		dst := filepath.Join(inputs, filepath.Base(path))
		if info.IsDir() {
			if err := copyDir(path, dst); err != nil {
				return &SandboxError{Op: "copy input " + path, Err: err}
			}
			continue
		}
		if err := copyFile(path, dst); err != nil {
			return &SandboxError{Op: "copy input " + path, Err: err}
		}
	}
	return nil
}

// cleanup removes the sandbox when the orchestrator owns it.
func (s *sandbox) cleanup() {
	if s.owned {
		os.RemoveAll(s.root)
	}
}

// artifactPath returns the sandbox-absolute artifact location for the
// given format extension.
func (s *sandbox) artifactPath(ext string) string {
	return filepath.Join(s.root, "output."+ext)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func copyDir(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if !info.Mode().IsRegular() {
			return fmt.Errorf("unsupported file type: %s", path)
		}
		return copyFile(path, target)
	})
}
