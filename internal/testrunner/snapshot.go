package testrunner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SnapshotOptions controls where golden files live and whether a mismatch
// rewrites them instead of failing. Only the text-format comparison the
// pretty-printed IR output actually needs is kept; the teacher's json/binary
// format variants and its separate golden-file/report/cleanup API surface
// have no caller in this module and were dropped.
type SnapshotOptions struct {
	BaseDir string
	Update  bool
}

// DefaultSnapshotOptions returns default snapshot configuration.
func DefaultSnapshotOptions() SnapshotOptions {
	return SnapshotOptions{BaseDir: "testdata/snapshots"}
}

// SnapshotManager compares a test's actual output against a stored golden
// file, one .snap file per test name.
type SnapshotManager struct {
	options SnapshotOptions
}

// NewSnapshotManager creates a snapshot manager rooted at options.BaseDir.
func NewSnapshotManager(options SnapshotOptions) *SnapshotManager {
	if strings.TrimSpace(options.BaseDir) == "" {
		options.BaseDir = "testdata/snapshots"
	}
	return &SnapshotManager{options: options}
}

// VerifySnapshot checks actual against the stored snapshot for testName. In
// Update mode, a missing or mismatching snapshot is (re)written and treated
// as a pass, matching the teacher's -update-snapshots convention.
func (sm *SnapshotManager) VerifySnapshot(testName, actual string) (bool, error) {
	path := sm.path(testName)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("create snapshot directory: %w", err)
	}

	expected, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		if !sm.options.Update {
			return false, fmt.Errorf("snapshot %s does not exist; rerun with Update to create it", path)
		}
		return true, sm.write(path, actual)
	case err != nil:
		return false, fmt.Errorf("read snapshot %s: %w", path, err)
	}

	if string(expected) == actual {
		return true, nil
	}
	if sm.options.Update {
		return true, sm.write(path, actual)
	}
	return false, fmt.Errorf("snapshot mismatch for %s:\n%s", testName, diffLines(string(expected), actual))
}

func (sm *SnapshotManager) write(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}

// path derives the on-disk snapshot path for a test name, sanitizing path
// separators so subtest names (which contain "/") stay a single file.
func (sm *SnapshotManager) path(testName string) string {
	safe := strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(testName)
	return filepath.Join(sm.options.BaseDir, safe+".snap")
}

// diffLines renders a minimal line-by-line diff for a snapshot mismatch
// error message.
func diffLines(expected, actual string) string {
	expectedLines := strings.Split(expected, "\n")
	actualLines := strings.Split(actual, "\n")

	max := len(expectedLines)
	if len(actualLines) > max {
		max = len(actualLines)
	}

	var out strings.Builder
	for i := 0; i < max; i++ {
		var e, a string
		if i < len(expectedLines) {
			e = expectedLines[i]
		}
		if i < len(actualLines) {
			a = actualLines[i]
		}
		if e != a {
			fmt.Fprintf(&out, "line %d:\n- %s\n+ %s\n", i+1, e, a)
		}
	}
	return out.String()
}
