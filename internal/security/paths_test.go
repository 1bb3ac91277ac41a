package security

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePathWithinDirectory(t *testing.T) {
	tmpDir := t.TempDir()

	safeDir := filepath.Join(tmpDir, "safe")
	unsafeDir := filepath.Join(tmpDir, "unsafe")
	require.NoError(t, os.MkdirAll(safeDir, 0755))
	require.NoError(t, os.MkdirAll(unsafeDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(unsafeDir, "secret.txt"), []byte("secret"), 0644))

	symlinkPath := filepath.Join(safeDir, "evil-symlink")
	require.NoError(t, os.Symlink(unsafeDir, symlinkPath))

	tests := []struct {
		name      string
		filePath  string
		safeDir   string
		wantError bool
	}{
		{"file inside", filepath.Join(safeDir, "warnings.json"), safeDir, false},
		{"nested missing dirs", filepath.Join(safeDir, "a", "b", "c.json"), safeDir, false},
		{"dot dot escape", filepath.Join(safeDir, "..", "x.json"), safeDir, true},
		{"relative escape", "../../../etc/passwd", safeDir, true},
		{"absolute outside", "/etc/passwd", safeDir, true},
		{"through symlink", filepath.Join(symlinkPath, "secret.txt"), safeDir, true},
		{"new file under symlink", filepath.Join(symlinkPath, "new.json"), safeDir, true},
		{"symlink itself", symlinkPath, safeDir, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinDirectory(tt.filePath, tt.safeDir)
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePathMissingSafeDir(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")
	assert.Error(t, ValidatePathWithinDirectory(filepath.Join(missing, "f.json"), missing))
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"warnings_export":   "warnings_export",
		"run 42/../x":       "run_42_.._x",
		"":                  "unknown",
		"...":               "unknown",
		"cảnh báo":          "c_nh_b_o",
		"__lead-and-trail_": "lead-and-trail",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeFilename(in), "input %q", in)
	}
}

func TestExportPath(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2026, 10, 19, 8, 5, 9, 0, time.UTC)

	path, err := ExportPath(dir, "warnings_export", at)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "warnings_export_20261019_080509.json"), path)

	path, err = ExportPath(dir, "../escape", at)
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))
}
