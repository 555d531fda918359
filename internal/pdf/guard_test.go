package pdf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGuard(t *testing.T) {
	_, err := NewGuard("", 1024)
	assert.Error(t, err)

	g, err := NewGuard("/drawings", 1024)
	require.NoError(t, err)
	assert.Equal(t, "/drawings", g.Root())
}

func TestGuard_Resolve(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "area-100"), 0o755))

	g, err := NewGuard(root, 1024)
	require.NoError(t, err)

	tests := []struct {
		name    string
		path    string
		want    string
		wantErr bool
	}{
		{"relative path", "area-100/sheet.pdf", filepath.Join(root, "area-100", "sheet.pdf"), false},
		{"absolute path inside", filepath.Join(root, "sheet.pdf"), filepath.Join(root, "sheet.pdf"), false},
		{"root itself", root, root, false},
		{"empty path", "", "", true},
		{"traversal", "../escape.pdf", "", true},
		{"absolute path outside", filepath.Join(outside, "x.pdf"), "", true},
		{"null bytes stripped", "sheet\x00.pdf", filepath.Join(root, "sheet.pdf"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := g.Resolve(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGuard_ResolveRejectsSymlinkEscape(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	target := filepath.Join(outside, "secret.pdf")
	require.NoError(t, os.WriteFile(target, []byte("%PDF-1.4"), 0o644))

	link := filepath.Join(root, "link.pdf")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	g, err := NewGuard(root, 1024)
	require.NoError(t, err)
	_, err = g.Resolve("link.pdf")
	assert.Error(t, err)
}

func TestGuard_ResolveRejectsSymlinkedDirectory(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	if err := os.Symlink(outside, filepath.Join(root, "link")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	require.NoError(t, os.Symlink(filepath.Join(outside, "gone"), filepath.Join(root, "dangling.xlsx")))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "exports"), 0o755))
	require.NoError(t, os.Symlink(filepath.Join(root, "exports"), filepath.Join(root, "inner")))

	g, err := NewGuard(root, 1024)
	require.NoError(t, err)

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"file under linked directory", "link/out.xlsx", true},
		{"nested missing dirs under linked directory", "link/a/b/out.json", true},
		{"linked directory itself", "link", true},
		{"dangling link", "dangling.xlsx", true},
		{"link that stays inside", "inner/out.xlsx", false},
		{"missing dirs inside root", "new/area/out.xlsx", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.Resolve(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestGuard_MissingRootIsNotEnforced(t *testing.T) {
	g, err := NewGuard(filepath.Join(t.TempDir(), "not-yet"), 1024)
	require.NoError(t, err)

	_, err = g.Resolve("/somewhere/else.pdf")
	assert.NoError(t, err)
}

func TestGuard_ResolveDrawing(t *testing.T) {
	root := t.TempDir()
	g, err := NewGuard(root, 100)
	require.NoError(t, err)

	write := func(name string, size int) {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), make([]byte, size), 0o644))
	}
	write("ok.pdf", 50)
	write("OK-UPPER.PDF", 50)
	write("empty.pdf", 0)
	write("large.pdf", 200)
	write("notes.txt", 50)
	require.NoError(t, os.Mkdir(filepath.Join(root, "dir.pdf"), 0o755))

	tests := []struct {
		name    string
		wantErr string
	}{
		{"ok.pdf", ""},
		{"OK-UPPER.PDF", ""},
		{"empty.pdf", "file is empty"},
		{"large.pdf", "file too large"},
		{"notes.txt", "not a PDF"},
		{"dir.pdf", "directory"},
		{"missing.pdf", "does not exist"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			abs, info, err := g.ResolveDrawing(tt.name)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(root, tt.name), abs)
			assert.Equal(t, int64(50), info.Size())
		})
	}
}
