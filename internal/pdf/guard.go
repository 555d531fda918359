package pdf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Guard confines drawing and project paths to the configured directory and
// applies the basic file checks every opened drawing must pass.
type Guard struct {
	root        string
	maxFileSize int64
}

// NewGuard creates a guard rooted at dir. The directory need not exist yet;
// until it does, confinement is not enforced.
func NewGuard(dir string, maxFileSize int64) (*Guard, error) {
	if dir == "" {
		return nil, fmt.Errorf("configured directory cannot be empty")
	}
	return &Guard{root: dir, maxFileSize: maxFileSize}, nil
}

// Root returns the configured directory
func (g *Guard) Root() string {
	return g.root
}

// Resolve turns a caller-supplied path into a clean absolute path inside the
// root. Relative paths are taken relative to the root.
func (g *Guard) Resolve(path string) (string, error) {
	path = strings.ReplaceAll(path, "\x00", "")
	if path == "" {
		return "", fmt.Errorf("path cannot be empty")
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(g.root, path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	if !g.within(abs) {
		return "", fmt.Errorf("path is outside configured directory: %s", path)
	}
	return abs, nil
}

// ResolveDrawing resolves path and checks it names a readable, non-empty PDF
// within the size limit.
func (g *Guard) ResolveDrawing(path string) (string, os.FileInfo, error) {
	abs, err := g.Resolve(path)
	if err != nil {
		return "", nil, err
	}

	info, err := os.Stat(abs)
	if os.IsNotExist(err) {
		return "", nil, fmt.Errorf("file does not exist: %s", path)
	}
	if err != nil {
		return "", nil, fmt.Errorf("cannot access file: %w", err)
	}
	if err := g.CheckFileInfo(abs, info); err != nil {
		return "", nil, err
	}
	return abs, info, nil
}

// CheckFileInfo validates file metadata without opening the file
func (g *Guard) CheckFileInfo(path string, info os.FileInfo) error {
	if info.IsDir() {
		return fmt.Errorf("path is a directory, not a file: %s", path)
	}
	if !strings.HasSuffix(strings.ToLower(path), ".pdf") {
		return fmt.Errorf("file is not a PDF: %s", path)
	}
	if info.Size() == 0 {
		return fmt.Errorf("file is empty: %s", path)
	}
	if g.maxFileSize > 0 && info.Size() > g.maxFileSize {
		return fmt.Errorf("file too large: %d bytes (max: %d bytes)", info.Size(), g.maxFileSize)
	}
	return nil
}

// within reports whether abs lies under the root, both literally and once
// every symlink along the path is resolved.
func (g *Guard) within(abs string) bool {
	if _, err := os.Stat(g.root); os.IsNotExist(err) {
		return true
	}

	rootAbs, err := filepath.Abs(g.root)
	if err != nil {
		return false
	}
	rootAbs = filepath.Clean(rootAbs)
	rootReal := rootAbs
	if resolved, err := filepath.EvalSymlinks(rootAbs); err == nil {
		rootReal = resolved
	}

	target := filepath.Clean(abs)
	targetReal, ok := realPath(target)
	if !ok {
		return false
	}

	under := func(p, dir string) bool {
		return p == dir || strings.HasPrefix(p, dir+string(filepath.Separator))
	}
	return (under(target, rootAbs) || under(target, rootReal)) && under(targetReal, rootReal)
}

// realPath resolves symlinks in the deepest existing ancestor of p and
// appends the components that do not exist yet. A link that cannot be
// resolved, such as a dangling one, fails.
func realPath(p string) (string, bool) {
	var missing []string
	for cur := p; ; {
		resolved, err := filepath.EvalSymlinks(cur)
		if err == nil {
			return filepath.Join(append([]string{resolved}, missing...)...), true
		}
		if _, lerr := os.Lstat(cur); lerr == nil {
			return "", false
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", false
		}
		missing = append([]string{filepath.Base(cur)}, missing...)
		cur = parent
	}
}
