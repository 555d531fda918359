package pdf

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileInfo describes one drawing found on disk
type FileInfo struct {
	Path         string `json:"path"`
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	ModifiedTime string `json:"modified_time"`
}

// DrawingList is the result of a drawing search
type DrawingList struct {
	Files      []FileInfo `json:"files"`
	TotalCount int        `json:"total_count"`
	Directory  string     `json:"directory"`
	Query      string     `json:"query,omitempty"`
}

// ListDrawings walks dir (the root when empty) for PDFs that pass the file
// checks. query, when set, is a case-insensitive substring or glob over the
// file name.
func (s *Service) ListDrawings(dir, query string) (*DrawingList, error) {
	if dir == "" {
		dir = s.guard.Root()
	}
	abs, err := s.guard.Resolve(dir)
	if err != nil {
		return nil, fmt.Errorf("security validation failed: %w", err)
	}
	info, err := os.Stat(abs)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("directory does not exist: %s", dir)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot access directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", dir)
	}

	query = strings.ToLower(strings.TrimSpace(query))
	var files []FileInfo

	err = filepath.Walk(abs, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return nil //nolint:nilerr // unreadable entries are skipped
		}
		if !s.guard.within(path) {
			if fi.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if fi.IsDir() || s.guard.CheckFileInfo(path, fi) != nil {
			return nil
		}
		if query != "" && !matchesQuery(fi.Name(), query) {
			return nil
		}
		files = append(files, FileInfo{
			Path:         path,
			Name:         fi.Name(),
			Size:         fi.Size(),
			ModifiedTime: fi.ModTime().Format("2006-01-02 15:04:05"),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error walking directory: %w", err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return &DrawingList{
		Files:      files,
		TotalCount: len(files),
		Directory:  abs,
		Query:      query,
	}, nil
}

func matchesQuery(name, query string) bool {
	name = strings.ToLower(name)
	if strings.ContainsAny(query, "*?[") {
		ok, err := filepath.Match(query, name)
		return err == nil && ok
	}
	return strings.Contains(name, query)
}
