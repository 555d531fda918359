package pdf

import (
	"fmt"

	"github.com/charmbracelet/log"
)

// Service opens drawings for extraction. It owns path confinement, the
// structural check and the shared page-run cache.
type Service struct {
	guard  *Guard
	cache  *RunCache
	logger *log.Logger
}

// NewService creates a drawing service rooted at dir
func NewService(dir string, maxFileSize int64, cachePages int, logger *log.Logger) (*Service, error) {
	guard, err := NewGuard(dir, maxFileSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create path guard: %w", err)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		guard:  guard,
		cache:  NewRunCache(cachePages),
		logger: logger,
	}, nil
}

// Guard returns the path guard, for resolving project and export paths
func (s *Service) Guard() *Guard {
	return s.guard
}

// Open resolves and validates path, reads its structure and opens its text
// layer. The caller closes the returned layer.
func (s *Service) Open(path string) (*TextLayer, DocumentInfo, error) {
	abs, _, err := s.guard.ResolveDrawing(path)
	if err != nil {
		return nil, DocumentInfo{}, fmt.Errorf("security validation failed: %w", err)
	}

	info, err := Inspect(abs)
	if err != nil {
		return nil, DocumentInfo{}, fmt.Errorf("invalid PDF file: %w", err)
	}
	if info.Encrypted {
		s.logger.Warn("drawing is encrypted, text may be unavailable", "path", abs)
	}

	// A re-opened file may have changed on disk.
	if n := s.cache.Invalidate(abs); n > 0 {
		s.logger.Debug("dropped cached pages", "path", abs, "pages", n)
	}

	layer, err := OpenTextLayer(abs, s.cache)
	if err != nil {
		return nil, DocumentInfo{}, err
	}
	if n := layer.NumPage(); n != info.PageCount {
		s.logger.Warn("page count mismatch between readers", "path", abs, "structure", info.PageCount, "text", n)
		if n < info.PageCount {
			info.PageCount = n
		}
	}

	s.logger.Info("drawing opened", "path", abs, "pages", info.PageCount, "version", info.Version)
	return layer, info, nil
}

// CacheStats returns page-run cache statistics
func (s *Service) CacheStats() CacheStats {
	return s.cache.Stats()
}
