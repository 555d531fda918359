package project

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/a3tai/mcp-pid-tagger/internal/pid"
)

// SaveFile writes doc as an indented JSON project file. The file is written
// to a temporary sibling and renamed into place.
func SaveFile(path string, doc pid.Document) error {
	if err := pid.ValidateDocument(doc); err != nil {
		return err
	}
	data, err := doc.Marshal()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create project directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".project-*.json")
	if err != nil {
		return fmt.Errorf("failed to create project file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write project file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write project file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace project file: %w", err)
	}
	return nil
}

// LoadFile reads and validates a JSON project file
func LoadFile(path string) (pid.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return pid.Document{}, fmt.Errorf("failed to read project file: %w", err)
	}
	doc, err := pid.ParseDocument(data)
	if err != nil {
		return pid.Document{}, err
	}
	if err := pid.ValidateDocument(doc); err != nil {
		return pid.Document{}, err
	}
	return doc, nil
}
