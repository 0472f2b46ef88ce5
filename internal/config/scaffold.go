package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const stubIndex = `Index rst file
==============

This is the main reStructuredText page. It is meant as a
temporary example, ready to override.
`

const stubConf = "master_doc = 'index'\n"

// Scaffold creates the source directory with a stub index.rst and a minimal
// conf.py when they are missing, so a first build has something to render.
// Existing files are never touched.
func Scaffold(sourcePath string) error {
	if err := os.MkdirAll(sourcePath, 0o755); err != nil {
		return fmt.Errorf("create source directory: %w", err)
	}
	files := map[string]string{
		"index.rst": stubIndex,
		"conf.py":   stubConf,
	}
	for name, content := range files {
		path := filepath.Join(sourcePath, name)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}
