// Package cache writes exported document text to a local directory so it can
// be opened in an editor. All writes go through an os.Root, so a document
// name can never place a file outside the cache directory.
package cache

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode"
)

// ruleWidth is the width of the dashed line under the header.
const ruleWidth = 80

// Cache is a directory of saved documents.
type Cache struct {
	root *os.Root
	dir  string
}

// New creates dir if needed and opens it. The caller should call Close when
// the cache is no longer needed.
func New(dir string) (*Cache, error) {
	if dir == "" {
		return nil, fmt.Errorf("cache directory is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cache dir %q: resolving path: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("cache dir %q: %w", dir, err)
	}
	root, err := os.OpenRoot(abs)
	if err != nil {
		return nil, fmt.Errorf("cache dir %q: %w", dir, err)
	}
	return &Cache{root: root, dir: abs}, nil
}

// Dir returns the absolute cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// Close releases the directory handle.
func (c *Cache) Close() error {
	return c.root.Close()
}

// Save writes content to <SafeName(name)>.txt under a header naming the
// document, replacing any previous copy. It returns the absolute path.
func (c *Cache) Save(name, id, content string) (string, error) {
	file := SafeName(name) + ".txt"

	var sb strings.Builder
	fmt.Fprintf(&sb, "Document: %s (ID: %s)\n", name, id)
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n\n")
	sb.WriteString(content)

	if err := c.root.WriteFile(file, []byte(sb.String()), 0o644); err != nil {
		return "", fmt.Errorf("cannot write %q: %w", file, err)
	}
	return filepath.Join(c.dir, file), nil
}

// Entry describes a saved document file.
type Entry struct {
	File     string    `json:"file"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// List returns the saved .txt files, newest first.
func (c *Cache) List() ([]Entry, error) {
	entries, err := fs.ReadDir(c.root.FS(), ".")
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", c.dir, err)
	}

	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".txt" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, Entry{File: e.Name(), Size: info.Size(), Modified: info.ModTime()})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Modified.Equal(out[j].Modified) {
			return out[i].Modified.After(out[j].Modified)
		}
		return out[i].File < out[j].File
	})
	return out, nil
}

// SafeName maps a document name to a file name: letters, digits, spaces,
// '-' and '_' are kept and every other character becomes '_'. An empty name
// becomes "untitled".
func SafeName(name string) string {
	if name == "" {
		return "untitled"
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, name)
}
