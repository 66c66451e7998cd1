// Package examples serves the bundled example scripts.
package examples

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

// Pattern selects example scripts inside the catalog directory
const Pattern = "*.js"

var ErrNotFound = errors.New("example not found")

// Catalog is the list of example scripts, read once and kept for the life
// of the process
type Catalog struct {
	dir string

	mu     sync.RWMutex
	names  []string
	index  map[string]struct{}
	loaded bool
}

// NewCatalog creates an empty catalog over dir. Call Load to populate it.
func NewCatalog(dir string) *Catalog {
	return &Catalog{dir: dir}
}

// Dir returns the catalog directory
func (c *Catalog) Dir() string {
	return c.dir
}

// Load scans the directory. Later calls are no-ops; use Reload to rescan.
func (c *Catalog) Load() error {
	c.mu.RLock()
	loaded := c.loaded
	c.mu.RUnlock()
	if loaded {
		return nil
	}
	return c.Reload()
}

// Reload rescans the directory unconditionally
func (c *Catalog) Reload() error {
	matches, err := doublestar.Glob(os.DirFS(c.dir), Pattern)
	if err != nil {
		return fmt.Errorf("scan examples: %w", err)
	}

	names := make([]string, 0, len(matches))
	index := make(map[string]struct{}, len(matches))
	for _, name := range matches {
		if name == "" || name[0] == '.' {
			continue
		}
		info, err := os.Stat(filepath.Join(c.dir, name))
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		names = append(names, name)
		index[name] = struct{}{}
	}
	sort.Strings(names)

	c.mu.Lock()
	c.names = names
	c.index = index
	c.loaded = true
	c.mu.Unlock()
	return nil
}

// Names returns the example filenames in lexical order
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.names...)
}

// Len returns the number of examples
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.names)
}

// Path returns the file path of a listed example. Names outside the catalog
// are rejected, which also rules out traversal.
func (c *Catalog) Path(name string) (string, error) {
	c.mu.RLock()
	_, ok := c.index[name]
	c.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return filepath.Join(c.dir, name), nil
}

// Read returns the source of a listed example
func (c *Catalog) Read(name string) ([]byte, error) {
	path, err := c.Path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read example %s: %w", name, err)
	}
	return data, nil
}
