package processing

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Standard subdirectories of a batch data directory.
const (
	DirOriginals = "originals"
	DirWork      = "work"
	DirOutput    = "output"
	DirReports   = "reports"
)

// StandardDirs lists the subdirectories created for every new batch.
var StandardDirs = []string{DirOriginals, DirWork, DirOutput, DirReports}

// Paths resolves named locations beneath a batch data directory.
type Paths struct {
	root string
}

// NewPaths returns a resolver rooted at dataDir.
func NewPaths(dataDir string) Paths {
	return Paths{root: filepath.Clean(dataDir)}
}

// Root returns the batch data directory.
func (p Paths) Root() string {
	return p.root
}

// Dir resolves a named subdirectory. Names that would escape the data
// directory resolve to the root itself.
func (p Paths) Dir(name string) string {
	joined := filepath.Join(p.root, name)
	if !p.contains(joined) {
		return p.root
	}
	return joined
}

// File resolves a file inside a named subdirectory.
func (p Paths) File(dir, name string) string {
	return filepath.Join(p.Dir(dir), filepath.Base(name))
}

// Ensure creates the named subdirectory if needed and returns its path.
func (p Paths) Ensure(name string) (string, error) {
	dir := p.Dir(name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	return dir, nil
}

// EnsureStandard creates every standard subdirectory.
func (p Paths) EnsureStandard() error {
	for _, name := range StandardDirs {
		if _, err := p.Ensure(name); err != nil {
			return err
		}
	}
	return nil
}

func (p Paths) contains(path string) bool {
	rel, err := filepath.Rel(p.root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
