package validate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sys/unix"
)

// FileExists checks that path exists and is a regular file.
func FileExists(path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Fail("file not found: %s", path)
		}
		return Fail("stat %s: %v", path, err)
	}
	if info.IsDir() {
		return Fail("expected file but found directory: %s", path)
	}
	return OK()
}

// DirExists checks that path exists and is a directory.
func DirExists(path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Fail("directory not found: %s", path)
		}
		return Fail("stat %s: %v", path, err)
	}
	if !info.IsDir() {
		return Fail("expected directory but found file: %s", path)
	}
	return OK()
}

// DirWritable checks that path is a directory the current user can read,
// write and traverse.
func DirWritable(path string) Result {
	if res := DirExists(path); !res.Valid {
		return res
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Fail("directory not writable: %s: %v", path, err)
	}
	return OK()
}

// NonEmpty checks that path is a non-empty file or a directory with at least
// one entry.
func NonEmpty(path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Fail("not found: %s", path)
		}
		return Fail("stat %s: %v", path, err)
	}
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return Fail("read directory %s: %v", path, err)
		}
		if len(entries) == 0 {
			return Fail("directory is empty: %s", path)
		}
		return OK()
	}
	if info.Size() == 0 {
		return Fail("file is empty: %s", path)
	}
	return OK()
}

// NonBlank checks that a required string field has a value.
func NonBlank(field, value string) Result {
	if strings.TrimSpace(value) == "" {
		return Fail("%s must not be empty", field)
	}
	return OK()
}

// Matches lists files in dir whose base names match any of the glob
// patterns, sorted by name.
func Matches(dir string, patterns ...string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		for _, pattern := range patterns {
			ok, err := filepath.Match(pattern, strings.ToLower(name))
			if err != nil {
				return nil, fmt.Errorf("pattern %q: %w", pattern, err)
			}
			if ok {
				out = append(out, filepath.Join(dir, name))
				break
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

// FileFormat checks that every file in dir matches one of the patterns. Files
// that do not match produce warnings.
func FileFormat(dir string, patterns ...string) Result {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Fail("read directory %s: %v", dir, err)
	}
	res := OK()
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		matched := false
		for _, pattern := range patterns {
			if ok, _ := filepath.Match(pattern, strings.ToLower(entry.Name())); ok {
				matched = true
				break
			}
		}
		if !matched {
			res.AddWarning("unexpected file format: %s", filepath.Join(dir, entry.Name()))
		}
	}
	return res
}

// CountAtLeast checks that dir holds at least min files matching patterns.
func CountAtLeast(dir string, min int, patterns ...string) Result {
	files, err := Matches(dir, patterns...)
	if err != nil {
		return Fail("list %s: %v", dir, err)
	}
	if len(files) < min {
		return Fail("expected at least %d matching files in %s, found %d", min, dir, len(files))
	}
	return OK()
}

// CountEquals checks that a produced count matches an expected count.
func CountEquals(label string, want, got int) Result {
	if want != got {
		return Fail("%s count mismatch: expected %d, found %d", label, want, got)
	}
	return OK()
}

// RequiredKeys checks that every key is present in values.
func RequiredKeys(values map[string]any, keys ...string) Result {
	res := OK()
	for _, key := range keys {
		if _, ok := values[key]; !ok {
			res.AddError("missing required field: %s", key)
		}
	}
	return res
}

// FreeSpace checks that the filesystem holding path has at least minBytes
// available.
func FreeSpace(path string, minBytes uint64) Result {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Fail("statfs %s: %v", path, err)
	}
	available := stat.Bavail * uint64(stat.Bsize)
	if available < minBytes {
		return Fail("insufficient free space on %s: %d bytes available, %d required", path, available, minBytes)
	}
	return OK()
}
