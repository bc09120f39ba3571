package fileutil

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// CopyFile copies src to dst with mode 0o644. The destination only appears
// once the copy is complete.
func CopyFile(src, dst string) error {
	return CopyFileMode(src, dst, 0o644)
}

// CopyFileMode copies src to dst with the given mode.
func CopyFileMode(src, dst string, mode os.FileMode) error {
	tmp, _, err := stageCopy(src, dst, mode)
	if err != nil {
		return err
	}
	return CommitAtomic(tmp, dst)
}

// CopyFileVerified copies src to dst and compares size and SHA-256 of the
// bytes read against the bytes written before dst is replaced. On mismatch
// dst is left as it was.
func CopyFileVerified(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	tmp, written, err := stageCopy(src, dst, 0o644)
	if err != nil {
		return err
	}
	if written != info.Size() {
		_ = os.Remove(tmp)
		return fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", info.Size(), written)
	}
	want, _, err := Digest(src)
	if err != nil {
		_ = os.Remove(tmp)
		return err
	}
	got, _, err := Digest(tmp)
	if err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if want != got {
		_ = os.Remove(tmp)
		return fmt.Errorf("copy hash mismatch: file corrupted during copy")
	}
	return CommitAtomic(tmp, dst)
}

// Digest returns the hex SHA-256 and size of the file at path.
func Digest(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()
	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

func stageCopy(src, dst string, mode os.FileMode) (string, int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", 0, err
	}
	defer in.Close()

	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("create directory %q: %w", dir, err)
	}
	out, err := os.CreateTemp(dir, "."+filepath.Base(dst)+".tmp-*")
	if err != nil {
		return "", 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := out.Name()
	fail := func(err error) (string, int64, error) {
		_ = out.Close()
		_ = os.Remove(tmpPath)
		return "", 0, err
	}

	written, err := io.Copy(out, in)
	if err != nil {
		return fail(err)
	}
	if err := out.Chmod(mode); err != nil {
		return fail(err)
	}
	if err := out.Sync(); err != nil {
		return fail(err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", 0, err
	}
	return tmpPath, written, nil
}
