package validate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"darkroom/internal/testsupport"
	"darkroom/internal/validate"
)

func TestMergeConcatenatesAndAnds(t *testing.T) {
	a := validate.OK()
	a.AddWarning("low resolution")
	b := validate.Fail("missing %s", "table")
	c := validate.Fail("bad header")

	merged := validate.Merge(a, b, c)
	if merged.Valid {
		t.Fatal("expected merged result to be invalid")
	}
	if len(merged.Errors) != 2 || merged.Errors[0] != "missing table" || merged.Errors[1] != "bad header" {
		t.Fatalf("unexpected errors: %v", merged.Errors)
	}
	if len(merged.Warnings) != 1 {
		t.Fatalf("unexpected warnings: %v", merged.Warnings)
	}
	if merged.FirstError() != "missing table" {
		t.Fatalf("unexpected first error %q", merged.FirstError())
	}
	if !validate.Merge().Valid {
		t.Fatal("empty merge should be valid")
	}
}

func TestStrictPromotesWarnings(t *testing.T) {
	res := validate.OK()
	res.AddWarning("odd file")
	strict := res.Strict()
	if strict.Valid {
		t.Fatal("expected strict result to be invalid")
	}
	if strict.FirstError() != "odd file" {
		t.Fatalf("unexpected first error %q", strict.FirstError())
	}
	if !validate.OK().Strict().Valid {
		t.Fatal("strict of clean result should stay valid")
	}
}

func TestSummary(t *testing.T) {
	if got := validate.OK().Summary(); got != "valid" {
		t.Fatalf("Summary() = %q", got)
	}
	res := validate.Merge(validate.Fail("missing %s", "a"), validate.Fail("missing b"))
	if got := res.Summary(); got != "missing a; missing b" {
		t.Fatalf("Summary() = %q", got)
	}
}

func TestFileAndDirChecks(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "table.csv")
	testsupport.WriteFile(t, file, 16)

	if res := validate.FileExists(file); !res.Valid {
		t.Fatalf("expected file to exist: %v", res.Errors)
	}
	if res := validate.FileExists(dir); res.Valid {
		t.Fatal("expected directory to fail FileExists")
	}
	if res := validate.FileExists(filepath.Join(dir, "missing")); res.Valid || !strings.Contains(res.FirstError(), "not found") {
		t.Fatalf("unexpected result for missing file: %+v", res)
	}
	if res := validate.DirExists(file); res.Valid {
		t.Fatal("expected file to fail DirExists")
	}
	if res := validate.DirWritable(dir); !res.Valid {
		t.Fatalf("expected temp dir to be writable: %v", res.Errors)
	}
}

func TestNonEmpty(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty")
	if err := os.Mkdir(empty, 0o755); err != nil {
		t.Fatal(err)
	}
	if res := validate.NonEmpty(empty); res.Valid {
		t.Fatal("expected empty directory to fail")
	}
	zero := filepath.Join(dir, "zero.txt")
	if err := os.WriteFile(zero, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if res := validate.NonEmpty(zero); res.Valid {
		t.Fatal("expected zero-byte file to fail")
	}
	if res := validate.NonEmpty(dir); !res.Valid {
		t.Fatalf("expected populated directory to pass: %v", res.Errors)
	}
	if res := validate.NonBlank("project.name", "  "); res.Valid {
		t.Fatal("expected blank field to fail")
	}
}

func TestCountsAndFormats(t *testing.T) {
	dir := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(dir, "a.JPG"), 4)
	testsupport.WriteFile(t, filepath.Join(dir, "b.jpg"), 4)
	testsupport.WriteFile(t, filepath.Join(dir, "notes.txt"), 4)

	files, err := validate.Matches(dir, "*.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 matches, got %v", files)
	}
	if res := validate.CountAtLeast(dir, 2, "*.jpg"); !res.Valid {
		t.Fatalf("expected count to pass: %v", res.Errors)
	}
	if res := validate.CountAtLeast(dir, 3, "*.jpg"); res.Valid {
		t.Fatal("expected count to fail")
	}
	format := validate.FileFormat(dir, "*.jpg")
	if !format.Valid || len(format.Warnings) != 1 {
		t.Fatalf("expected one format warning, got %+v", format)
	}
	if res := validate.CountEquals("rows", 3, 2); res.Valid {
		t.Fatal("expected count mismatch")
	}
}

func TestRequiredKeys(t *testing.T) {
	res := validate.RequiredKeys(map[string]any{"name": "x"}, "name", "data_directory", "created")
	if res.Valid || len(res.Errors) != 2 {
		t.Fatalf("expected two missing keys, got %+v", res)
	}
}

func TestFreeSpace(t *testing.T) {
	dir := t.TempDir()
	if res := validate.FreeSpace(dir, 1); !res.Valid {
		t.Fatalf("expected at least one free byte: %v", res.Errors)
	}
	if res := validate.FreeSpace(dir, ^uint64(0)); res.Valid {
		t.Fatal("expected impossible requirement to fail")
	}
}
