package registry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"darkroom/internal/fileutil"
)

func TestCrashBeforeRenameKeepsPreviousIndex(t *testing.T) {
	dir := t.TempDir()
	reg := New(filepath.Join(dir, "registry.json"))
	id, err := reg.Register(context.Background(), "first", filepath.Join(dir, "first"), filepath.Join(dir, "first.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	before, err := os.ReadFile(reg.Path())
	if err != nil {
		t.Fatal(err)
	}

	crashed := errors.New("process died")
	reg.commit = func(path string, data []byte) error {
		if _, err := fileutil.StageAtomic(path, data, 0o644); err != nil {
			return err
		}
		return crashed
	}
	if _, err := reg.Register(context.Background(), "second", filepath.Join(dir, "second"), filepath.Join(dir, "second.yaml")); !errors.Is(err, crashed) {
		t.Fatalf("expected simulated crash, got %v", err)
	}

	after, err := os.ReadFile(reg.Path())
	if err != nil {
		t.Fatal(err)
	}
	if string(after) != string(before) {
		t.Fatal("index changed although the rename never happened")
	}

	fresh := New(reg.Path())
	all, err := fresh.List(true)
	if err != nil {
		t.Fatalf("reload after crash: %v", err)
	}
	if len(all) != 1 || all[0].ID != id {
		t.Fatalf("unexpected batches after crash %+v", all)
	}

	if err := fresh.Touch(context.Background(), id); err != nil {
		t.Fatalf("Touch after crash: %v", err)
	}
	leftovers, _ := filepath.Glob(filepath.Join(dir, ".registry.json.tmp-*"))
	if len(leftovers) != 0 {
		t.Fatalf("expected stale temp files cleaned, found %v", leftovers)
	}
}
