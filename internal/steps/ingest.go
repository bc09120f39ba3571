package steps

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"darkroom/internal/config"
	"darkroom/internal/fileutil"
	"darkroom/internal/logging"
	"darkroom/internal/processing"
	"darkroom/internal/stage"
	"darkroom/internal/validate"
)

// SharedIngested holds the base names ingest copied, in sorted order.
const SharedIngested = "ingest.files"

// Ingest copies source images into originals/ with integrity verification.
//
// Settings under step_configurations.step1:
//
//	source_dir      directory to read images from (required)
//	patterns        list of glob patterns, default DefaultPatterns
//	min_files       minimum number of matching files, default 1
//	min_free_bytes  free space required in the data directory, default 0
type Ingest struct {
	base
}

// NewIngest constructs the ingest step.
func NewIngest() *Ingest {
	return &Ingest{base: base{number: 1, name: "ingest"}}
}

// ArtifactDir implements stage.ArtifactOwner.
func (s *Ingest) ArtifactDir() string {
	return processing.DirOriginals
}

func (s *Ingest) sourceDir(pc *processing.Context) string {
	dir := s.settingString(pc, "source_dir", "")
	if expanded, err := config.ExpandPath(dir); err == nil {
		return expanded
	}
	return dir
}

// ValidateInputs checks the source directory, the destination and free space.
func (s *Ingest) ValidateInputs(_ context.Context, pc *processing.Context) validate.Result {
	source := s.sourceDir(pc)
	if res := validate.NonBlank(s.key("source_dir"), source); !res.Valid {
		return res
	}
	if res := validate.DirExists(source); !res.Valid {
		return res
	}
	patterns := s.patterns(pc)
	checks := []validate.Result{
		validate.CountAtLeast(source, s.settingInt(pc, "min_files", 1), patterns...),
		validate.FileFormat(source, patterns...),
	}
	dest, err := pc.Paths.Ensure(processing.DirOriginals)
	if err != nil {
		checks = append(checks, validate.Fail("prepare %s: %v", processing.DirOriginals, err))
	} else {
		checks = append(checks, validate.DirWritable(dest))
	}
	if minFree := s.settingInt(pc, "min_free_bytes", 0); minFree > 0 {
		checks = append(checks, validate.FreeSpace(pc.Paths.Root(), uint64(minFree)))
	}
	return validate.Merge(checks...)
}

// Execute copies every matching source file.
func (s *Ingest) Execute(ctx context.Context, pc *processing.Context) (stage.Result, error) {
	source := s.sourceDir(pc)
	files, err := validate.Matches(source, s.patterns(pc)...)
	if err != nil {
		return stage.Result{}, fmt.Errorf("list source files: %w", err)
	}
	dest := pc.Paths.Dir(processing.DirOriginals)

	copied, skipped := 0, 0
	for i, src := range files {
		if err := ctx.Err(); err != nil {
			return stage.Result{}, err
		}
		target := filepath.Join(dest, filepath.Base(src))
		if same, _ := sameSize(src, target); same {
			skipped++
		} else if err := fileutil.CopyFileVerified(src, target); err != nil {
			return stage.FailedWith(err, "copy %s: %v", filepath.Base(src), err), nil
		} else {
			copied++
		}
		pc.Progress(fmt.Sprintf("ingested %s", filepath.Base(src)), percent(i+1, len(files)))
	}

	names := baseNames(files)
	pc.SetShared(SharedIngested, names)
	s.log().Info("ingest finished",
		logging.String(logging.FieldEventType, "ingest_complete"),
		logging.String("source_dir", source),
		logging.Int("copied", copied),
		logging.Int("skipped", skipped))
	return stage.Succeeded(
		fmt.Sprintf("ingested %d files (%d already present)", len(files), skipped),
		map[string]any{"copied": copied, "skipped": skipped, "files": len(files)},
	), nil
}

// ValidateOutputs checks that every ingested file landed in originals/.
func (s *Ingest) ValidateOutputs(_ context.Context, pc *processing.Context) validate.Result {
	names, ok := processing.SharedAs[[]string](pc, SharedIngested)
	if !ok {
		return validate.Fail("ingest produced no file list")
	}
	dest := pc.Paths.Dir(processing.DirOriginals)
	res := validate.OK()
	for _, name := range names {
		if check := validate.FileExists(filepath.Join(dest, name)); !check.Valid {
			res = validate.Merge(res, check)
		}
	}
	return res
}

func sameSize(src, dst string) (bool, error) {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return false, err
	}
	dstInfo, err := os.Stat(dst)
	if err != nil {
		return false, err
	}
	return srcInfo.Size() == dstInfo.Size(), nil
}
