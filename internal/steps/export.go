package steps

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"darkroom/internal/fileutil"
	"darkroom/internal/logging"
	"darkroom/internal/processing"
	"darkroom/internal/stage"
	"darkroom/internal/validate"
)

// Export copies catalogued images into output/ under sequential names.
//
// Settings under step_configurations.step3:
//
//	prefix      file name prefix, default "img"
//	start_index first sequence number, default 1
type Export struct {
	base
}

// NewExport constructs the export step.
func NewExport() *Export {
	return &Export{base: base{number: 3, name: "export"}}
}

// ArtifactDir implements stage.ArtifactOwner.
func (s *Export) ArtifactDir() string {
	return processing.DirOutput
}

// ExportName builds the output name for the index-th image.
func ExportName(prefix string, index int, original string) string {
	prefix = sanitize(prefix)
	if prefix == "" {
		prefix = "img"
	}
	return fmt.Sprintf("%s_%04d%s", prefix, index, strings.ToLower(filepath.Ext(original)))
}

// ValidateInputs requires a manifest whose files are still in originals/.
func (s *Export) ValidateInputs(_ context.Context, pc *processing.Context) validate.Result {
	manifest, err := LoadManifest(pc)
	if err != nil {
		return validate.Fail("catalog manifest unavailable: %v", err)
	}
	if len(manifest.Entries) == 0 {
		return validate.Fail("catalog manifest lists no images")
	}
	originals := pc.Paths.Dir(processing.DirOriginals)
	checks := make([]validate.Result, 0, len(manifest.Entries)+1)
	for _, entry := range manifest.Entries {
		if res := validate.FileExists(filepath.Join(originals, entry.Name)); !res.Valid {
			checks = append(checks, res)
		}
	}
	out, err := pc.Paths.Ensure(processing.DirOutput)
	if err != nil {
		checks = append(checks, validate.Fail("prepare %s: %v", processing.DirOutput, err))
	} else {
		checks = append(checks, validate.DirWritable(out))
	}
	return validate.Merge(checks...)
}

// Execute copies each manifest entry to its export name.
func (s *Export) Execute(ctx context.Context, pc *processing.Context) (stage.Result, error) {
	manifest, err := LoadManifest(pc)
	if err != nil {
		return stage.Result{}, err
	}
	prefix := s.settingString(pc, "prefix", "img")
	index := s.settingInt(pc, "start_index", 1)
	originals := pc.Paths.Dir(processing.DirOriginals)
	out := pc.Paths.Dir(processing.DirOutput)

	for i, entry := range manifest.Entries {
		if err := ctx.Err(); err != nil {
			return stage.Result{}, err
		}
		name := ExportName(prefix, index+i, entry.Name)
		if err := fileutil.CopyFileVerified(filepath.Join(originals, entry.Name), filepath.Join(out, name)); err != nil {
			return stage.FailedWith(err, "export %s: %v", entry.Name, err), nil
		}
		pc.Progress("exported "+name, percent(i+1, len(manifest.Entries)))
	}
	s.log().Info("export finished",
		logging.String(logging.FieldEventType, "export_complete"),
		logging.Int("exported", len(manifest.Entries)),
		logging.String("output_dir", out))
	return stage.Succeeded(
		fmt.Sprintf("exported %d images", len(manifest.Entries)),
		map[string]any{"exported": len(manifest.Entries), "output_dir": out},
	), nil
}

// ValidateOutputs checks that output/ holds one file per manifest entry.
func (s *Export) ValidateOutputs(_ context.Context, pc *processing.Context) validate.Result {
	manifest, err := LoadManifest(pc)
	if err != nil {
		return validate.Fail("catalog manifest unavailable: %v", err)
	}
	prefix := s.settingString(pc, "prefix", "img")
	index := s.settingInt(pc, "start_index", 1)
	out := pc.Paths.Dir(processing.DirOutput)
	res := validate.OK()
	for i, entry := range manifest.Entries {
		if check := validate.FileExists(filepath.Join(out, ExportName(prefix, index+i, entry.Name))); !check.Valid {
			res = validate.Merge(res, check)
		}
	}
	return res
}

func sanitize(prefix string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(prefix)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ' || r == '.':
			b.WriteByte('_')
		}
	}
	return strings.Trim(b.String(), "_")
}
