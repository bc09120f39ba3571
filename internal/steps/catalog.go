package steps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"darkroom/internal/fileutil"
	"darkroom/internal/logging"
	"darkroom/internal/processing"
	"darkroom/internal/stage"
	"darkroom/internal/validate"
)

const (
	// SharedManifest holds the *Manifest catalog produced.
	SharedManifest = "catalog.manifest"
	// ManifestFile is the manifest name inside reports/.
	ManifestFile = "manifest.json"
)

// ManifestEntry describes one catalogued image.
type ManifestEntry struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	SHA256   string    `json:"sha256"`
	Modified time.Time `json:"modified"`
}

// Manifest lists every image in originals/.
type Manifest struct {
	Generated  time.Time       `json:"generated"`
	Entries    []ManifestEntry `json:"entries"`
	Duplicates [][]string      `json:"duplicates,omitempty"`
}

// LoadManifest returns the manifest from shared data, falling back to
// reports/manifest.json when the catalog step ran in an earlier run.
func LoadManifest(pc *processing.Context) (*Manifest, error) {
	if m, ok := processing.SharedAs[*Manifest](pc, SharedManifest); ok && m != nil {
		return m, nil
	}
	data, err := os.ReadFile(pc.Paths.File(processing.DirReports, ManifestFile))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	pc.SetShared(SharedManifest, &m)
	return &m, nil
}

// Catalog hashes every file in originals/ and writes a manifest.
//
// Settings under step_configurations.step2:
//
//	require_unique  fail when two files share content, default false
type Catalog struct {
	base
}

// NewCatalog constructs the catalog step.
func NewCatalog() *Catalog {
	return &Catalog{base: base{number: 2, name: "catalog"}}
}

// ArtifactDir implements stage.ArtifactOwner.
func (s *Catalog) ArtifactDir() string {
	return processing.DirReports
}

// ValidateInputs requires a non-empty originals/ directory.
func (s *Catalog) ValidateInputs(_ context.Context, pc *processing.Context) validate.Result {
	originals := pc.Paths.Dir(processing.DirOriginals)
	if res := validate.DirExists(originals); !res.Valid {
		return res
	}
	return validate.CountAtLeast(originals, 1, "*")
}

// Execute builds the manifest and writes it atomically.
func (s *Catalog) Execute(ctx context.Context, pc *processing.Context) (stage.Result, error) {
	originals := pc.Paths.Dir(processing.DirOriginals)
	files, err := validate.Matches(originals, "*")
	if err != nil {
		return stage.Result{}, fmt.Errorf("list originals: %w", err)
	}

	manifest := &Manifest{Generated: time.Now().UTC()}
	byHash := make(map[string][]string)
	for i, path := range files {
		if err := ctx.Err(); err != nil {
			return stage.Result{}, err
		}
		if filepath.Base(path)[0] == '.' {
			continue
		}
		entry, err := describe(path)
		if err != nil {
			return stage.FailedWith(err, "hash %s: %v", filepath.Base(path), err), nil
		}
		manifest.Entries = append(manifest.Entries, entry)
		byHash[entry.SHA256] = append(byHash[entry.SHA256], entry.Name)
		pc.Progress("hashed "+entry.Name, percent(i+1, len(files)))
	}
	for _, entry := range manifest.Entries {
		if names := byHash[entry.SHA256]; len(names) > 1 && names[0] == entry.Name {
			manifest.Duplicates = append(manifest.Duplicates, names)
		}
	}
	if len(manifest.Duplicates) > 0 {
		if s.settingBool(pc, "require_unique", false) {
			return stage.Failed("found %d groups of duplicate images", len(manifest.Duplicates)), nil
		}
		logging.WarnWithContext(s.log(), "duplicate images catalogued", "catalog_duplicates",
			logging.Int("groups", len(manifest.Duplicates)),
			logging.String(logging.FieldErrorHint, "set require_unique to reject duplicates"),
			logging.String(logging.FieldImpact, "duplicates will be exported twice"))
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return stage.Result{}, fmt.Errorf("encode manifest: %w", err)
	}
	if _, err := pc.Paths.Ensure(processing.DirReports); err != nil {
		return stage.Result{}, err
	}
	target := pc.Paths.File(processing.DirReports, ManifestFile)
	if err := fileutil.WriteAtomic(target, append(data, '\n'), 0o644); err != nil {
		return stage.Result{}, fmt.Errorf("write manifest: %w", err)
	}
	pc.SetShared(SharedManifest, manifest)

	return stage.Succeeded(
		fmt.Sprintf("catalogued %d images", len(manifest.Entries)),
		map[string]any{"entries": len(manifest.Entries), "duplicates": len(manifest.Duplicates), "manifest": target},
	), nil
}

// ValidateOutputs checks the manifest file against originals/.
func (s *Catalog) ValidateOutputs(_ context.Context, pc *processing.Context) validate.Result {
	target := pc.Paths.File(processing.DirReports, ManifestFile)
	if res := validate.FileExists(target); !res.Valid {
		return res
	}
	manifest, err := LoadManifest(pc)
	if err != nil {
		return validate.Fail("read manifest: %v", err)
	}
	return validate.CountEquals("manifest entries", countFiles(pc.Paths.Dir(processing.DirOriginals)), len(manifest.Entries))
}

func describe(path string) (ManifestEntry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return ManifestEntry{}, err
	}
	if !info.Mode().IsRegular() {
		return ManifestEntry{}, &fs.PathError{Op: "catalog", Path: path, Err: errors.New("not a regular file")}
	}
	sum, _, err := fileutil.Digest(path)
	if err != nil {
		return ManifestEntry{}, err
	}
	return ManifestEntry{
		Name:     filepath.Base(path),
		Size:     info.Size(),
		SHA256:   sum,
		Modified: info.ModTime().UTC(),
	}, nil
}
