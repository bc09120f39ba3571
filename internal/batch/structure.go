package batch

import (
	"path/filepath"

	"darkroom/internal/batchconfig"
	"darkroom/internal/processing"
	"darkroom/internal/registry"
	"darkroom/internal/validate"
)

// CheckStructure validates a registered batch on disk: the data directory and
// configuration file must exist and parse, standard subdirectories should
// exist, and the configuration should point back at its data directory.
func CheckStructure(b registry.Batch) validate.Result {
	dirCheck := validate.DirExists(b.DataDirectory)
	if !dirCheck.Valid {
		return dirCheck
	}
	result := validate.Merge(dirCheck, validate.FileExists(b.ConfigPath))

	paths := processing.NewPaths(b.DataDirectory)
	for _, name := range processing.StandardDirs {
		if sub := validate.DirExists(paths.Dir(name)); !sub.Valid {
			result.AddWarning("missing subdirectory %s", name)
		}
	}
	if !result.Valid {
		return result
	}

	cfg, report, err := batchconfig.Load(b.ConfigPath)
	switch {
	case err != nil:
		result.AddError("read configuration: %v", err)
	case report.Corrupt:
		result.AddError("configuration %s is corrupt", b.ConfigPath)
	default:
		recorded := cfg.GetString(batchconfig.KeyProjectDataDir, "")
		if recorded != "" && filepath.Clean(recorded) != filepath.Clean(b.DataDirectory) {
			result.AddWarning("configuration records data directory %s", recorded)
		}
	}
	return result
}
