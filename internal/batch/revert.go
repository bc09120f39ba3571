package batch

import (
	"fmt"
	"os"
	"path/filepath"

	"darkroom/internal/failure"
	"darkroom/internal/logging"
)

// RevertOptions selects what a revert undoes.
type RevertOptions struct {
	Step int
	// ArtifactDir names the data subdirectory the step writes. When set, its
	// contents are removed after the flag is cleared.
	ArtifactDir string
}

// Revert clears the completion flag of one step, saves the configuration
// and optionally removes the step's artifacts. Other flags are untouched.
func (m *Manager) Revert(h *Handle, opts RevertOptions) error {
	if err := h.Config.Revert(opts.Step); err != nil {
		return err
	}
	if err := h.Config.Save(); err != nil {
		return err
	}
	m.logger.Info("step reverted",
		logging.String(logging.FieldEventType, "step_revert"),
		logging.String(logging.FieldBatchID, h.Batch.ID),
		logging.Int(logging.FieldStep, opts.Step))

	if opts.ArtifactDir == "" {
		return nil
	}
	dir := h.Paths.Dir(opts.ArtifactDir)
	if filepath.Clean(dir) == h.Paths.Root() {
		return failure.Wrap(failure.ErrValidation, "batch", "revert",
			fmt.Sprintf("artifact directory %q resolves to the data directory", opts.ArtifactDir), nil)
	}
	if err := os.RemoveAll(dir); err != nil {
		return failure.Wrap(failure.ErrExecution, "batch", "revert", "remove artifacts", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return failure.Wrap(failure.ErrExecution, "batch", "revert", "recreate artifact directory", err)
	}
	m.logger.Info("step artifacts removed",
		logging.String(logging.FieldBatchID, h.Batch.ID),
		logging.Int(logging.FieldStep, opts.Step),
		logging.String("artifact_dir", dir))
	return nil
}
