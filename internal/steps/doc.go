// Package steps provides the built-in pipeline steps for photo batches:
//
//	1 ingest   verified copy of source images into originals/
//	2 catalog  sha256 manifest of originals, written to reports/manifest.json
//	3 export   renamed copies of catalogued images into output/
//
// Each step reads its settings from step_configurations.step<N> in the batch
// configuration.
package steps

import (
	"darkroom/internal/stage"
	"darkroom/internal/workflow"
)

// Default returns the built-in steps in order.
func Default() []stage.Processor {
	return []stage.Processor{NewIngest(), NewCatalog(), NewExport()}
}

// Register adds the built-in steps to p.
func Register(p *workflow.Pipeline) error {
	for _, proc := range Default() {
		if err := p.Register(proc); err != nil {
			return err
		}
	}
	return nil
}
