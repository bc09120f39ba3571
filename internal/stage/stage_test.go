package stage_test

import (
	"context"
	"errors"
	"testing"

	"darkroom/internal/processing"
	"darkroom/internal/stage"
	"darkroom/internal/validate"
)

type plainStep struct{}

func (plainStep) Number() int  { return 1 }
func (plainStep) Name() string { return "ingest" }
func (plainStep) ValidateInputs(context.Context, *processing.Context) validate.Result {
	return validate.OK()
}
func (plainStep) Execute(context.Context, *processing.Context) (stage.Result, error) {
	return stage.Succeeded("ok", nil), nil
}
func (plainStep) ValidateOutputs(context.Context, *processing.Context) validate.Result {
	return validate.OK()
}

func TestLabel(t *testing.T) {
	tests := map[string]string{
		"raw_ingest":  "Raw Ingest",
		"catalog":     "Catalog",
		"  export-hd": "Export Hd",
		"":            "",
	}
	for in, want := range tests {
		if got := stage.Label(in); got != want {
			t.Fatalf("Label(%q) = %q, want %q", in, got, want)
		}
	}
	if got := stage.NumberedLabel(stage.Definition{Number: 3, Name: "export"}); got != "3. Export" {
		t.Fatalf("unexpected numbered label %q", got)
	}
}

func TestFailedWithKeepsCause(t *testing.T) {
	cause := errors.New("disk full")
	res := stage.FailedWith(cause, "copy %d files", 3)
	if res.Success || res.Message != "copy 3 files" || !errors.Is(res.Err, cause) {
		t.Fatalf("unexpected result %+v", res)
	}
	if d := stage.Describe(plainStep{}); d.Number != 1 || d.Name != "ingest" {
		t.Fatalf("unexpected definition %+v", d)
	}
}
