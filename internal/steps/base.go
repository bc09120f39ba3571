package steps

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"darkroom/internal/batchconfig"
	"darkroom/internal/logging"
	"darkroom/internal/processing"
)

// DefaultPatterns are the image formats the built-in steps handle.
var DefaultPatterns = []string{"*.jpg", "*.jpeg", "*.png", "*.tif", "*.tiff", "*.dng", "*.cr2", "*.nef", "*.arw"}

type base struct {
	number int
	name   string
	logger *slog.Logger
}

func (b *base) Number() int  { return b.number }
func (b *base) Name() string { return b.name }

// SetLogger implements stage.LoggerAware.
func (b *base) SetLogger(logger *slog.Logger) {
	b.logger = logger
}

func (b *base) log() *slog.Logger {
	if b.logger == nil {
		return logging.NewNop()
	}
	return b.logger
}

func (b *base) key(setting string) string {
	return batchconfig.StepConfigKey(b.number) + "." + setting
}

func (b *base) settingString(pc *processing.Context, setting, def string) string {
	return strings.TrimSpace(pc.Config.GetString(b.key(setting), def))
}

func (b *base) settingInt(pc *processing.Context, setting string, def int) int {
	return pc.Config.GetInt(b.key(setting), def)
}

func (b *base) settingBool(pc *processing.Context, setting string, def bool) bool {
	return pc.Config.GetBool(b.key(setting), def)
}

func (b *base) patterns(pc *processing.Context) []string {
	value, ok := pc.Config.Lookup(b.key("patterns"))
	if !ok {
		return DefaultPatterns
	}
	var out []string
	for _, item := range value.Items() {
		if s, ok := item.AsString(); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.ToLower(strings.TrimSpace(s)))
		}
	}
	if len(out) == 0 {
		return DefaultPatterns
	}
	return out
}

// countFiles counts regular, non-hidden files directly inside dir.
func countFiles(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	n := 0
	for _, entry := range entries {
		if entry.Type().IsRegular() && !strings.HasPrefix(entry.Name(), ".") {
			n++
		}
	}
	return n
}

func percent(done, total int) float64 {
	if total == 0 {
		return 100
	}
	return float64(done) * 100 / float64(total)
}

func baseNames(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		out = append(out, filepath.Base(p))
	}
	return out
}
