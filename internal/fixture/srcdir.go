package fixture

import (
	"log/slog"
	"path/filepath"

	"github.com/roach88/testmain/internal/config"
)

// SrcDir returns the directory checked-in test data is read from. Without
// --srcdir it warns and falls back to the current directory.
func SrcDir(opts *config.Options, logger *slog.Logger) string {
	if opts.SrcDir != "" {
		return opts.SrcDir
	}
	logger.Warn("no --srcdir given, using the current directory", "prog", opts.ProgName)
	return "."
}

// SrcPath joins elems below SrcDir.
func SrcPath(opts *config.Options, logger *slog.Logger, elems ...string) string {
	return filepath.Join(append([]string{SrcDir(opts, logger)}, elems...)...)
}
