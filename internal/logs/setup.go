package logs

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures the global logger for terminal use. Entries go to
// stderr so report output on stdout stays machine-readable.
func Setup(debug bool) {
	zerolog.SetGlobalLevel(levelFor(debug))

	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	log.Logger = zerolog.New(console).With().Timestamp().Logger()
}

// SetupFileOnly routes all entries to a dated file under dir and keeps
// the terminal silent. The watch UI owns the terminal, so log lines
// would corrupt its screen. Returns the file path.
func SetupFileOnly(debug bool, dir string) (string, error) {
	zerolog.SetGlobalLevel(levelFor(debug))

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create log directory: %w", err)
	}

	name := fmt.Sprintf("hpa-verify_%s.log", time.Now().Format("2006-01-02"))
	path := filepath.Join(dir, name)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to open log file: %w", err)
	}

	log.Logger = zerolog.New(file).With().Timestamp().Logger()
	return path, nil
}

func levelFor(debug bool) zerolog.Level {
	if debug {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}
