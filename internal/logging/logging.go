// Package logging configures the process-wide standard logger.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/voidwell/autodelete/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Setup routes the standard logger to stdout and, when a directory is
// configured, to a size-rotated file as well.
func Setup(cfg config.LoggingConfig) error {
	log.SetFlags(log.Ldate | log.Ltime)

	if cfg.Directory == "" {
		log.SetOutput(os.Stdout)
		return nil
	}

	if err := os.MkdirAll(cfg.Directory, 0755); err != nil {
		return fmt.Errorf("logging: create directory %s: %w", cfg.Directory, err)
	}

	rotating := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.Directory, "autodelete.log"),
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	log.SetOutput(io.MultiWriter(os.Stdout, rotating))
	log.Printf("logging: writing to %s", rotating.Filename)
	return nil
}
