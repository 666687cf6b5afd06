// Package log provides the server logger setup.
package log

import (
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/swadhinbiswas/opencodehub/pkg/config"
)

// NewLogger returns a new logger with the configured settings. The returned
// file, if non-nil, must be closed by the caller after the logger is no
// longer in use.
func NewLogger(cfg *config.Config) (*log.Logger, *os.File, error) {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.DateOnly,
	})

	switch {
	case config.IsVerbose():
		logger.SetReportCaller(true)
		fallthrough
	case config.IsDebug():
		logger.SetLevel(log.DebugLevel)
	}

	if cfg.Log.TimeFormat != "" {
		logger.SetTimeFormat(cfg.Log.TimeFormat)
	}

	switch strings.ToLower(cfg.Log.Format) {
	case "json":
		logger.SetFormatter(log.JSONFormatter)
	case "logfmt":
		logger.SetFormatter(log.LogfmtFormatter)
	case "text":
		logger.SetFormatter(log.TextFormatter)
	}

	var f *os.File
	if cfg.Log.Path != "" {
		var err error
		f, err = os.OpenFile(cfg.Log.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, err
		}
		logger.SetOutput(f)
	}

	return logger, f, nil
}
