// Package proctoring accepts webcam frames from exam clients, queues them for
// cheating detection and talks to the external detection API.
package proctoring

import (
	"encoding/base64"
	"log/slog"
	"os"
)

const referencePrefix = "data:image/jpeg;base64,"

// LoadReferenceImage reads the reference frame paired with every submission
// and returns it as a data URI. A missing or unreadable file is logged and
// yields "", and the pipeline proceeds without a reference.
func LoadReferenceImage(path string, logger *slog.Logger) string {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		logger.Warn("reference image path not configured")
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error("load reference image", slog.String("path", path), slog.Any("error", err))
		return ""
	}
	logger.Info("reference image loaded", slog.String("path", path), slog.Int("bytes", len(data)))
	return referencePrefix + base64.StdEncoding.EncodeToString(data)
}
