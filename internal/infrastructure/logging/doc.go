// Package logging provides structured logging using uber/zap.
//
// This package offers two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Logs go to stderr by default. Each process names its logger and tags
// entries with its instance id so the three processes' output can be
// interleaved and still told apart.
//
// Example Usage:
//
//	logger := logging.NewDefault().ForProcess("thermal-monitor", id.NewInstanceID().String())
//	logger.Info("Segment created", zap.String("name", name))
//	logger.Error("Relay failed", zap.Error(err))
package logging
