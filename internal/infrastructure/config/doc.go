// Package config provides 12-factor configuration for the three processes.
//
// Configuration is loaded from environment variables with sensible defaults,
// optionally overlaid by a YAML file. CLI flags override both.
//
// Configuration Sections:
//   - Segment: shared memory object name
//   - Monitor: sampling period and temperature pattern
//   - Predictor: polling period, relay address, timeouts, failure policy
//   - Controller: relay listen address, sanity bound, throttling
//   - Logging: log level and output format
//   - Diagnostics: optional HTTP endpoint address
//
// Example Usage:
//
//	cfg, err := config.LoadFile(path)
//	if err != nil {
//		return err
//	}
//	if err := cfg.Validate(); err != nil {
//		return err
//	}
//
// Environment Variables:
//   - SHM_NAME
//   - MONITOR_PERIOD, MONITOR_SAMPLES, MONITOR_PATTERN, MONITOR_BASE_TEMP, ...
//   - RPC_HOST, RPC_PORT, RPC_CONNECT_TIMEOUT, RPC_CALL_TIMEOUT
//   - PREDICTOR_PERIOD, PREDICTOR_SAMPLES, PREDICTOR_MAX_FAILURES
//   - CONTROLLER_HOST, CONTROLLER_BOUND, CONTROLLER_RATE_LIMIT
//   - LOG_LEVEL, LOG_DEV, DIAG_ADDR
package config
