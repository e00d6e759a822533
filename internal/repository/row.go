package repository

import (
	"encoding/json"
	"log/slog"

	"github.com/nick2bad4u/uptime-watcher/internal/core"
)

// safeInteger clamps a nullable SQL integer column to 0 when absent, the
// documented fallback for numeric columns that may legitimately be NULL
// (response_time, last_checked before a monitor's first check).
func safeInteger(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}

// encodeActiveOperations serializes a monitor's in-flight operation IDs for
// the active_operations column.
func encodeActiveOperations(ops []string) (string, error) {
	if ops == nil {
		ops = []string{}
	}
	b, err := json.Marshal(ops)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// decodeActiveOperations defensively parses the active_operations column,
// logging and substituting an empty slice on malformed data rather than
// failing the whole row read.
func decodeActiveOperations(logger *slog.Logger, monitorID, raw string) []string {
	if raw == "" {
		return []string{}
	}
	var ops []string
	if err := json.Unmarshal([]byte(raw), &ops); err != nil {
		logger.Warn("malformed active_operations column, substituting empty", "monitor_id", monitorID, "error", err)
		return []string{}
	}
	return ops
}

// encodeConfig serializes a monitor's type-discriminated payload.
func encodeConfig(cfg core.MonitorConfig) (string, error) {
	b, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// decodeConfig defensively parses the payload column.
func decodeConfig(logger *slog.Logger, monitorID, raw string) core.MonitorConfig {
	var cfg core.MonitorConfig
	if raw == "" {
		return cfg
	}
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		logger.Warn("malformed payload column, substituting zero value", "monitor_id", monitorID, "error", err)
		return core.MonitorConfig{}
	}
	return cfg
}
