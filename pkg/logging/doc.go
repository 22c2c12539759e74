// Package logging provides the structured logging used throughout magictunnel.
//
// All log calls are tagged with a subsystem identifier (e.g. "Aggregator",
// "ExternalServer", "Discovery") so operators can filter by component. The
// package wraps log/slog: Init configures the process-wide handler once at
// start-up, and Debug/Info/Warn/Error route through it.
//
// # Usage
//
//	logging.Init(logging.LevelInfo, os.Stderr)
//	logging.Info("Bootstrap", "magictunnel starting with config %s", path)
//	logging.Error("ExternalServer", err, "server %s failed to start", name)
package logging
