// Package logger provides a small, thread-safe leveled logger.
//
// Every line carries a timestamp, a level tag, an optional component
// (a worker name, "pool", "server", a connection ID) and the message:
//
//	[2026-01-02 15:04:05.000] [INFO] [worker-0] disconnected; shutting down
//
// # Basic Usage
//
//	logger.Info("", "server listening on %s", addr)
//	logger.Error("worker-1", "job panicked: %v", r)
//
// A dedicated logger can be built for tests or alternate sinks:
//
//	l := logger.New(&buf, logger.LevelDebug)
//	l.SetColor(true) // color level tags with fatih/color
//
// Messages below the configured level are dropped. Use ParseLevel to turn
// configuration strings ("debug", "info", "warn", "error") into a Level.
package logger
