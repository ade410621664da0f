// Package log provides a concurrency-safe simplified logging interface
// based on [log/slog].
//
// Loggers are values configured at creation time with functional options:
//
//	logger := log.Make(os.Stderr,
//		log.WithLevel(log.LevelDebug),
//		log.WithTimeLayout("RFC3339Nano"),
//		log.WithCaller(true))
//
//	logger.Info("converted", slog.String("file", "paper.typ"))
//
// A zero [Logger] discards everything, so library packages can hold one
// without checking for nil.
//
// The package-level functions ([Info], [DebugContext], ...) write through a
// process-wide default logger that the CLI reconfigures with [Config] as flags
// are parsed.
//
// # Levels
//
// [LevelTrace], [LevelDebug], [LevelInfo], [LevelWarn], [LevelError].
// TRACE sits below DEBUG and is used for per-node parser and renderer events.
//
// # Output Formats
//
// [FormatJSON] (default) and [FormatText]. With [WithPretty] enabled, both
// formats are colorized for terminals.
package log
