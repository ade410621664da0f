// Package cli contains the command line interface for typtex.
//
// # Usage
//
//	typtex [flags] <input.typ>              convert (default command)
//	typtex convert paper.typ -b refs.bib -o paper.tex
//	typtex tree paper.typ --format=yaml
//	typtex keys refs.bib
//	typtex repl -b refs.bib
//	typtex init
//
// # Configuration
//
// Flag values are preloaded from config.yaml in the user configuration
// directory (for example ~/.config/typtex/config.yaml). Global flags are
// top-level keys and command flags may be grouped under the command name.
// Command-line flags override config file values. typtex init writes the
// current values.
//
// # Logging Options
//
//   - --log-level: Set minimum log level (trace, debug, info, warn, error)
//   - --log-format: Set log output format (json, text)
//   - --log-time-layout: Set timestamp format (RFC3339, Kitchen, none, ...)
//   - --log-caller: Include caller information in log output
//   - --log-pretty: Colorize log output
//
// # Profiling Options
//
// Profiling is only available when built with the pprof build tag:
//
//	go build -tags pprof -o typtex .
//
//   - --pprof-mode: Enable profiling (allocs, block, clock, cpu, goroutine,
//     heap, mem, mutex, thread, trace)
//   - --pprof-dir: Set profile output directory (default: the pprof
//     directory under the user cache directory)
package cli
