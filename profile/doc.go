// Package profile provides optional runtime profiling for typtex.
//
// Profiling is compiled in only with the pprof build tag:
//
//	go build -tags pprof -o typtex .
//	typtex --pprof-mode=cpu convert paper.typ
//
// Without the tag, [Start] always returns a no-op [Stopper] and [Modes] is
// empty. With it, [github.com/pkg/profile] writes the selected profile to the
// output directory when the returned Stopper is stopped:
//
//	go tool pprof -http=: ~/.cache/typtex/pprof/cpu.pprof
//
// The pprof build also registers the [net/http/pprof] handlers.
package profile

// Tag is the build tag required to enable pprof profiling.
const Tag = `pprof`
