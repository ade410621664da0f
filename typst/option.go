package typst

import "github.com/ardnew/typtex/log"

// AnyKind is the environment kind that accepts every identifier.
const AnyKind = "*"

// DefaultKinds are the environment kinds recognized when no others are given.
var DefaultKinds = []string{
	"theorem",
	"proposition",
	"lemma",
	"corollary",
	"proof",
	"definition",
	"example",
	"remark",
}

// Option configures a parse.
type Option func(*parser)

// WithKinds sets the environment kinds recognized as #kind[...] blocks,
// replacing [DefaultKinds]. The kind [AnyKind] accepts any identifier.
// figure and grid are always recognized.
func WithKinds(kinds ...string) Option {
	return func(p *parser) {
		p.kinds = make(map[string]struct{}, len(kinds))
		for _, k := range kinds {
			p.kinds[k] = struct{}{}
		}
	}
}

// WithLogger sets the logger for parse tracing.
func WithLogger(logger log.Logger) Option {
	return func(p *parser) {
		p.logger = logger
	}
}
