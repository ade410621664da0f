package render

import (
	"github.com/ardnew/typtex/convert"
	"github.com/ardnew/typtex/log"
	"github.com/ardnew/typtex/rule"
)

// Default renderer settings.
const (
	DefaultRefCommand  = "thref"
	DefaultCiteCommand = "cite"
)

// Option configures a [Renderer].
type Option func(*Renderer)

// WithConverter sets the converter for text leaves, titles and captions.
func WithConverter(c convert.Converter) Option {
	return func(r *Renderer) {
		if c != nil {
			r.conv = c
		}
	}
}

// WithLogger sets the renderer's logger.
func WithLogger(logger log.Logger) Option {
	return func(r *Renderer) {
		r.logger = logger
	}
}

// WithConcurrency bounds the number of conversions in flight. Values below
// one select one.
func WithConcurrency(n int) Option {
	return func(r *Renderer) {
		r.jobs = max(n, 1)
	}
}

// WithRefCommand sets the LaTeX command, without backslash, emitted for
// references.
func WithRefCommand(cmd string) Option {
	return func(r *Renderer) {
		if cmd != "" {
			r.refCommand = cmd
		}
	}
}

// WithCiteCommand sets the LaTeX command, without backslash, emitted for
// citations.
func WithCiteCommand(cmd string) Option {
	return func(r *Renderer) {
		if cmd != "" {
			r.citeCommand = cmd
		}
	}
}

// WithTitleRule sets the rule deciding whether an environment title becomes
// the optional argument of \begin.
func WithTitleRule(title rule.Rule[rule.TitleEnv]) Option {
	return func(r *Renderer) {
		r.title = title
	}
}

// WithDropRule sets the rule deciding which top-of-line code commands are
// removed from text before conversion.
func WithDropRule(drop rule.Rule[rule.DropEnv]) Option {
	return func(r *Renderer) {
		r.drop = drop
	}
}
