// Package rule compiles the small boolean expressions that tune rendering.
//
// Rules are written in expr-lang (https://expr-lang.org) and evaluated
// against a typed environment:
//
//	title rule:  kind != "proof" && title != ""      env: kind, title
//	drop rule:   name in ["set", "show", "import"]   env: name
//
// The title rule decides whether an environment title is rendered as the
// LaTeX optional argument. The drop rule decides whether a top-of-line
// #name(...) code command is removed from text before conversion.
package rule

import (
	"log/slog"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/ardnew/typtex/pkg"
)

// Predefined errors (sentinel values).
var (
	ErrCompile  = pkg.NewError("rule compilation failed")
	ErrEvaluate = pkg.NewError("rule evaluation failed")
)

// Default rule sources.
const (
	DefaultTitle = `kind != "proof"`
	DefaultDrop  = `name in ["set", "show", "import", "let", "outline", "pagebreak"]`
)

// TitleEnv is the environment of a title rule.
type TitleEnv struct {
	Kind  string `expr:"kind"`
	Title string `expr:"title"`
}

// DropEnv is the environment of a drop rule.
type DropEnv struct {
	Name string `expr:"name"`
}

// Rule is a compiled boolean expression over environment E.
// The zero Rule matches nothing.
type Rule[E any] struct {
	program *vm.Program
	source  string
}

// Compile compiles source against environment E. The expression must
// produce a bool.
func Compile[E any](source string) (Rule[E], error) {
	var env E

	program, err := expr.Compile(source, expr.Env(env), expr.AsBool())
	if err != nil {
		return Rule[E]{}, ErrCompile.Wrap(err).
			With(slog.String("source", source))
	}

	return Rule[E]{program: program, source: source}, nil
}

// MustCompile is like [Compile] but panics on error. It is intended for
// package-level rules with constant sources.
func MustCompile[E any](source string) Rule[E] {
	r, err := Compile[E](source)
	if err != nil {
		panic(err)
	}

	return r
}

// Title compiles a title rule; an empty source selects [DefaultTitle].
func Title(source string) (Rule[TitleEnv], error) {
	if source == "" {
		source = DefaultTitle
	}

	return Compile[TitleEnv](source)
}

// Drop compiles a drop rule; an empty source selects [DefaultDrop].
func Drop(source string) (Rule[DropEnv], error) {
	if source == "" {
		source = DefaultDrop
	}

	return Compile[DropEnv](source)
}

// Source returns the expression the rule was compiled from.
func (r Rule[E]) Source() string { return r.source }

// Eval evaluates the rule against env.
func (r Rule[E]) Eval(env E) (bool, error) {
	if r.program == nil {
		return false, nil
	}

	out, err := vm.Run(r.program, env)
	if err != nil {
		return false, ErrEvaluate.Wrap(err).
			With(slog.String("source", r.source))
	}

	ok, _ := out.(bool)

	return ok, nil
}
