// Package convert turns Typst content spans into LaTeX.
//
// A [Converter] is the single capability the renderer depends on. [Pandoc]
// runs the external pandoc binary, [Cache] memoizes any converter in a
// bbolt database, and [Identity] returns spans unchanged.
package convert

import (
	"context"

	"github.com/ardnew/typtex/pkg"
)

// Predefined errors (sentinel values).
var (
	ErrConverterUnavailable = pkg.NewError("converter unavailable")
	ErrConvert              = pkg.NewError("conversion failed")
	ErrCache                = pkg.NewError("conversion cache")
)

// Kind tells a converter where a span appears in the document.
type Kind int

const (
	KindText    Kind = iota // text
	KindTitle               // title
	KindCaption             // caption
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindTitle:
		return "title"
	case KindCaption:
		return "caption"
	default:
		return "unknown"
	}
}

// Converter converts a span of Typst markup to LaTeX.
// Implementations must be safe for concurrent use.
type Converter interface {
	Convert(ctx context.Context, span string, kind Kind) (string, error)
}

// ConverterFunc adapts a function to the [Converter] interface.
type ConverterFunc func(ctx context.Context, span string, kind Kind) (string, error)

// Convert calls f(ctx, span, kind).
func (f ConverterFunc) Convert(
	ctx context.Context,
	span string,
	kind Kind,
) (string, error) {
	return f(ctx, span, kind)
}

// Identity is a [Converter] that returns every span unchanged.
var Identity Converter = ConverterFunc(
	func(_ context.Context, span string, _ Kind) (string, error) {
		return span, nil
	},
)
