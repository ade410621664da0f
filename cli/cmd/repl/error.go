package repl

import "github.com/ardnew/typtex/pkg"

// Predefined errors (sentinel values).
var (
	ErrOutOfBounds = pkg.NewError("history index out of range")
	ErrHistory     = pkg.NewError("history file")
)
