package cmd

import "github.com/ardnew/typtex/pkg"

// Predefined errors (sentinel values).
var (
	ErrReadInput    = pkg.NewError("read input")
	ErrWriteOutput  = pkg.NewError("write output")
	ErrBibliography = pkg.NewError("load bibliography")
	ErrRule         = pkg.NewError("compile rule")
	ErrYAMLMarshal  = pkg.NewError("marshal YAML")
	ErrWriteConfig  = pkg.NewError("write configuration file")
	ErrFileExists   = pkg.NewError("file exists (use --force to overwrite)")
)
