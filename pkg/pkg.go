//nolint:gochecknoglobals
package pkg

import (
	_ "embed"
	"strings"
)

// Version is the semantic version of the typtex module embedded at build time.
// It is printed by the CLI when users pass the --version flag.
//
//go:embed VERSION
var version string

// Version returns the trimmed contents of the embedded VERSION file.
func Version() string { return strings.TrimSpace(version) }

const (
	// Name is the canonical command and module identifier used across the
	// project. For example, it appears in help text and default config paths.
	Name = "typtex"
	// Description is a short, human-readable summary of the project used in
	// help output and documentation.
	Description = "Typst to LaTeX document converter"
)
