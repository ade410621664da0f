// Package typst parses the structure of academic Typst documents.
//
// The parser recovers the constructs that carry document structure and
// leaves everything else as opaque [Text] spans for an external converter:
//
//	#theorem[Title
//	  Body with @key references.
//	] <thm:main>
//
//	#figure(image("plot.png"), caption: [A plot.])
//
//	#grid(columns: 2, [left], [right])
//
// Environments are recognized only for the kinds configured with
// [WithKinds] (by default [DefaultKinds]). The title of an environment is
// the first line of its bracket content and is present only when a line
// break follows it.
//
// An @key token is a [Citation] when key is in the bibliography key set
// passed to [ParseString], and a [Reference] otherwise.
//
// Two paired directives control output:
//
//	// BEGIN NO TEX
//	excluded from the tree
//	// END NO TEX
//
//	/* BEGIN TEX
//	\verbatim{LaTeX}
//	END TEX */
//
// Directives never nest. Parsing is all-or-nothing: the first error aborts
// with an [*Error] locating the problem in the source.
package typst
