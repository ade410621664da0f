package cmd

import (
	"context"
	"os"

	"github.com/ardnew/typtex/document"
	"github.com/ardnew/typtex/typst"
)

// Tree prints the parse tree of a Typst document.
type Tree struct {
	Source Source `embed:""`

	Format string `default:"text" enum:"text,yaml,json" help:"Output format (${enum})" short:"f"`
	Indent int    `default:"2"                          help:"Indent width"          short:"i"`

	Input string `arg:"" help:"Typst source file or '-' for stdin" name:"input"`
}

// Run executes the tree command.
func (t *Tree) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	src, err := readInput(t.Input)
	if err != nil {
		return err
	}

	keys, err := t.Source.keys(ctx, t.Input, document.ParseMeta(src).Bibliography)
	if err != nil {
		return err
	}

	nodes, err := t.Source.parse(ctx, t.Input, src, keys)
	if err != nil {
		return err
	}

	switch t.Format {
	case "yaml":
		err = typst.FormatYAML(ctx, os.Stdout, nodes, t.Indent)
	case "json":
		err = typst.FormatJSON(ctx, os.Stdout, nodes, t.Indent)
	default:
		err = typst.Format(ctx, os.Stdout, nodes, t.Indent)
	}

	if err != nil {
		return ErrWriteOutput.Wrap(err)
	}

	return nil
}
