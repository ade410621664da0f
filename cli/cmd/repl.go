package cmd

import (
	"context"

	"github.com/ardnew/typtex/bib"
	"github.com/ardnew/typtex/cli/cmd/repl"
	"github.com/ardnew/typtex/log"
)

// Repl previews conversions interactively.
type Repl struct {
	Source Source `embed:""`
}

// Run executes the repl command.
func (r *Repl) Run(ctx context.Context) error {
	keys := bib.NewKeys()

	if r.Source.Bib != "" {
		var err error

		keys, err = r.Source.keys(ctx, "", "")
		if err != nil {
			return err
		}
	}

	return repl.Run(ctx, repl.Config{
		Keys:     keys,
		Kinds:    r.Source.Kinds,
		CacheDir: kongVar(ctx, CacheIdentifier),
		Logger:   log.Default(),
	})
}
