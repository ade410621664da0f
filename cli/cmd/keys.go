package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/ardnew/typtex/bib"
)

// Keys lists the entry keys of a BibTeX file.
type Keys struct {
	Count bool `help:"Print only the number of keys" short:"c"`

	File string `arg:"" help:"BibTeX file" name:"file" type:"existingfile"`
}

// Run executes the keys command.
func (k *Keys) Run(context.Context) error {
	keys, err := bib.LoadFile(k.File)
	if err != nil {
		return ErrBibliography.Wrap(err)
	}

	if k.Count {
		_, err = fmt.Fprintln(os.Stdout, keys.Len())
	} else {
		for _, key := range keys.Sorted() {
			if _, err = fmt.Fprintln(os.Stdout, key); err != nil {
				break
			}
		}
	}

	if err != nil {
		return ErrWriteOutput.Wrap(err)
	}

	return nil
}
