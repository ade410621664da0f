// Command typtex converts Typst documents to LaTeX.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/ardnew/typtex/cli"
	"github.com/ardnew/typtex/log"
)

func main() {
	err := cli.Run(context.Background(), os.Exit, os.Args[1:]...)
	if err != nil {
		log.Error("run failed", slog.Any("error", err))
		os.Exit(1)
	}
}
