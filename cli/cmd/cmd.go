package cmd

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/ardnew/typtex/bib"
	"github.com/ardnew/typtex/log"
	"github.com/ardnew/typtex/typst"
)

// contextKey is used to store a [kong.Context] value in [context.Context].
type contextKey struct{}

// WithContext returns a new context.Context containing the given kong.Context.
func WithContext(ctx context.Context, ktx *kong.Context) context.Context {
	return context.WithValue(ctx, contextKey{}, ktx)
}

func kongContextFrom(ctx context.Context) *kong.Context {
	ktx, ok := ctx.Value(contextKey{}).(*kong.Context)
	if !ok || ktx == nil {
		return nil
	}

	return ktx
}

// kongVar returns the kong variable named id, or "" if there is none.
func kongVar(ctx context.Context, id string) string {
	ktx := kongContextFrom(ctx)
	if ktx == nil {
		return ""
	}

	return ktx.Model.Vars()[id]
}

// stdio is the special path for reading stdin or writing stdout.
const stdio = "-"

// readInput returns the decoded contents of path, or of stdin when path is
// "-". See [typst.ReadSource].
func readInput(path string) (string, error) {
	r := io.Reader(os.Stdin)

	if path != stdio {
		f, err := os.Open(path)
		if err != nil {
			return "", ErrReadInput.Wrap(err).With(slog.String("file", path))
		}
		defer f.Close()

		r = f
	}

	src, err := typst.ReadSource(r)
	if err != nil {
		return "", ErrReadInput.Wrap(err).With(slog.String("file", path))
	}

	return src, nil
}

// writeOutput writes s to path, or to stdout when path is "-".
func writeOutput(path, s string) error {
	var err error

	if path == stdio {
		_, err = io.WriteString(os.Stdout, s)
	} else {
		err = os.WriteFile(path, []byte(s), 0o644) //nolint:gosec
	}

	if err != nil {
		return ErrWriteOutput.Wrap(err).With(slog.String("file", path))
	}

	return nil
}

// outputPath returns the default output path for input: the input path with
// its extension replaced by .tex, or stdout for stdin.
func outputPath(input string) string {
	if input == stdio {
		return stdio
	}

	return strings.TrimSuffix(input, filepath.Ext(input)) + ".tex"
}

// Source holds the flags shared by commands that parse Typst documents.
type Source struct {
	Bib   string   `help:"BibTeX file whose keys are cited (default: the bibliography named in the document header)" placeholder:"FILE" short:"b" type:"path"`
	Kinds []string `help:"Environment kinds recognized as #kind[...] ('*' accepts any)"                                default:"${kinds}" sep:","`
}

// keys loads the bibliography keys for a document read from input. An
// explicit --bib file must exist. Otherwise header names a file relative to
// the input directory, which is loaded if present.
func (s Source) keys(ctx context.Context, input, header string) (bib.Keys, error) {
	path := s.Bib

	if path == "" {
		if header == "" || input == stdio {
			return bib.NewKeys(), nil
		}

		path = filepath.Join(filepath.Dir(input), header)

		if _, err := os.Stat(path); err != nil {
			log.WarnContext(ctx, "bibliography named in header not found",
				slog.String("file", path))

			return bib.NewKeys(), nil
		}
	}

	keys, err := bib.LoadFile(path)
	if err != nil {
		return nil, ErrBibliography.Wrap(err)
	}

	log.DebugContext(ctx, "loaded bibliography",
		slog.String("file", path),
		slog.Any("keys", keys))

	return keys, nil
}

// parse parses src read from input. Parse errors are reported to stderr with
// the offending source line before being returned.
func (s Source) parse(
	ctx context.Context,
	input, src string,
	keys typst.KeySet,
) ([]typst.Node, error) {
	opts := []typst.Option{typst.WithLogger(log.Default())}
	if len(s.Kinds) > 0 {
		opts = append(opts, typst.WithKinds(s.Kinds...))
	}

	nodes, err := typst.ParseString(ctx, src, keys, opts...)
	if err != nil {
		diagnose(os.Stderr, input, src, err)

		return nil, err
	}

	return nodes, nil
}
