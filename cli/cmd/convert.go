package cmd

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/ardnew/typtex/convert"
	"github.com/ardnew/typtex/document"
	"github.com/ardnew/typtex/log"
	"github.com/ardnew/typtex/render"
	"github.com/ardnew/typtex/rule"
)

// cacheFile is the base name of the conversion cache in the cache directory.
const cacheFile = "convert.db"

// Convert converts a Typst document to a LaTeX document.
type Convert struct {
	Source Source `embed:""`
	Render Render `embed:""`

	Output   string `help:"Output file or '-' for stdout (default: input with .tex extension)" placeholder:"FILE" short:"o" type:"path"`
	Template string `help:"LaTeX template with %placeholders% (default: built-in)"             placeholder:"FILE" short:"t" type:"existingfile"`
	Date     string `help:"Document date (default: \\today)"`
	Body     bool   `help:"Write only the converted body, without the template"`

	Input string `arg:"" help:"Typst source file or '-' for stdin" name:"input"`
}

// Run executes the convert command.
func (c *Convert) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	start := time.Now()

	src, err := readInput(c.Input)
	if err != nil {
		return err
	}

	meta := document.ParseMeta(src)

	keys, err := c.Source.keys(ctx, c.Input, meta.Bibliography)
	if err != nil {
		return err
	}

	nodes, err := c.Source.parse(ctx, c.Input, src, keys)
	if err != nil {
		return err
	}

	r, closer, err := c.Render.renderer(ctx)
	if err != nil {
		return err
	}
	defer closer()

	content, err := r.RenderString(ctx, nodes)
	if err != nil {
		return err
	}

	out := content

	if !c.Body {
		tmpl, err := document.LoadTemplate(c.Template)
		if err != nil {
			return err
		}

		doc := document.Document{Meta: meta, Date: c.Date, Content: content}
		out = doc.LaTeX(tmpl)
	}

	path := c.Output
	if path == "" {
		path = outputPath(c.Input)
	}

	if err := writeOutput(path, out); err != nil {
		return err
	}

	log.InfoContext(ctx, "converted document",
		slog.String("input", c.Input),
		slog.String("output", path),
		slog.Int("nodes", len(nodes)),
		slog.Duration("elapsed", time.Since(start)))

	return nil
}

// Render holds the flags that configure conversion and rendering.
type Render struct {
	NoConvert   bool          `help:"Copy text spans verbatim instead of running pandoc"`
	Pandoc      string        `default:"${pandoc}" help:"Pandoc executable name or path"`
	PandocPath  []string      `help:"Directories searched for pandoc before PATH"      placeholder:"DIR" sep:"," type:"path"`
	Timeout     time.Duration `default:"30s"       help:"Timeout for each pandoc call"`
	Retries     int           `default:"1"         help:"Retries after a failed pandoc call"`
	Jobs        int           `default:"0"         help:"Concurrent pandoc calls (0: one per CPU)"                      short:"j"`
	Cache       bool          `default:"true"      help:"Cache conversions in the cache directory"                                negatable:""`
	RefCommand  string        `default:"${ref}"    help:"LaTeX command emitted for cross-references"`
	CiteCommand string        `default:"${cite}"   help:"LaTeX command emitted for citations"`
	TitleRule   string        `help:"Expression over kind and title deciding whether a title is rendered as [title]"`
	DropRule    string        `help:"Expression over name deciding whether a line-leading #name command is dropped"`
}

// renderer builds the renderer selected by the flags. The returned function
// releases the conversion cache, if any.
func (f Render) renderer(ctx context.Context) (*render.Renderer, func(), error) {
	title, err := rule.Title(f.TitleRule)
	if err != nil {
		return nil, nil, ErrRule.Wrap(err).With(slog.String("flag", "title-rule"))
	}

	drop, err := rule.Drop(f.DropRule)
	if err != nil {
		return nil, nil, ErrRule.Wrap(err).With(slog.String("flag", "drop-rule"))
	}

	conv, closer, err := f.converter(ctx)
	if err != nil {
		return nil, nil, err
	}

	opts := []render.Option{
		render.WithConverter(conv),
		render.WithLogger(log.Default()),
		render.WithRefCommand(f.RefCommand),
		render.WithCiteCommand(f.CiteCommand),
		render.WithTitleRule(title),
		render.WithDropRule(drop),
	}

	if f.Jobs > 0 {
		opts = append(opts, render.WithConcurrency(f.Jobs))
	}

	return render.New(opts...), closer, nil
}

func (f Render) converter(ctx context.Context) (convert.Converter, func(), error) {
	if f.NoConvert {
		return convert.Identity, func() {}, nil
	}

	logger := log.Default()

	pandoc := convert.NewPandoc(
		convert.WithProgram(f.Pandoc),
		convert.WithSearchDirs(f.PandocPath...),
		convert.WithTimeout(f.Timeout),
		convert.WithRetries(f.Retries),
		convert.WithPandocLogger(logger),
	)

	if err := pandoc.Available(); err != nil {
		return nil, nil, err
	}

	dir := kongVar(ctx, CacheIdentifier)
	if !f.Cache || dir == "" {
		return pandoc, func() {}, nil
	}

	cache, err := convert.OpenCache(filepath.Join(dir, cacheFile), pandoc,
		convert.WithCacheLogger(logger))
	if err != nil {
		log.WarnContext(ctx, "conversion cache disabled", slog.Any("error", err))

		return pandoc, func() {}, nil
	}

	return cache, func() {
		hits, misses := cache.Stats()
		log.DebugContext(ctx, "conversion cache",
			slog.Int64("hits", hits),
			slog.Int64("misses", misses))

		if err := cache.Close(); err != nil {
			log.WarnContext(ctx, "close conversion cache", slog.Any("error", err))
		}
	}, nil
}
