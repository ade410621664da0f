package cli

import (
	"context"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/ardnew/typtex/cli/cmd"
	"github.com/ardnew/typtex/convert"
	"github.com/ardnew/typtex/log"
	"github.com/ardnew/typtex/pkg"
	"github.com/ardnew/typtex/render"
	"github.com/ardnew/typtex/typst"
)

// CLI is the top-level command-line interface for typtex.
type CLI struct {
	Log   logConfig   `embed:"" group:"log"   prefix:"log-"`
	Pprof pprofConfig `embed:"" group:"pprof" prefix:"pprof-"`

	Version kong.VersionFlag `help:"Print version and exit" short:"V"`

	Convert cmd.Convert `cmd:"" default:"withargs" help:"Convert a Typst document to LaTeX"`
	Tree    cmd.Tree    `cmd:""                    help:"Print the parse tree of a Typst document"`
	Keys    cmd.Keys    `cmd:""                    help:"List the entry keys of a BibTeX file"`
	Repl    cmd.Repl    `cmd:""                    help:"Preview conversions interactively"`
	Init    cmd.Init    `cmd:""                    help:"Write the configuration file"`
}

// Run executes the typtex CLI with the given context and arguments.
// The exit function is called with the appropriate exit code upon completion.
func Run(
	ctx context.Context,
	exit func(code int),
	args ...string,
) error {
	var cli CLI

	err := mkdirAllRequired()
	if err != nil {
		return err
	}

	configFilePath := configPath(baseConfig)

	vars := kong.Vars{
		cmd.ConfigIdentifier: configFilePath,
		cmd.CacheIdentifier:  cacheDir(),
		"version":            pkg.Version(),
		"kinds":              strings.Join(typst.DefaultKinds, ","),
		"pandoc":             convert.DefaultPandoc,
		"ref":                render.DefaultRefCommand,
		"cite":               render.DefaultCiteCommand,
	}.
		CloneWith(cli.Log.vars()).
		CloneWith(cli.Pprof.vars())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Logs go to stderr so that converted output can go to stdout.
	log.Config(log.WithOutput(os.Stderr))

	// Pre-scan for logger flags so that parse errors are already logged in
	// the requested format.
	cli.Log.scan(args)

	parser, err := kong.New(&cli,
		kong.Name(pkg.Name),
		kong.Description(pkg.Description),
		kong.UsageOnError(),
		kong.Exit(exit),
		kong.ExplicitGroups(
			[]kong.Group{cli.Log.group(), cli.Pprof.group()},
		),
		kong.BindSingletonProvider(func() context.Context {
			return ctx
		}),
		kong.ConfigureHelp(
			kong.HelpOptions{
				Compact:             true,
				Summary:             true,
				Tree:                true,
				NoExpandSubcommands: true,
			}),
		kong.Configuration(resolve(ctx), configFilePath),
		vars,
	)
	if err != nil {
		return err
	}

	ktx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	ctx = cmd.WithContext(ctx, ktx)

	// Finalize logger configuration with all parsed values including
	// TimeLayout and Caller which don't use TextUnmarshaler.
	cli.Log.start(ctx)

	// [pprofConfig.start] is no-op unless built with tag pprof and enabled.
	defer cli.Pprof.start(ctx)()

	return ktx.Run()
}
