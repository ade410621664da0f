package convert

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/ardnew/mung"

	"github.com/ardnew/typtex/log"
)

// Default pandoc settings.
const (
	DefaultPandoc  = "pandoc"
	DefaultTimeout = 30 * time.Second
	DefaultRetries = 1
)

// PandocOption applies a configuration option to a [Pandoc].
type PandocOption func(Pandoc) Pandoc

// Pandoc converts spans by running "pandoc -f typst -t latex" once per span.
type Pandoc struct {
	logger  log.Logger
	program string
	dirs    []string
	timeout time.Duration
	retries int
}

// NewPandoc returns a pandoc converter with [DefaultPandoc],
// [DefaultTimeout] and [DefaultRetries] unless overridden by opts.
func NewPandoc(opts ...PandocOption) Pandoc {
	p := Pandoc{
		program: DefaultPandoc,
		timeout: DefaultTimeout,
		retries: DefaultRetries,
	}

	for _, opt := range opts {
		p = opt(p)
	}

	return p
}

// WithProgram sets the pandoc executable, either a bare name searched for in
// PATH or a path to the binary.
func WithProgram(program string) PandocOption {
	return func(p Pandoc) Pandoc {
		if program != "" {
			p.program = program
		}

		return p
	}
}

// WithSearchDirs prefixes dirs to PATH when locating and running pandoc.
func WithSearchDirs(dirs ...string) PandocOption {
	return func(p Pandoc) Pandoc {
		p.dirs = append(p.dirs[:len(p.dirs):len(p.dirs)], dirs...)

		return p
	}
}

// WithTimeout bounds each pandoc invocation. Zero disables the bound.
func WithTimeout(d time.Duration) PandocOption {
	return func(p Pandoc) Pandoc {
		p.timeout = max(d, 0)

		return p
	}
}

// WithRetries sets how many times a failed invocation is repeated.
func WithRetries(n int) PandocOption {
	return func(p Pandoc) Pandoc {
		p.retries = max(n, 0)

		return p
	}
}

// WithPandocLogger sets the logger for invocation events.
func WithPandocLogger(logger log.Logger) PandocOption {
	return func(p Pandoc) Pandoc {
		p.logger = logger

		return p
	}
}

// SearchPath returns the PATH used to locate and run pandoc.
// The search directories come first, in the order given.
func (p Pandoc) SearchPath() string {
	// mung prepends prefix items one at a time.
	dirs := slices.Clone(p.dirs)
	slices.Reverse(dirs)

	return mung.Make(
		mung.WithSubjectItems(os.Getenv("PATH")),
		mung.WithDelim(string(os.PathListSeparator)),
		mung.WithPrefixItems(dirs...),
	).String()
}

// Available reports whether the pandoc executable can be found.
func (p Pandoc) Available() error {
	_, err := lookPath(p.program, p.SearchPath())

	return err
}

// Convert implements [Converter]. Whitespace-only spans convert to the empty
// string without running pandoc. Trailing whitespace is trimmed from the
// output.
func (p Pandoc) Convert(
	ctx context.Context,
	span string,
	kind Kind,
) (string, error) {
	if strings.TrimSpace(span) == "" {
		return "", nil
	}

	path := p.SearchPath()

	bin, err := lookPath(p.program, path)
	if err != nil {
		return "", err
	}

	for attempt := 0; ; attempt++ {
		out, err := p.run(ctx, bin, path, span)
		if err == nil {
			return strings.TrimRight(out, " \t\r\n"), nil
		}

		if attempt >= p.retries || ctx.Err() != nil {
			return "", ErrConvert.Wrap(err).With(
				slog.String("kind", kind.String()),
				slog.Int("attempts", attempt+1))
		}

		p.logger.WarnContext(ctx, "retrying pandoc",
			slog.Int("attempt", attempt+1),
			slog.String("kind", kind.String()),
			slog.Any("error", err))
	}
}

func (p Pandoc) run(
	ctx context.Context,
	bin, path, span string,
) (string, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, bin, "-f", "typst", "-t", "latex")
	cmd.Env = append(os.Environ(), "PATH="+path)
	cmd.Stdin = strings.NewReader(span)

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()

	p.logger.TraceContext(ctx, "pandoc",
		slog.Int("bytes_in", len(span)),
		slog.Int("bytes_out", stdout.Len()),
		slog.Duration("elapsed", time.Since(start)))

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", errors.New("timed out after " + p.timeout.String())
		}

		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return "", err
		}

		return "", errors.New(msg)
	}

	return stdout.String(), nil
}

// lookPath finds program in the directories of path. A program containing a
// path separator is used as given.
func lookPath(program, path string) (string, error) {
	unavailable := func(err error) error {
		return ErrConverterUnavailable.Wrap(err).
			With(slog.String("program", program))
	}

	if strings.ContainsRune(program, filepath.Separator) {
		if err := executable(program); err != nil {
			return "", unavailable(err)
		}

		return program, nil
	}

	for _, dir := range filepath.SplitList(path) {
		if dir == "" {
			dir = "."
		}

		candidate := filepath.Join(dir, program)
		if executable(candidate) == nil {
			return candidate, nil
		}
	}

	return "", unavailable(exec.ErrNotFound)
}

func executable(file string) error {
	info, err := os.Stat(file)
	if err != nil {
		return err
	}

	if info.IsDir() || info.Mode()&0o111 == 0 {
		return os.ErrPermission
	}

	return nil
}
