package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/google/go-cmp/cmp"
)

func TestResolveValues(t *testing.T) {
	t.Parallel()

	const src = `
log-level: debug
log_pretty: true
jobs: 4
kinds: [theorem, lemma]
convert:
  timeout: 1m
`

	load := resolve(context.Background())

	res, err := load(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}

	got := res.(config)

	for name, want := range map[string]any{
		"log-level":  "debug",
		"log-pretty": true,
		"jobs":       "4",
		"kinds":      "theorem,lemma",
	} {
		value, ok := got.lookup(name)
		if !ok {
			t.Errorf("lookup(%q) not found", name)

			continue
		}

		if diff := cmp.Diff(want, value); diff != "" {
			t.Errorf("lookup(%q) mismatch (-want +got):\n%s", name, diff)
		}
	}

	if _, ok := got.lookup("convert"); ok {
		t.Error("lookup(convert) returned a section")
	}
}

func TestResolveEmpty(t *testing.T) {
	t.Parallel()

	res, err := resolve(context.Background())(strings.NewReader(""))
	if err != nil {
		t.Fatalf("empty config error = %v", err)
	}

	if v, err := res.Resolve(nil, nil, &kong.Flag{Value: &kong.Value{Name: "x"}}); v != nil || err != nil {
		t.Errorf("Resolve = %v, %v; want nil, nil", v, err)
	}
}

func TestResolveInvalid(t *testing.T) {
	t.Parallel()

	if _, err := resolve(context.Background())(strings.NewReader("a: [")); err == nil {
		t.Error("invalid config error = nil")
	}
}

func TestResolveKong(t *testing.T) {
	t.Parallel()

	var cli struct {
		Level string `default:"info"`
		Run   struct {
			Timeout time.Duration `default:"30s"`
			Jobs    int           `default:"1"`
			Kinds   []string      `sep:","`
		} `cmd:""`
	}

	path := filepath.Join(t.TempDir(), "config.yaml")

	err := os.WriteFile(path, []byte(
		"level: warn\njobs: 2\nrun:\n  timeout: 5s\n  kinds: [a, b]\n"), 0o600)
	if err != nil {
		t.Fatal(err)
	}

	parser, err := kong.New(&cli,
		kong.Configuration(resolve(context.Background()), path))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := parser.Parse([]string{"run", "--jobs=3"}); err != nil {
		t.Fatal(err)
	}

	if cli.Level != "warn" {
		t.Errorf("Level = %q, want warn", cli.Level)
	}

	if cli.Run.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", cli.Run.Timeout)
	}

	if cli.Run.Jobs != 3 {
		t.Errorf("Jobs = %d, want 3 (flag overrides file)", cli.Run.Jobs)
	}

	if diff := cmp.Diff([]string{"a", "b"}, cli.Run.Kinds); diff != "" {
		t.Errorf("Kinds mismatch (-want +got):\n%s", diff)
	}
}
