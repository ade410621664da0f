package cmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/kong"

	"github.com/ardnew/typtex/typst"
)

// kongContext returns a context carrying a kong context with vars.
func kongContext(t *testing.T, cli any, vars kong.Vars, args ...string) context.Context {
	t.Helper()

	parser, err := kong.New(cli, vars)
	if err != nil {
		t.Fatal(err)
	}

	ktx, err := parser.Parse(args)
	if err != nil {
		t.Fatal(err)
	}

	return WithContext(context.Background(), ktx)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	return path
}

func TestOutputPath(t *testing.T) {
	for in, want := range map[string]string{
		"paper.typ":      "paper.tex",
		"dir/a.b.typ":    "dir/a.b.tex",
		"noext":          "noext.tex",
		stdio:            stdio,
		"/abs/paper.typ": "/abs/paper.tex",
	} {
		if got := outputPath(in); got != want {
			t.Errorf("outputPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestReadInput(t *testing.T) {
	const src = "#theorem[T\nx]"

	utf16 := []byte{0xFF, 0xFE}
	for _, c := range []byte(src) {
		utf16 = append(utf16, c, 0)
	}

	dir := t.TempDir()

	inputs := map[string][]byte{
		"utf-8":          []byte(src),
		"utf-8 with bom": append([]byte{0xEF, 0xBB, 0xBF}, src...),
		"utf-16le":       utf16,
	}

	for name, content := range inputs {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, dir, name+".typ", string(content))

			got, err := readInput(path)
			if err != nil {
				t.Fatal(err)
			}

			if got != src {
				t.Fatalf("readInput = %q, want %q", got, src)
			}

			nodes, err := Source{}.parse(context.Background(), path, got, nil)
			if err != nil {
				t.Fatal(err)
			}

			if len(nodes) != 1 {
				t.Fatalf("parse = %d nodes, want 1", len(nodes))
			}

			if _, ok := nodes[0].(*typst.Environment); !ok {
				t.Errorf("node = %T, want *typst.Environment", nodes[0])
			}
		})
	}

	if _, err := readInput(filepath.Join(dir, "gone.typ")); !errors.Is(err, ErrReadInput) {
		t.Errorf("missing input error = %v, want %v", err, ErrReadInput)
	}
}

func TestSourceKeys(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "paper.typ", "")
	writeFile(t, dir, "refs.bib", "@book{knuth84,\n}\n")
	other := writeFile(t, dir, "other.bib", "@misc{x,\n}\n")

	tests := []struct {
		name   string
		src    Source
		header string
		want   []string
	}{
		{"header", Source{}, "refs.bib", []string{"knuth84"}},
		{"explicit wins", Source{Bib: other}, "refs.bib", []string{"x"}},
		{"missing header file", Source{}, "gone.bib", nil},
		{"no bibliography", Source{}, "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keys, err := tt.src.keys(context.Background(), input, tt.header)
			if err != nil {
				t.Fatal(err)
			}

			got := keys.Sorted()
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("keys = %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := (Source{Bib: filepath.Join(dir, "gone.bib")}).keys(
		context.Background(), input, ""); err == nil {
		t.Error("missing explicit bibliography error = nil")
	}
}

func TestConvertRun(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "refs.bib", "@article{turing36,\n}\n")

	input := writeFile(t, dir, "paper.typ", `#show: paper.with(
  title: [Computable Numbers],
  authors: (name: "A. M. Turing", affiliation: "King's College"),
  bibliography: bibliography("refs.bib"),
)

As shown in @turing36, see @thm:halt.

#theorem[Halting
No machine decides halting.] <thm:halt>
`)

	c := Convert{
		Source: Source{},
		Render: Render{NoConvert: true, RefCommand: "thref", CiteCommand: "cite"},
		Input:  input,
	}

	if err := c.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	out, err := os.ReadFile(filepath.Join(dir, "paper.tex"))
	if err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{
		`\title{Computable Numbers}`,
		`\author{A. M. Turing\\`,
		`\addbibresource{refs.bib}`,
		`As shown in \cite{turing36}, see \thref{thm:halt}.`,
		"\\begin{theorem}[Halting]\\label{thm:halt}\nNo machine decides halting.\n\\end{theorem}",
		`\date{\today}`,
	} {
		if !strings.Contains(string(out), want) {
			t.Errorf("output lacks %q:\n%s", want, out)
		}
	}

	if strings.Contains(string(out), "#show") {
		t.Errorf("header command was not dropped:\n%s", out)
	}
}

func TestConvertBody(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "a.typ", "#lemma[X]")
	output := filepath.Join(dir, "out.tex")

	c := Convert{
		Render: Render{NoConvert: true},
		Output: output,
		Body:   true,
		Input:  input,
	}

	if err := c.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	out, err := os.ReadFile(output)
	if err != nil {
		t.Fatal(err)
	}

	if want := "\\begin{lemma}\nX\n\\end{lemma}\n"; string(out) != want {
		t.Errorf("body = %q, want %q", out, want)
	}
}

func TestConvertParseError(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "bad.typ", "#theorem[never closed")

	c := Convert{Render: Render{NoConvert: true}, Input: input}

	if err := c.Run(context.Background()); err == nil {
		t.Fatal("Run error = nil")
	}

	if _, err := os.Stat(filepath.Join(dir, "bad.tex")); err == nil {
		t.Error("output written despite parse error")
	}
}

func TestRenderRules(t *testing.T) {
	if _, _, err := (Render{NoConvert: true, TitleRule: "kind +"}).renderer(context.Background()); err == nil {
		t.Error("invalid title rule error = nil")
	}

	if _, _, err := (Render{NoConvert: true, DropRule: "name =="}).renderer(context.Background()); err == nil {
		t.Error("invalid drop rule error = nil")
	}

	if _, _, err := (Render{Pandoc: "typtex-no-such-pandoc"}).renderer(context.Background()); err == nil {
		t.Error("missing pandoc error = nil")
	}
}
