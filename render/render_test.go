package render

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ardnew/typtex/convert"
	"github.com/ardnew/typtex/log"
	"github.com/ardnew/typtex/rule"
	"github.com/ardnew/typtex/typst"
)

type keys map[string]bool

func (k keys) Has(key string) bool { return k[key] }

func parse(t *testing.T, src string, k typst.KeySet) []typst.Node {
	t.Helper()

	nodes, err := typst.ParseString(context.Background(), src, k)
	if err != nil {
		t.Fatalf("ParseString(%q) error = %v", src, err)
	}

	return nodes
}

// upper is a converter double that marks what it converted.
var upper = convert.ConverterFunc(
	func(_ context.Context, span string, kind convert.Kind) (string, error) {
		return "<" + kind.String() + ":" + strings.ToUpper(span) + ">", nil
	},
)

func TestRender(t *testing.T) {
	tests := []struct {
		name string
		src  string
		keys typst.KeySet
		opts []Option
		want string
	}{
		{
			name: "environment with title",
			src:  "#theorem[Main\nAll $x$.] <thm:main>",
			want: "\\begin{theorem}[<title:MAIN>]\\label{thm:main}\n" +
				"<text:ALL $X$.>\n\\end{theorem}\n",
		},
		{
			name: "proof title becomes first body line",
			src:  "#proof[By induction\nDone.]",
			want: "\\begin{proof}\n<text:BY INDUCTION>\n<text:DONE.>\n\\end{proof}\n",
		},
		{
			name: "keys in title",
			src:  "#theorem[Halting (@turing36), cf. @lem:a.\nBody]",
			keys: keys{"turing36": true},
			want: "\\begin{theorem}[<title:HALTING (>\\cite{turing36}" +
				"<title:), CF.> \\thref{lem:a}<title:.>]\n<text:BODY>\n\\end{theorem}\n",
		},
		{
			name: "keys in untitled first line",
			src:  "#proof[Using @a\nDone.]",
			want: "\\begin{proof}\n<text:USING> \\thref{a}\n<text:DONE.>\n\\end{proof}\n",
		},
		{
			name: "custom title rule",
			src:  "#proof[Sketch\nX]",
			opts: []Option{WithTitleRule(rule.MustCompile[rule.TitleEnv]("true"))},
			want: "\\begin{proof}[<title:SKETCH>]\n<text:X>\n\\end{proof}\n",
		},
		{
			name: "citations and references keep spacing",
			src:  "See @a and @b.",
			keys: keys{"a": true},
			want: "<text:SEE> \\cite{a} <text:AND> \\thref{b}<text:.>",
		},
		{
			name: "reference command",
			src:  "@x",
			opts: []Option{WithRefCommand("cref"), WithCiteCommand("citep")},
			want: "\\cref{x}",
		},
		{
			name: "raw insert is verbatim",
			src:  "Top\n/* BEGIN TEX\n\\newpage\nEND TEX */\nEnd",
			want: "<text:TOP>\n\\newpage\n<text:END>",
		},
		{
			name: "figure with grid and caption",
			src:  "#figure(grid([a], [b]), caption: [Two @f.]) <fig:two>",
			want: "\\begin{figure}[htbp]\n\\centering\n" +
				"\\begin{minipage}{0.48\\textwidth}\n\\centering\n<text:A>\n\\end{minipage}\\hfill\n" +
				"\\begin{minipage}{0.48\\textwidth}\n\\centering\n<text:B>\n\\end{minipage}\n" +
				"\\caption{<caption:TWO> \\thref{f}<caption:.>}\n" +
				"\\label{fig:two}\n\\end{figure}\n",
		},
		{
			name: "standalone grid is centered",
			src:  "#grid[x]",
			want: "\\begin{center}\n\\begin{minipage}{0.96\\textwidth}\n\\centering\n" +
				"<text:X>\n\\end{minipage}\n\\end{center}\n",
		},
		{
			name: "dropped commands",
			src:  "#set text(\n  size: 11pt,\n)\n#show: rest => rest\nKept #set inline\n#image(\"a.png\")",
			want: "<text:KEPT #SET INLINE\n#IMAGE(\"A.PNG\")>",
		},
		{
			name: "whitespace leaves are not converted",
			src:  "A\n\n#lemma[L]\n\n",
			want: "<text:A>\n\n\\begin{lemma}\n<text:L>\n\\end{lemma}\n\n\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(append([]Option{WithConverter(upper)}, tt.opts...)...)

			got, err := r.RenderString(context.Background(), parse(t, tt.src, tt.keys))
			if err != nil {
				t.Fatalf("RenderString error = %v", err)
			}

			if got != tt.want {
				t.Errorf("RenderString =\n%q\nwant\n%q", got, tt.want)
			}
		})
	}
}

func TestRenderOrderUnderConcurrency(t *testing.T) {
	var src strings.Builder
	for i := range 40 {
		src.WriteString("#lemma[L\nbody ")
		src.WriteByte(byte('a' + i%26))
		src.WriteString(strings.Repeat("x", i))
		src.WriteString("]\n")
	}

	nodes := parse(t, src.String(), nil)

	slow := convert.ConverterFunc(
		func(_ context.Context, span string, _ convert.Kind) (string, error) {
			// Later spans finish first.
			time.Sleep(time.Duration(60-len(span)) * time.Millisecond / 10)

			return span, nil
		},
	)

	serial, err := New(WithConverter(slow), WithConcurrency(1)).RenderString(context.Background(), nodes)
	if err != nil {
		t.Fatal(err)
	}

	parallel, err := New(WithConverter(slow), WithConcurrency(16)).RenderString(context.Background(), nodes)
	if err != nil {
		t.Fatal(err)
	}

	if serial != parallel {
		t.Errorf("concurrent output differs from serial output")
	}

	if !strings.HasPrefix(serial, "\\begin{lemma}[L]\nbody a\n\\end{lemma}\n") {
		t.Errorf("unexpected start of output: %q", serial[:60])
	}
}

func TestRenderDeduplicates(t *testing.T) {
	var (
		mu    sync.Mutex
		calls = map[string]int{}
	)

	count := convert.ConverterFunc(
		func(_ context.Context, span string, kind convert.Kind) (string, error) {
			mu.Lock()
			calls[kind.String()+":"+span]++
			mu.Unlock()

			return span, nil
		},
	)

	nodes := parse(t, "#lemma[Same\nSame] #lemma[Same\nSame]", nil)

	if _, err := New(WithConverter(count)).RenderString(context.Background(), nodes); err != nil {
		t.Fatal(err)
	}

	want := map[string]int{"title:Same": 1, "text:Same": 1}
	for k, n := range want {
		if calls[k] != n {
			t.Errorf("calls[%s] = %d, want %d (all: %v)", k, calls[k], n, calls)
		}
	}
}

func TestRenderConverterFailure(t *testing.T) {
	var calls atomic.Int32

	failing := convert.ConverterFunc(
		func(_ context.Context, span string, _ convert.Kind) (string, error) {
			calls.Add(1)

			if span == "bad" {
				return "", convert.ErrConvert.Wrap(errors.New("pandoc exploded"))
			}

			return span, nil
		},
	)

	var buf bytes.Buffer

	err := New(WithConverter(failing)).Render(context.Background(), &buf,
		parse(t, "good\n#remark[bad]", nil))

	if !errors.Is(err, ErrConvert) || !errors.Is(err, convert.ErrConvert) {
		t.Fatalf("error = %v, want ErrConvert", err)
	}

	if buf.Len() != 0 {
		t.Errorf("partial output written: %q", buf.String())
	}
}

func TestRenderLogsStandaloneGrid(t *testing.T) {
	var logs bytes.Buffer

	logger := log.Make(&logs, log.WithFormat(log.FormatText))

	_, err := New(WithLogger(logger)).RenderString(context.Background(),
		parse(t, "#grid[a][b]", nil))
	if err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(logs.String(), "grid outside figure") {
		t.Errorf("no warning logged: %q", logs.String())
	}
}

func TestDropCommands(t *testing.T) {
	drop := rule.MustCompile[rule.DropEnv](`name in ["set", "let"]`)

	tests := []struct {
		in, want string
	}{
		{"#set page(a4)\nText", "Text"},
		{"  #let x = [\n  multi\n  line\n]\nAfter", "After"},
		{"#set text(font: \"a)b\")\nok", "ok"},
		{"#show x\nText", "#show x\nText"},
		{"Text #set inline", "Text #set inline"},
		{"no hash", "no hash"},
		{"#set", ""},
	}

	for _, tt := range tests {
		got, err := dropCommands(tt.in, drop)
		if err != nil {
			t.Fatalf("dropCommands(%q) error = %v", tt.in, err)
		}

		if got != tt.want {
			t.Errorf("dropCommands(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSpacing(t *testing.T) {
	for in, want := range map[string]string{
		"":         "",
		"  \t":     " ",
		" \n ":     "\n",
		"\n \n\n ": "\n\n",
	} {
		if got := spacing(in); got != want {
			t.Errorf("spacing(%q) = %q, want %q", in, got, want)
		}
	}
}
