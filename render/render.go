// Package render emits LaTeX for a parsed document.
//
// Rendering runs in two passes. The first collects every leaf that needs
// conversion (text spans, titles and captions) and converts the distinct ones
// concurrently. The second walks the tree again and writes the structure,
// splicing converted leaves back in document order. Nothing is written if
// any conversion fails.
package render

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ardnew/typtex/convert"
	"github.com/ardnew/typtex/log"
	"github.com/ardnew/typtex/pkg"
	"github.com/ardnew/typtex/rule"
	"github.com/ardnew/typtex/typst"
)

// Predefined errors (sentinel values).
var (
	ErrConvert = pkg.NewError("convert leaf")
	ErrRule    = pkg.NewError("apply rule")
	ErrWrite   = pkg.NewError("write output")
)

// Renderer converts parse trees to LaTeX. It is safe for concurrent use.
type Renderer struct {
	conv        convert.Converter
	logger      log.Logger
	refCommand  string
	citeCommand string
	title       rule.Rule[rule.TitleEnv]
	drop        rule.Rule[rule.DropEnv]
	jobs        int
}

// New returns a renderer using [convert.Identity], one conversion per CPU,
// and the default rules, unless overridden by opts.
func New(opts ...Option) *Renderer {
	r := &Renderer{
		conv:        convert.Identity,
		refCommand:  DefaultRefCommand,
		citeCommand: DefaultCiteCommand,
		title:       rule.MustCompile[rule.TitleEnv](rule.DefaultTitle),
		drop:        rule.MustCompile[rule.DropEnv](rule.DefaultDrop),
		jobs:        runtime.NumCPU(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Render writes the LaTeX for nodes to w.
func (r *Renderer) Render(ctx context.Context, w io.Writer, nodes []typst.Node) error {
	s, err := r.RenderString(ctx, nodes)
	if err != nil {
		return err
	}

	if _, err := io.WriteString(w, s); err != nil {
		return ErrWrite.Wrap(err)
	}

	return nil
}

// RenderString returns the LaTeX for nodes.
func (r *Renderer) RenderString(ctx context.Context, nodes []typst.Node) (string, error) {
	p := &plan{titled: map[*typst.Environment]bool{}}

	if err := r.collect(nodes, convert.KindText, p); err != nil {
		return "", err
	}

	results, err := r.convert(ctx, p.leaves)
	if err != nil {
		return "", err
	}

	e := &emitter{r: r, ctx: ctx, plan: p, results: results, w: &strings.Builder{}}
	e.nodes(nodes, false)

	return e.w.String(), nil
}

// leaf is a span awaiting conversion. The surrounding whitespace of text
// spans is kept aside and restored, normalized, around the converted core.
type leaf struct {
	core  string
	lead  string
	trail string
	pos   typst.Position
	kind  convert.Kind
}

type plan struct {
	titled map[*typst.Environment]bool
	leaves []leaf
}

func (p *plan) add(span string, kind convert.Kind, pos typst.Position) {
	core := strings.TrimSpace(span)
	l := leaf{core: core, kind: kind, pos: pos}

	if core == "" {
		l.lead = spacing(span)
	} else {
		i := strings.Index(span, core)
		l.lead = spacing(span[:i])
		l.trail = spacing(span[i+len(core):])
	}

	p.leaves = append(p.leaves, l)
}

// spacing reduces whitespace to a paragraph break, a line break, a space,
// or nothing.
func spacing(ws string) string {
	switch n := strings.Count(ws, "\n"); {
	case n >= 2:
		return "\n\n"
	case n == 1:
		return "\n"
	case ws != "":
		return " "
	default:
		return ""
	}
}

// collect appends the leaves of nodes to p in the order the emitter
// consumes them.
func (r *Renderer) collect(nodes []typst.Node, kind convert.Kind, p *plan) error {
	for _, n := range nodes {
		switch n := n.(type) {
		case *typst.Text:
			span, err := dropCommands(n.Span, r.drop)
			if err != nil {
				return ErrRule.Wrap(err).With(slog.String("at", n.Pos.String()))
			}

			p.add(span, kind, n.Pos)

		case *typst.Environment:
			if n.Title != nil {
				ok, err := r.title.Eval(rule.TitleEnv{Kind: n.Kind, Title: *n.Title})
				if err != nil {
					return ErrRule.Wrap(err).With(slog.String("at", n.Pos.String()))
				}

				p.titled[n] = ok

				k := convert.KindText
				if ok {
					k = convert.KindTitle
				}

				if n.Heading == nil {
					p.add(*n.Title, k, n.Pos)
				}

				for _, h := range n.Heading {
					if t, isText := h.(*typst.Text); isText {
						p.add(t.Span, k, t.Pos)
					}
				}
			}

			if err := r.collect(n.Body, convert.KindText, p); err != nil {
				return err
			}

		case *typst.Figure:
			if err := r.collect(n.Body, kind, p); err != nil {
				return err
			}

			if n.Caption != nil {
				err := r.collect([]typst.Node{n.Caption}, convert.KindCaption, p)
				if err != nil {
					return err
				}
			}

		case *typst.Grid:
			if err := r.collect(n.Cells, kind, p); err != nil {
				return err
			}

		case *typst.Content:
			if err := r.collect(n.Body, kind, p); err != nil {
				return err
			}
		}
	}

	return nil
}

type leafKey struct {
	core string
	kind convert.Kind
}

// convert converts the distinct leaves concurrently and returns the result
// for each leaf by index.
func (r *Renderer) convert(ctx context.Context, leaves []leaf) ([]string, error) {
	first := make(map[leafKey]int, len(leaves))

	for i, l := range leaves {
		if l.core == "" {
			continue
		}

		if _, ok := first[leafKey{l.core, l.kind}]; !ok {
			first[leafKey{l.core, l.kind}] = i
		}
	}

	outputs := make([]string, len(leaves))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.jobs)

	for _, i := range first {
		l := leaves[i]

		g.Go(func() error {
			out, err := r.conv.Convert(gctx, l.core, l.kind)
			if err != nil {
				return ErrConvert.Wrap(err).With(
					slog.String("at", l.pos.String()),
					slog.String("kind", l.kind.String()))
			}

			outputs[i] = out

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := make([]string, len(leaves))

	for i, l := range leaves {
		if l.core == "" {
			continue
		}

		results[i] = outputs[first[leafKey{l.core, l.kind}]]
	}

	r.logger.DebugContext(ctx, "converted leaves",
		slog.Int("leaves", len(leaves)),
		slog.Int("distinct", len(first)),
		slog.Int("jobs", r.jobs))

	return results, nil
}

// emitter writes the second pass. Leaves are consumed in collection order.
type emitter struct {
	r       *Renderer
	ctx     context.Context
	plan    *plan
	w       *strings.Builder
	results []string
	next    int
}

// take returns the next converted leaf with its spacing restored.
func (e *emitter) take() string {
	l := e.plan.leaves[e.next]
	out := e.results[e.next]
	e.next++

	if out == "" {
		return l.lead + l.trail
	}

	return l.lead + out + l.trail
}

// line starts a new line unless the output is empty or already at one.
func (e *emitter) line() {
	if s := e.w.String(); s != "" && !strings.HasSuffix(s, "\n") {
		e.w.WriteByte('\n')
	}
}

// capture returns what fn emits instead of writing it.
func (e *emitter) capture(fn func()) string {
	saved := e.w
	e.w = &strings.Builder{}

	fn()

	s := e.w.String()
	e.w = saved

	return s
}

func (e *emitter) nodes(nodes []typst.Node, inFigure bool) {
	for _, n := range nodes {
		e.node(n, inFigure)
	}
}

func (e *emitter) node(n typst.Node, inFigure bool) {
	switch n := n.(type) {
	case *typst.Text:
		e.w.WriteString(e.take())

	case *typst.Citation:
		fmt.Fprintf(e.w, `\%s{%s}`, e.r.citeCommand, n.Key)

	case *typst.Reference:
		fmt.Fprintf(e.w, `\%s{%s}`, e.r.refCommand, n.Key)

	case *typst.RawInsert:
		e.line()
		e.w.WriteString(n.Span)
		e.w.WriteByte('\n')

	case *typst.Environment:
		e.environment(n)

	case *typst.Figure:
		e.figure(n)

	case *typst.Grid:
		e.grid(n, inFigure)

	case *typst.Content:
		e.nodes(n.Body, inFigure)
	}
}

func (e *emitter) environment(n *typst.Environment) {
	e.line()
	fmt.Fprintf(e.w, `\begin{%s}`, n.Kind)

	titled := e.plan.titled[n]

	var heading string
	if n.Title != nil {
		heading = strings.TrimSpace(e.heading(n))
	}

	if n.Title != nil && titled {
		fmt.Fprintf(e.w, "[%s]", heading)
	}

	if n.Label != "" {
		fmt.Fprintf(e.w, `\label{%s}`, n.Label)
	}

	e.w.WriteByte('\n')

	if n.Title != nil && !titled {
		e.w.WriteString(heading)
		e.w.WriteByte('\n')
	}

	e.nodes(n.Body, false)
	e.line()
	fmt.Fprintf(e.w, "\\end{%s}\n", n.Kind)
}

// heading returns the rendered title of n.
func (e *emitter) heading(n *typst.Environment) string {
	if n.Heading == nil {
		return e.take()
	}

	return e.capture(func() { e.nodes(n.Heading, false) })
}

func (e *emitter) figure(n *typst.Figure) {
	e.line()
	e.w.WriteString("\\begin{figure}[htbp]\n\\centering\n")
	e.nodes(n.Body, true)

	if n.Caption != nil {
		caption := e.capture(func() { e.node(n.Caption, true) })

		e.line()
		fmt.Fprintf(e.w, "\\caption{%s}\n", strings.TrimSpace(caption))
	}

	if n.Label != "" {
		e.line()
		fmt.Fprintf(e.w, "\\label{%s}\n", n.Label)
	}

	e.line()
	e.w.WriteString("\\end{figure}\n")
}

func (e *emitter) grid(n *typst.Grid, inFigure bool) {
	if len(n.Cells) == 0 {
		return
	}

	if !inFigure {
		e.r.logger.WarnContext(e.ctx, "grid outside figure rendered centered",
			slog.String("at", n.Pos.String()))
		e.line()
		e.w.WriteString("\\begin{center}\n")
	}

	width := fmt.Sprintf("%.2f", 0.96/float64(len(n.Cells)))

	for i, cell := range n.Cells {
		e.line()
		fmt.Fprintf(e.w, "\\begin{minipage}{%s\\textwidth}\n\\centering\n", width)
		e.node(cell, true)
		e.line()
		e.w.WriteString("\\end{minipage}")

		if i < len(n.Cells)-1 {
			e.w.WriteString("\\hfill")
		}

		e.w.WriteByte('\n')
	}

	if !inFigure {
		e.w.WriteString("\\end{center}\n")
	}
}
