package typst

import "strconv"

// Position is a location in the source document.
// Line and Column are 1-based; Column counts runes.
type Position struct {
	Offset int `json:"offset" yaml:"offset"`
	Line   int `json:"line"   yaml:"line"`
	Column int `json:"column" yaml:"column"`
}

// String returns the position as "line:column".
func (p Position) String() string {
	return strconv.Itoa(p.Line) + ":" + strconv.Itoa(p.Column)
}

// Node is an element of a parsed document. The concrete types are
// [*Text], [*Environment], [*Figure], [*Grid], [*Content], [*Citation],
// [*Reference], and [*RawInsert].
type Node interface {
	// Position returns where the node starts in the source.
	Position() Position

	node()
}

// Text is a run of markup not decomposed further by the parser.
type Text struct {
	Span string
	Pos  Position
}

// Environment is a theorem-like block: #kind[title⏎body].
//
// Heading holds the title split into Text, Citation and Reference nodes. It
// is nil unless the title contains an @key token.
type Environment struct {
	Title   *string
	Kind    string
	Label   string
	Heading []Node
	Body    []Node
	Pos     Position
}

// Figure is a #figure block. Caption is nil or a [*Content].
type Figure struct {
	Caption Node
	Label   string
	Body    []Node
	Pos     Position
}

// Grid is a #grid call. Each cell is a [*Content].
type Grid struct {
	Cells []Node
	Pos   Position
}

// Content is an anonymous bracket block such as a grid cell or caption.
type Content struct {
	Body []Node
	Pos  Position
}

// Citation is an @key token whose key names a bibliography entry.
type Citation struct {
	Key string
	Pos Position
}

// Reference is an @key token that refers to a label in the document.
type Reference struct {
	Key string
	Pos Position
}

// RawInsert is verbatim LaTeX from a TEX directive.
type RawInsert struct {
	Span string
	Pos  Position
}

func (n *Text) Position() Position        { return n.Pos }
func (n *Environment) Position() Position { return n.Pos }
func (n *Figure) Position() Position      { return n.Pos }
func (n *Grid) Position() Position        { return n.Pos }
func (n *Content) Position() Position     { return n.Pos }
func (n *Citation) Position() Position    { return n.Pos }
func (n *Reference) Position() Position   { return n.Pos }
func (n *RawInsert) Position() Position   { return n.Pos }

func (*Text) node()        {}
func (*Environment) node() {}
func (*Figure) node()      {}
func (*Grid) node()        {}
func (*Content) node()     {}
func (*Citation) node()    {}
func (*Reference) node()   {}
func (*RawInsert) node()   {}

// Walk visits nodes in document order, depth first. Children of a node are
// skipped when fn returns false for it.
func Walk(nodes []Node, fn func(Node) bool) {
	for _, n := range nodes {
		if !fn(n) {
			continue
		}

		switch n := n.(type) {
		case *Environment:
			Walk(n.Heading, fn)
			Walk(n.Body, fn)
		case *Figure:
			Walk(n.Body, fn)

			if n.Caption != nil {
				Walk([]Node{n.Caption}, fn)
			}
		case *Grid:
			Walk(n.Cells, fn)
		case *Content:
			Walk(n.Body, fn)
		}
	}
}
