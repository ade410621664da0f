// Package repl implements an interactive preview of Typst to LaTeX
// conversion. Each entry is parsed and rendered with the identity converter,
// so the output shows the recovered structure with text spans unchanged.
package repl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ardnew/typtex/bib"
	"github.com/ardnew/typtex/log"
	"github.com/ardnew/typtex/render"
	"github.com/ardnew/typtex/rule"
	"github.com/ardnew/typtex/typst"
)

const (
	previewPrompt  = "➜ "
	continuePrompt = "… "
	ctrlPrompt     = " :"
)

func helpMessage() string {
	return `
: Commands (press Esc to toggle mode):

  help          Print this message
  keys          List bibliography keys
  kinds         List environment kinds
  tree          Toggle printing the parse tree
  title [EXPR]  Show or set the title rule (kind, title)
  drop [EXPR]   Show or set the drop rule (name)
  clear         Clear screen
  quit          Exit REPL

Usage:
  Type Typst markup to preview its LaTeX rendering
  End a line with \ to continue the entry on the next line
  Completions for @keys and #kinds appear as you type
  Press Tab / Shift-Tab to cycle through candidates
  Press Esc to toggle between preview and command modes
  Use Up/Down for history, Shift+Up/Shift+Down within the current mode
  Press Ctrl+C on empty line or Ctrl+D to exit
`
}

// inputMode is the current input mode.
type inputMode int

const (
	modePreview inputMode = iota
	modeCtrl
)

// Styles.
var (
	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("6")).
			Bold(true)
	ctrlPromptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("5")).
			Bold(true)
	inputStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	resultStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	hintStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	suggestionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	selectedStyle   = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("4"))
)

// Config configures a REPL session.
type Config struct {
	Keys     bib.Keys
	Kinds    []string
	CacheDir string // history is kept here; empty disables persistence
	Logger   log.Logger
}

// session holds what previews are rendered with. Commands replace it.
type session struct {
	keys     bib.Keys
	kinds    []string
	title    rule.Rule[rule.TitleEnv]
	drop     rule.Rule[rule.DropEnv]
	showTree bool
}

// preview parses and renders src.
func (s session) preview(ctx context.Context, logger log.Logger, src string) (string, error) {
	opts := []typst.Option{typst.WithLogger(logger)}
	if len(s.kinds) > 0 {
		opts = append(opts, typst.WithKinds(s.kinds...))
	}

	nodes, err := typst.ParseString(ctx, src, s.keys, opts...)
	if err != nil {
		var perr *typst.Error
		if errors.As(err, &perr) {
			if snippet := perr.Snippet(src); snippet != "" {
				return "", fmt.Errorf("%w\n%s", err, snippet)
			}
		}

		return "", err
	}

	var b strings.Builder

	if s.showTree {
		if err := typst.Format(ctx, &b, nodes, 2); err != nil {
			return "", err
		}

		b.WriteByte('\n')
	}

	out, err := render.New(
		render.WithLogger(logger),
		render.WithTitleRule(s.title),
		render.WithDropRule(s.drop),
	).RenderString(ctx, nodes)
	if err != nil {
		return "", err
	}

	b.WriteString(strings.TrimRight(out, "\n"))

	return b.String(), nil
}

// model is the Bubble Tea model for the REPL.
type model struct {
	ctxFunc      func() context.Context
	input        textinput.Model
	logger       log.Logger
	history      *History
	session      session
	completer    completer
	pending      []string // lines of an unfinished multi-line entry
	comp         completion
	historyIdx   int
	suggIdx      int    // selected candidate while tab-cycling
	preTabText   string // input before tab-cycling began
	preTabCursor int
	width        int
	mode         inputMode
	savedText    [2]string // input of each mode while the other is active
	tabActive    bool
	quitting     bool
}

// Run starts the REPL.
func Run(ctx context.Context, cfg Config) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	cfg.Logger.TraceContext(ctx, "repl start",
		slog.String("cache_dir", cfg.CacheDir),
		slog.Any("keys", cfg.Keys))

	path := ""
	if cfg.CacheDir != "" {
		path = filepath.Join(cfg.CacheDir, baseHistory)
	}

	history, err := LoadHistory(path)
	if err != nil {
		cfg.Logger.WarnContext(ctx, "could not load history", slog.Any("error", err))
	}

	p := tea.NewProgram(newModel(ctx, cfg, history), tea.WithContext(ctx))
	_, err = p.Run()

	return err
}

const defaultWidth = 80

func newModel(ctx context.Context, cfg Config, history *History) model {
	ti := textinput.New()
	ti.Prompt = promptStyle.Render(previewPrompt)
	ti.Focus()
	ti.CharLimit = 4096
	ti.Width = defaultWidth

	kinds := cfg.Kinds
	if len(kinds) == 0 {
		kinds = typst.DefaultKinds
	}

	return model{
		ctxFunc: func() context.Context { return ctx },
		input:   ti,
		logger:  cfg.Logger,
		history: history,
		session: session{
			keys:  cfg.Keys,
			kinds: kinds,
			title: rule.MustCompile[rule.TitleEnv](rule.DefaultTitle),
			drop:  rule.MustCompile[rule.DropEnv](rule.DefaultDrop),
		},
		completer:  newCompleter(cfg.Keys.Sorted(), kinds),
		historyIdx: history.Len(),
		suggIdx:    -1,
		width:      defaultWidth,
		mode:       modePreview,
	}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = msg.Width - len(previewPrompt) - 2

		return m, nil
	}

	var cmd tea.Cmd

	m.input, cmd = m.input.Update(msg)

	return m, cmd
}

func (m model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(m.input.View())
	b.WriteString("\n")

	switch {
	case m.historyIdx < m.history.Len():
		hint := fmt.Sprintf("%s/%d",
			lipgloss.NewStyle().Bold(true).Render(strconv.Itoa(m.historyIdx+1)),
			m.history.Len())
		b.WriteString(hintStyle.Render(hint))

	case len(m.comp.matches) > 0:
		selected := -1
		if m.tabActive {
			selected = m.suggIdx
		}

		b.WriteString(renderCandidateBar(m.comp.matches, selected, m.width))

	case strings.TrimSpace(m.input.Value()) == "":
		hint := "Type Typst markup or press Esc for commands"
		if m.mode == modeCtrl {
			hint = "Type: " + strings.Join(ctrlCommands, ", ") + " (press Esc to return)"
		} else if len(m.pending) > 0 {
			hint = "Continue the entry; end a line without \\ to preview"
		}

		b.WriteString(hintStyle.Render(hint))
	}

	b.WriteString("\n")

	return b.String()
}

func (m model) handleKey(msg tea.KeyMsg) (model, tea.Cmd) {
	m.logger.TraceContext(m.ctxFunc(), "repl keypress",
		slog.String("key", msg.String()))

	switch msg.Type {
	case tea.KeyCtrlC:
		if m.input.Value() == "" && len(m.pending) == 0 {
			m.quitting = true

			return m, tea.Quit
		}

		m.input.SetValue("")
		m.pending = nil
		m.input.Prompt = m.prompt()
		m.tabActive = false
		m.historyIdx = m.history.Len()
		m.refresh()

		return m, nil

	case tea.KeyCtrlD:
		if m.input.Value() == "" {
			m.quitting = true

			return m, tea.Quit
		}

		return m, nil

	case tea.KeyEnter:
		if m.tabActive {
			m.tabActive = false
			m.refresh()

			return m, nil
		}

		return m.executeInput()

	case tea.KeyTab:
		return m.cycle(1), nil

	case tea.KeyShiftTab:
		return m.cycle(-1), nil

	case tea.KeyUp:
		return m.recall(-1, true), nil

	case tea.KeyDown:
		return m.recall(1, true), nil

	case tea.KeyShiftUp:
		return m.recall(-1, false), nil

	case tea.KeyShiftDown:
		return m.recall(1, false), nil

	case tea.KeyEsc:
		if m.tabActive {
			m.tabActive = false
			m.input.SetValue(m.preTabText)
			m.input.SetCursor(m.preTabCursor)
			m.refresh()

			return m, nil
		}

		return m.switchMode(1 - m.mode), nil
	}

	// A space ends tab-cycling and keeps the candidate.
	if msg.Type == tea.KeyRunes || msg.Type == tea.KeySpace {
		m.tabActive = false
	}

	var cmd tea.Cmd

	m.historyIdx = m.history.Len()
	m.input, cmd = m.input.Update(msg)
	m.refresh()

	return m, cmd
}

// cycle moves the tab selection by step, replacing the current word.
func (m model) cycle(step int) model {
	n := len(m.comp.matches)
	if n == 0 {
		return m
	}

	if n == 1 {
		m.replaceWord(m.comp.matches[0].Str)
		m.tabActive = false
		m.comp.matches = nil

		return m
	}

	if m.tabActive {
		m.suggIdx = (m.suggIdx + step + n) % n
	} else {
		m.tabActive = true
		m.preTabText = m.input.Value()
		m.preTabCursor = m.input.Position()
		m.suggIdx = 0

		if step < 0 {
			m.suggIdx = n - 1
		}
	}

	m.replaceWord(m.comp.matches[m.suggIdx].Str)

	return m
}

// replaceWord replaces the completed range of the input with s.
func (m *model) replaceWord(s string) {
	input := m.input.Value()

	m.input.SetValue(input[:m.comp.start] + s + input[m.comp.end:])
	m.input.SetCursor(m.comp.start + len(s))
	m.comp.end = m.comp.start + len(s)
}

// refresh recomputes completions unless tab-cycling.
func (m *model) refresh() {
	if m.tabActive {
		return
	}

	m.comp = m.completer.complete(m.input.Value(), m.input.Position(), m.mode)
	m.suggIdx = -1
}

// recall moves through history by step. Unless all is set, only entries of
// the current mode are visited; otherwise the mode follows the entry.
func (m model) recall(step int, all bool) model {
	i := m.history.Find(m.historyIdx, step, m.mode, all)

	if i < 0 {
		if step > 0 {
			m.historyIdx = m.history.Len()
			m.input.SetValue("")
			m.refresh()
		}

		return m
	}

	line, mode, err := m.history.At(i)
	if err != nil {
		return m
	}

	if mode != m.mode {
		m = m.switchMode(mode)
	}

	m.historyIdx = i
	m.tabActive = false
	m.input.SetValue(strings.ReplaceAll(line, "\n", "\\n"))
	m.input.CursorEnd()
	m.comp = completion{}

	return m
}

func (m model) prompt() string {
	switch {
	case m.mode == modeCtrl:
		return ctrlPromptStyle.Render(ctrlPrompt)
	case len(m.pending) > 0:
		return promptStyle.Render(continuePrompt)
	default:
		return promptStyle.Render(previewPrompt)
	}
}

// switchMode switches to mode, keeping each mode's unfinished input.
func (m model) switchMode(mode inputMode) model {
	if mode == m.mode {
		return m
	}

	m.savedText[m.mode] = m.input.Value()
	m.mode = mode
	m.input.Prompt = m.prompt()
	m.input.SetValue(m.savedText[mode])
	m.input.CursorEnd()
	m.tabActive = false
	m.refresh()

	return m
}

func (m model) executeInput() (model, tea.Cmd) {
	raw := m.input.Value()

	m.input.SetValue("")
	m.comp = completion{}
	m.historyIdx = m.history.Len()

	if m.mode == modeCtrl {
		input := strings.TrimSpace(raw)
		if input == "" {
			return m, nil
		}

		m.addHistory(input, modeCtrl)

		return m.executeCommand(input)
	}

	// Recalled entries show line breaks as \n.
	raw = strings.ReplaceAll(raw, "\\n", "\n")

	if line, ok := strings.CutSuffix(raw, "\\"); ok {
		m.pending = append(m.pending, line)
		m.input.Prompt = m.prompt()

		return m, tea.Println(formatEcho(previewPrompt, raw))
	}

	echo := tea.Println(formatEcho(m.promptText(), raw))

	src := strings.Join(append(m.pending, raw), "\n")
	m.pending = nil
	m.input.Prompt = m.prompt()

	if strings.TrimSpace(src) == "" {
		return m, echo
	}

	m.addHistory(src, modePreview)

	out, err := m.session.preview(m.ctxFunc(), m.logger, src)
	if err != nil {
		m.logger.TraceContext(m.ctxFunc(), "repl preview failed", slog.Any("error", err))

		return m, tea.Sequence(echo, tea.Println(errorStyle.Render("error: "+err.Error())))
	}

	return m, tea.Sequence(echo, tea.Println(resultStyle.Render(out)))
}

func (m model) promptText() string {
	if len(m.pending) > 0 {
		return continuePrompt
	}

	return previewPrompt
}

func (m *model) addHistory(line string, mode inputMode) {
	if err := m.history.Add(line, mode); err != nil {
		m.logger.WarnContext(m.ctxFunc(), "could not save history", slog.Any("error", err))
	}

	m.historyIdx = m.history.Len()
}

// formatEcho formats an entered line for the scrollback.
func formatEcho(prompt, input string) string {
	style := promptStyle
	if prompt == ctrlPrompt {
		style = ctrlPromptStyle
	}

	return style.Render(prompt) + inputStyle.Render(input)
}

func (m model) executeCommand(input string) (model, tea.Cmd) {
	echo := tea.Println(formatEcho(ctrlPrompt, input))

	name, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	m.logger.TraceContext(m.ctxFunc(), "repl command",
		slog.String("command", name),
		slog.String("arg", arg))

	var reply string

	switch name {
	case "q", "quit", "exit":
		m.quitting = true

		return m, tea.Sequence(echo, tea.Quit)

	case "c", "clear":
		return m, tea.ClearScreen

	case "h", "help":
		reply = helpMessage()

	case "keys":
		reply = listing(m.session.keys.Sorted())

	case "kinds":
		reply = listing(m.session.kinds)

	case "tree":
		m.session.showTree = !m.session.showTree
		reply = hintStyle.Render(fmt.Sprintf("parse tree %s", onOff(m.session.showTree)))

	case "title":
		if arg == "" {
			reply = hintStyle.Render(m.session.title.Source())

			break
		}

		r, err := rule.Title(arg)
		if err != nil {
			return m, tea.Sequence(echo, tea.Println(errorStyle.Render("error: "+err.Error())))
		}

		m.session.title = r
		reply = resultStyle.Render("title rule set")

	case "drop":
		if arg == "" {
			reply = hintStyle.Render(m.session.drop.Source())

			break
		}

		r, err := rule.Drop(arg)
		if err != nil {
			return m, tea.Sequence(echo, tea.Println(errorStyle.Render("error: "+err.Error())))
		}

		m.session.drop = r
		reply = resultStyle.Render("drop rule set")

	default:
		return m, tea.Sequence(echo, tea.Println(
			errorStyle.Render("Unknown command: "+name+" (try 'help')")))
	}

	return m, tea.Sequence(echo, tea.Println(reply))
}

func listing(items []string) string {
	if len(items) == 0 {
		return hintStyle.Render("  (none)")
	}

	return "  " + strings.Join(items, "\n  ")
}

func onOff(v bool) string {
	if v {
		return "on"
	}

	return "off"
}
