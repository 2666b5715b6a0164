package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/tetratelabs/wazero"
	"golang.org/x/term"

	"github.com/wippyai/refbridge/host"
	"github.com/wippyai/refbridge/resource"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	statStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// maxHistory is the number of output entries kept on screen.
const maxHistory = 200

type historyEntry struct {
	err    error
	input  string
	output string
}

type interactiveModel struct {
	rt      wazero.Runtime
	bridge  *host.Bridge
	session *session
	title   string
	history []historyEntry
	input   textinput.Model
	height  int
}

func newInteractiveModel(title string, rt wazero.Runtime, b *host.Bridge, s *session) *interactiveModel {
	ti := textinput.New()
	ti.Placeholder = "help"
	ti.Prompt = promptStyle.Render("napi> ")
	ti.Width = 60
	ti.Focus()
	return &interactiveModel{
		rt:      rt,
		bridge:  b,
		session: s,
		title:   title,
		input:   ti,
	}
}

func (m *interactiveModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *interactiveModel) shutdown() {
	ctx := context.Background()
	if m.bridge != nil {
		_ = m.bridge.Close(ctx)
	}
	if m.rt != nil {
		_ = m.rt.Close(ctx)
	}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.shutdown()
			return m, tea.Quit

		case "enter":
			line := strings.TrimSpace(m.input.Value())
			m.input.SetValue("")
			if line == "" {
				return m, nil
			}
			if line == "quit" || line == "exit" {
				m.shutdown()
				return m, tea.Quit
			}
			out, err := m.session.exec(context.Background(), line)
			m.history = append(m.history, historyEntry{input: line, output: out, err: err})
			if len(m.history) > maxHistory {
				m.history = m.history[len(m.history)-maxHistory:]
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *interactiveModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("napictl"))
	b.WriteString(" ")
	b.WriteString(m.title)
	b.WriteString("\n")
	b.WriteString(statStyle.Render(m.stats()))
	b.WriteString("\n\n")

	entries := m.history
	if m.height > 0 {
		// two lines per entry plus the header, prompt and help
		if fit := (m.height - 7) / 2; fit > 0 && len(entries) > fit {
			entries = entries[len(entries)-fit:]
		}
	}
	for _, e := range entries {
		b.WriteString(helpStyle.Render("> " + e.input))
		b.WriteString("\n")
		if e.err != nil {
			b.WriteString(errorStyle.Render(e.err.Error()))
		} else if e.output != "" {
			b.WriteString(resultStyle.Render(e.output))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render("enter run • help commands • esc quit"))
	return b.String()
}

func (m *interactiveModel) stats() string {
	env := m.session.env()
	h := env.Handles()
	depth := 0
	if m.session.call != nil {
		for s := m.session.call.Scope(); s != nil; s = s.Parent() {
			depth++
		}
	}
	return fmt.Sprintf("refs %d • scopes %d • values %d • loose %d • heap %d cells • last status %d",
		h.Count(resource.KindReference),
		depth,
		h.Count(resource.KindValue),
		h.Count(resource.KindLooseValue),
		m.bridge.Heap().Len(),
		env.LastErrorInfo().Code)
}

func runInteractive(cfg *host.Config, wasmFile string) error {
	ctx := context.Background()
	rt, b, a, err := openBridge(ctx, cfg, wasmFile)
	if err != nil {
		return err
	}
	s := newSession(b, a)

	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		defer rt.Close(ctx)
		defer b.Close(ctx)
		return runLines(ctx, s, os.Stdin, os.Stdout)
	}

	title := wasmFile
	if title == "" {
		title = "(in-process env)"
	}
	p := tea.NewProgram(newInteractiveModel(title, rt, b, s), tea.WithAltScreen())
	_, err = p.Run()
	return err
}

// runLines is the plain REPL used when stdio is not a terminal.
func runLines(ctx context.Context, s *session, in io.Reader, out io.Writer) error {
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "napi> ")
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		if line == "quit" || line == "exit" {
			return nil
		}
		res, err := s.exec(ctx, line)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		if res != "" {
			fmt.Fprintln(out, res)
		}
	}
}
