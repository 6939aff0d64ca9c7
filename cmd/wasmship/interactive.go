package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.bytecodealliance.org/wit"

	"github.com/wasmship/wasmship/client"
	"github.com/wasmship/wasmship/protocol"
	"github.com/wasmship/wasmship/runtime"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#2F7D6D")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	disabledStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#808080")).
			Strikethrough(true)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#2F7D6D"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// caller is the part of client.Client the TUI needs.
type caller interface {
	Exports(ctx context.Context, ref protocol.Reference) ([]protocol.Export, error)
	Call(ctx context.Context, cmd protocol.Command) ([]string, error)
}

var _ caller = (*client.Client)(nil)

type interactiveModel struct {
	ctx      context.Context
	client   caller
	err      error
	ref      protocol.Reference
	result   []string
	funcs    []funcInfo
	inputs   []textinput.Model
	selected int
	focusIdx int
	state    modelState
	loaded   bool
}

type funcInfo struct {
	name    string
	params  []paramInfo
	results []string
}

type paramInfo struct {
	name    string
	typ     runtime.ValueType
	typeStr string
}

// invokable mirrors runtime.FunctionExport.Invokable for wire exports.
func (f funcInfo) invokable() bool {
	for _, p := range f.params {
		if p.typ == runtime.ValueTypeUnsupported {
			return false
		}
	}
	for _, r := range f.results {
		if runtime.ParseValueType(r) == runtime.ValueTypeUnsupported {
			return false
		}
	}
	return true
}

type modelState int

const (
	stateSelectFunc modelState = iota
	stateInputArgs
	stateShowResult
)

func newInteractiveModel(ctx context.Context, c caller, ref protocol.Reference) *interactiveModel {
	return &interactiveModel{
		ctx:    ctx,
		client: c,
		ref:    ref,
		state:  stateSelectFunc,
	}
}

type loadedMsg struct {
	err   error
	funcs []funcInfo
}

type callResultMsg struct {
	err    error
	result []string
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.loadExports
}

func (m *interactiveModel) loadExports() tea.Msg {
	exports, err := m.client.Exports(m.ctx, m.ref)
	if err != nil {
		return loadedMsg{err: err}
	}
	return loadedMsg{funcs: funcInfos(exports)}
}

func funcInfos(exports []protocol.Export) []funcInfo {
	funcs := make([]funcInfo, 0, len(exports))
	for _, e := range exports {
		fi := funcInfo{name: e.Name, results: e.Results}
		for i, p := range e.Params {
			typ := runtime.ParseValueType(p)
			fi.params = append(fi.params, paramInfo{
				name:    fmt.Sprintf("arg%d", i),
				typ:     typ,
				typeStr: witTypeStr(typ.WIT(), p),
			})
		}
		funcs = append(funcs, fi)
	}
	sort.Slice(funcs, func(i, j int) bool { return funcs[i].name < funcs[j].name })
	return funcs
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "q":
			if m.state != stateInputArgs {
				return m, tea.Quit
			}

		case "up", "k":
			if m.state == stateSelectFunc && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectFunc && m.selected < len(m.funcs)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateSelectFunc:
				if len(m.funcs) == 0 || !m.funcs[m.selected].invokable() {
					return m, nil
				}
				m.prepareInputs()
				if len(m.inputs) == 0 {
					return m, m.callFunction
				}
				m.state = stateInputArgs
				return m, nil

			case stateInputArgs:
				if err := m.checkInputs(); err != nil {
					m.err = err
					return m, nil
				}
				return m, m.callFunction

			case stateShowResult:
				m.reset()
				return m, nil
			}

		case "tab":
			if m.state == stateInputArgs && len(m.inputs) > 1 {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
			}

		case "esc":
			if m.state != stateSelectFunc {
				m.reset()
				return m, nil
			}
		}

	case loadedMsg:
		m.loaded = true
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.funcs = msg.funcs

	case callResultMsg:
		m.result = msg.result
		m.err = msg.err
		m.state = stateShowResult
	}

	if m.state == stateInputArgs {
		var cmds []tea.Cmd
		for i := range m.inputs {
			var cmd tea.Cmd
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

func (m *interactiveModel) reset() {
	m.state = stateSelectFunc
	m.inputs = nil
	m.result = nil
	m.err = nil
}

func (m *interactiveModel) prepareInputs() {
	f := m.funcs[m.selected]
	m.inputs = make([]textinput.Model, len(f.params))
	for i, p := range f.params {
		ti := textinput.New()
		ti.Placeholder = p.typeStr
		ti.Prompt = p.name + ": "
		ti.Width = 40
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	m.focusIdx = 0
}

// checkInputs parses every field locally so typos never reach the daemon.
func (m *interactiveModel) checkInputs() error {
	f := m.funcs[m.selected]
	for i, input := range m.inputs {
		if _, err := f.params[i].typ.Parse(strings.TrimSpace(input.Value())); err != nil {
			return fmt.Errorf("%s: %w", f.params[i].name, err)
		}
	}
	return nil
}

func (m *interactiveModel) callFunction() tea.Msg {
	f := m.funcs[m.selected]
	args := make([]string, len(m.inputs))
	for i, input := range m.inputs {
		args[i] = strings.TrimSpace(input.Value())
	}

	lines, err := m.client.Call(m.ctx, protocol.Command{
		Command:  protocol.CommandRun,
		Module:   m.ref.String(),
		Function: f.name,
		Args:     args,
	})
	return callResultMsg{result: lines, err: err}
}

func (m *interactiveModel) View() string {
	if m.err != nil && m.state == stateSelectFunc {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}
	if !m.loaded {
		return "Loading exports..."
	}
	if len(m.funcs) == 0 {
		return fmt.Sprintf("%s exports no functions.\n\nPress q to quit.", m.ref)
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("wasmship"))
	b.WriteString(" ")
	b.WriteString(m.ref.String())
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectFunc:
		b.WriteString("Select a function to call:\n\n")
		for i, f := range m.funcs {
			line := m.formatFunc(f)
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter call • q quit"))

	case stateInputArgs:
		f := m.funcs[m.selected]
		b.WriteString(fmt.Sprintf("Calling %s\n\n", funcStyle.Render(f.name)))
		for i, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString(" ")
			b.WriteString(typeStyle.Render(f.params[i].typeStr))
			b.WriteString("\n")
		}
		if m.err != nil {
			b.WriteString("\n")
			b.WriteString(errorStyle.Render(m.err.Error()))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter call • esc back"))

	case stateShowResult:
		f := m.funcs[m.selected]
		b.WriteString(fmt.Sprintf("Result of %s:\n\n", funcStyle.Render(f.name)))
		switch {
		case m.err != nil:
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		case len(m.result) == 0:
			b.WriteString(helpStyle.Render("(no results)"))
		default:
			b.WriteString(resultStyle.Render(strings.Join(m.result, "\n")))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	return b.String()
}

func (m *interactiveModel) formatFunc(f funcInfo) string {
	if !f.invokable() {
		return disabledStyle.Render(f.name+"("+strings.Join(rawTypes(f), ", ")+")") + " " + helpStyle.Render("unsupported signature")
	}
	var params []string
	for _, p := range f.params {
		params = append(params, p.name+": "+typeStyle.Render(p.typeStr))
	}
	result := ""
	if len(f.results) > 0 {
		result = " -> " + typeStyle.Render(strings.Join(f.results, ", "))
	}
	return funcStyle.Render(f.name) + "(" + strings.Join(params, ", ") + ")" + result
}

func rawTypes(f funcInfo) []string {
	types := make([]string, len(f.params))
	for i, p := range f.params {
		types[i] = p.typeStr
	}
	return types
}

// witTypeStr labels a parameter with its WIT spelling, falling back to the
// wire name for types without one.
func witTypeStr(t wit.Type, fallback string) string {
	switch t.(type) {
	case wit.Bool:
		return "bool"
	case wit.S32:
		return "s32"
	case wit.U32:
		return "u32"
	case wit.S64:
		return "s64"
	case wit.U64:
		return "u64"
	case wit.F32:
		return "f32"
	case wit.F64:
		return "f64"
	case wit.String:
		return "string"
	default:
		return fallback
	}
}

func runInteractive(ctx context.Context, c caller, ref protocol.Reference) error {
	p := tea.NewProgram(newInteractiveModel(ctx, c, ref), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
