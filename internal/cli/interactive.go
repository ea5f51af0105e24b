package cli

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/apresai/callcoach/internal/config"
)

// menuItem represents a single configurable option in the TUI.
type menuItem struct {
	label   string
	value   string
	options []menuOption
	editing bool
	cursor  int // cursor within options when editing
}

type menuOption struct {
	label string
	value string
}

// menuState tracks which phase the TUI is in.
type menuState int

const (
	stateMenu menuState = iota
	stateEditing
)

// tuiModel is the Bubble Tea model for the run wizard.
type tuiModel struct {
	base      config.Config
	items     []menuItem
	cursor    int
	state     menuState
	width     int
	err       error
	confirmed bool
	cancelled bool
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4")).
			MarginBottom(1)

	menuLabelStyle = lipgloss.NewStyle().
			Width(16).
			Align(lipgloss.Right).
			MarginRight(2)

	menuValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575"))

	menuValueDimStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#555555")).
				Italic(true)

	cursorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4")).
			Bold(true)

	optionStyle = lipgloss.NewStyle().
			PaddingLeft(4)

	selectedOptionStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#04B575")).
				Bold(true).
				PaddingLeft(2)

	buttonStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 3)

	buttonDimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#555555")).
			Padding(0, 3)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			MarginTop(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555")).
			Bold(true)

	headerBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("#7D56F4")).
			MarginBottom(1).
			PaddingBottom(0)
)

const (
	idxIterations = iota
	idxMaxTurns
	idxProvider
	idxModel
	idxTTS
	idxAssemble
	idxOutput
	idxDatabase
	idxStart
)

func buildMenuItems(cfg config.Config) []menuItem {
	items := []menuItem{
		idxIterations: {
			label: "Calls",
			value: strconv.Itoa(cfg.Learning.Iterations),
			options: []menuOption{
				{label: "3 (quick check)", value: "3"},
				{label: "5 (one per persona) (default)", value: "5"},
				{label: "10", value: "10"},
				{label: "20 (long run)", value: "20"},
			},
		},
		idxMaxTurns: {
			label: "Max turns",
			value: strconv.Itoa(cfg.Dialogue.MaxTurns),
			options: []menuOption{
				{label: "3 (short calls)", value: "3"},
				{label: "5 (default)", value: "5"},
				{label: "8 (long calls)", value: "8"},
			},
		},
		idxProvider: {
			label: "Model provider",
			value: cfg.Model.Provider,
			options: []menuOption{
				{label: "None (rules and templates only) (default)", value: config.ProviderNone},
				{label: "Claude", value: "claude"},
				{label: "OpenAI", value: "openai"},
				{label: "Gemini", value: "gemini"},
				{label: "Nova (Bedrock)", value: "nova"},
			},
		},
		idxModel: {
			label: "Model",
			value: cfg.Model.Model,
		},
		idxTTS: {
			label: "Voice",
			value: cfg.TTS.Provider,
			options: []menuOption{
				{label: "None (text only) (default)", value: config.ProviderNone},
				{label: "Mock (silent clips, no API)", value: "mock"},
				{label: "ElevenLabs", value: "elevenlabs"},
				{label: "Google Cloud TTS", value: "google"},
				{label: "Amazon Polly", value: "polly"},
			},
		},
		idxAssemble: {
			label: "Assemble audio",
			value: strconv.FormatBool(cfg.TTS.Assemble),
			options: []menuOption{
				{label: "No (default)", value: "false"},
				{label: "Yes (needs ffmpeg)", value: "true"},
			},
		},
		idxOutput: {
			label: "Output dir",
			value: cfg.Report.OutputDir,
		},
		idxDatabase: {
			label: "Database",
			value: cfg.Storage.Path,
		},
		idxStart: {
			label: ">>> Start <<<",
		},
	}

	for i := range items {
		for j, opt := range items[i].options {
			if opt.value == items[i].value {
				items[i].cursor = j
				break
			}
		}
	}
	return items
}

func initialTUIModel(cfg config.Config) tuiModel {
	return tuiModel{
		base:   cfg,
		items:  buildMenuItems(cfg),
		cursor: idxIterations,
		state:  stateMenu,
	}
}

func (m tuiModel) Init() tea.Cmd {
	return nil
}

func (m tuiModel) isTextInput(idx int) bool {
	return idx == idxModel || idx == idxOutput || idx == idxDatabase
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch m.state {
		case stateMenu:
			return m.updateMenu(msg)
		case stateEditing:
			return m.updateEditing(msg)
		}
	}
	return m, nil
}

func (m tuiModel) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		m.cancelled = true
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}

	case "enter", " ":
		if m.cursor == idxStart {
			if _, err := m.apply(); err != nil {
				m.err = err
				return m, nil
			}
			m.confirmed = true
			return m, tea.Quit
		}
		if m.isTextInput(m.cursor) || len(m.items[m.cursor].options) > 0 {
			m.state = stateEditing
			m.items[m.cursor].editing = true
			m.err = nil
		}
	}
	return m, nil
}

func (m tuiModel) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	item := &m.items[m.cursor]

	if m.isTextInput(m.cursor) {
		switch msg.String() {
		case "enter":
			item.editing = false
			m.state = stateMenu
			m.cursor++
		case "esc":
			item.editing = false
			m.state = stateMenu
		case "backspace":
			if len(item.value) > 0 {
				item.value = item.value[:len(item.value)-1]
			}
		case "ctrl+u":
			item.value = ""
		default:
			if msg.Type == tea.KeyRunes {
				item.value += string(msg.Runes)
			}
		}
		return m, nil
	}

	switch msg.String() {
	case "enter", " ":
		if item.cursor >= 0 && item.cursor < len(item.options) {
			item.value = item.options[item.cursor].value
		}
		item.editing = false
		m.state = stateMenu

		// A new provider invalidates the model id typed for the old one.
		if m.cursor == idxProvider {
			m.items[idxModel].value = ""
		}
		m.cursor++

	case "esc":
		item.editing = false
		m.state = stateMenu

	case "up", "k":
		if item.cursor > 0 {
			item.cursor--
		}

	case "down", "j":
		if item.cursor < len(item.options)-1 {
			item.cursor++
		}
	}
	return m, nil
}

// apply copies the wizard values onto the starting config and validates the
// result.
func (m tuiModel) apply() (config.Config, error) {
	cfg := m.base
	var err error
	if cfg.Learning.Iterations, err = strconv.Atoi(m.items[idxIterations].value); err != nil {
		return cfg, fmt.Errorf("calls: %w", err)
	}
	if cfg.Dialogue.MaxTurns, err = strconv.Atoi(m.items[idxMaxTurns].value); err != nil {
		return cfg, fmt.Errorf("max turns: %w", err)
	}
	cfg.Model.Provider = m.items[idxProvider].value
	cfg.Model.Model = strings.TrimSpace(m.items[idxModel].value)
	cfg.TTS.Provider = m.items[idxTTS].value
	cfg.TTS.Assemble = m.items[idxAssemble].value == "true"
	cfg.Report.OutputDir = strings.TrimSpace(m.items[idxOutput].value)
	cfg.Storage.Path = strings.TrimSpace(m.items[idxDatabase].value)
	return cfg, cfg.Validate()
}

func (m tuiModel) View() string {
	var b strings.Builder

	b.WriteString(headerBorder.Render(titleStyle.Render("Call Coach")))
	b.WriteString("\n")

	for i, item := range m.items {
		isActive := m.cursor == i

		if i == idxStart {
			b.WriteString("\n")
			if isActive {
				b.WriteString("  " + buttonStyle.Render(" Start "))
			} else {
				b.WriteString("  " + buttonDimStyle.Render(" Start "))
			}
			b.WriteString("\n")
			continue
		}

		cursor := "  "
		if isActive {
			cursor = cursorStyle.Render("> ")
		}
		renderedLabel := menuLabelStyle.Render(item.label)

		var renderedValue string
		switch {
		case item.editing && m.isTextInput(i):
			renderedValue = menuValueStyle.Render(item.value + "_")
		case item.value == "":
			placeholder := "(not set)"
			switch i {
			case idxModel:
				placeholder = "(provider default)"
			case idxDatabase:
				placeholder = "(no persistence)"
			}
			renderedValue = menuValueDimStyle.Render(placeholder)
		default:
			displayVal := item.value
			for _, opt := range item.options {
				if opt.value == item.value {
					displayVal = opt.label
					break
				}
			}
			renderedValue = menuValueStyle.Render(displayVal)
		}

		b.WriteString(cursor + renderedLabel + " " + renderedValue + "\n")

		if item.editing && len(item.options) > 0 {
			for j, opt := range item.options {
				if j == item.cursor {
					b.WriteString(selectedOptionStyle.Render("> "+opt.label) + "\n")
				} else {
					b.WriteString(optionStyle.Render("  "+opt.label) + "\n")
				}
			}
		}
	}

	if m.err != nil {
		b.WriteString("\n" + errorStyle.Render("  Error: "+m.err.Error()) + "\n")
	}

	switch m.state {
	case stateMenu:
		b.WriteString(helpStyle.Render("  j/k or arrows to navigate | enter to edit | q to quit"))
	case stateEditing:
		if m.isTextInput(m.cursor) {
			b.WriteString(helpStyle.Render("  type value | enter to confirm | esc to cancel | ctrl+u to clear"))
		} else {
			b.WriteString(helpStyle.Render("  j/k or arrows to pick | enter to select | esc to cancel"))
		}
	}
	b.WriteString("\n")

	return b.String()
}

// runInteractiveSetup shows the wizard seeded from cfg and returns the
// confirmed configuration.
func runInteractiveSetup(cfg config.Config) (config.Config, error) {
	p := tea.NewProgram(initialTUIModel(cfg), tea.WithAltScreen())
	result, err := p.Run()
	if err != nil {
		return cfg, fmt.Errorf("TUI error: %w", err)
	}

	final := result.(tuiModel)
	if final.cancelled || !final.confirmed {
		return cfg, fmt.Errorf("run cancelled")
	}
	return final.apply()
}
