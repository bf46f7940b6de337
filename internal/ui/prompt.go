package ui

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// =============================================================================
// Bubbletea-based interactive prompts
// =============================================================================

// confirmModel is a bubbletea model for y/n confirmation.
type confirmModel struct {
	prompt   string
	cursor   int // 0 = yes, 1 = no
	decided  bool
	accepted bool
}

func (m confirmModel) Init() tea.Cmd { return nil }

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "y", "Y":
			m.accepted = true
			m.decided = true
			return m, tea.Quit
		case "n", "N":
			m.accepted = false
			m.decided = true
			return m, tea.Quit
		case "left", "h":
			m.cursor = 0
		case "right", "l":
			m.cursor = 1
		case "enter", " ":
			m.accepted = m.cursor == 0
			m.decided = true
			return m, tea.Quit
		case "ctrl+c", "esc":
			m.accepted = false
			m.decided = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m confirmModel) View() string {
	var yes, no string
	if m.cursor == 0 {
		yes = successStyle.Render("▸ Yes ")
		no = dimStyle.Render("  No  ")
	} else {
		yes = dimStyle.Render("  Yes ")
		no = errorStyle.Render("▸ No  ")
	}

	return fmt.Sprintf("%s\n\n  %s  %s\n\n%s",
		promptStyle.Render(m.prompt),
		yes, no,
		dimStyle.Render("  ←/→ to select • enter to confirm • y/n for quick select"))
}

// Confirm prompts the user with a yes/no question and returns the response.
func Confirm(prompt string) (bool, error) {
	m := confirmModel{prompt: prompt, cursor: 0}
	p := tea.NewProgram(m, tea.WithOutput(os.Stderr))
	result, err := p.Run()
	if err != nil {
		return false, err
	}
	fmt.Fprintln(os.Stderr) // newline after prompt
	return result.(confirmModel).accepted, nil
}

// pickModel is a bubbletea model for choosing one deviation amount.
type pickModel struct {
	prompt    string
	options   []int
	cursor    int
	chosen    int
	cancelled bool
}

func (m pickModel) Init() tea.Cmd { return nil }

func (m pickModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch key := msg.String(); key {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.options)-1 {
				m.cursor++
			}
		case "enter", " ":
			m.chosen = m.options[m.cursor]
			return m, tea.Quit
		case "ctrl+c", "esc", "q":
			m.cancelled = true
			return m, tea.Quit
		default:
			// Number keys jump straight to an option.
			if n, err := strconv.Atoi(key); err == nil && n >= 1 && n <= len(m.options) {
				m.cursor = n - 1
				m.chosen = m.options[m.cursor]
				return m, tea.Quit
			}
		}
	}
	return m, nil
}

func (m pickModel) View() string {
	var b strings.Builder
	b.WriteString(promptStyle.Render(m.prompt))
	b.WriteString("\n\n")
	for i, amount := range m.options {
		label := DeviationLabel(amount)
		if i == m.cursor {
			b.WriteString(successStyle.Render(fmt.Sprintf("  ▸ %d. %s", i+1, label)))
		} else {
			b.WriteString(dimStyle.Render(fmt.Sprintf("    %d. %s", i+1, label)))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("  ↑/↓ to move • enter to choose • 1-9 for quick select • esc to cancel"))
	return b.String()
}

// ErrCancelled is returned when the user backs out of a prompt.
var ErrCancelled = errors.New("cancelled")

// PickDeviation lets the user choose one amount from the deviation menu.
func PickDeviation(prompt string, options []int) (int, error) {
	if len(options) == 0 {
		return 0, fmt.Errorf("no deviation amounts to choose from")
	}
	m := pickModel{prompt: prompt, options: options}
	p := tea.NewProgram(m, tea.WithOutput(os.Stderr))
	result, err := p.Run()
	if err != nil {
		return 0, err
	}
	fmt.Fprintln(os.Stderr)
	final := result.(pickModel)
	if final.cancelled {
		return 0, ErrCancelled
	}
	return final.chosen, nil
}

// DeviationLabel renders a deviation amount for menus and tables.
func DeviationLabel(amount int) string {
	if amount == 0 {
		return "none"
	}
	return fmt.Sprintf("+%d kcal", amount)
}
