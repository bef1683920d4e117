package selector

import (
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/dikkadev/addonmgr/pkg/rules"
)

// ErrCancelled is returned when the user leaves the picker without confirming
var ErrCancelled = errors.New("rule selection cancelled")

var descriptions = map[rules.UpdateRule]string{
	rules.RuleDisableAutoUpdate: "skip during `update` without arguments",
	rules.RulePinVersion:        "never move off the installed version",
	rules.RulePinMajor:          "only accept releases with the same major version",
	rules.RulePinMinor:          "only accept releases with the same major.minor version",
}

// RuleItem is one toggleable rule in the picker
type RuleItem struct {
	rule    rules.UpdateRule
	checked bool
}

// Title returns the rule's text form
func (i RuleItem) Title() string {
	return i.rule.String()
}

// Description explains what the rule does
func (i RuleItem) Description() string {
	return descriptions[i.rule]
}

// FilterValue implements list.Item
func (i RuleItem) FilterValue() string {
	return i.rule.String()
}

type ruleDelegate struct{}

func (d ruleDelegate) Height() int                             { return 1 }
func (d ruleDelegate) Spacing() int                            { return 0 }
func (d ruleDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (d ruleDelegate) Render(w io.Writer, m list.Model, index int, listItem list.Item) {
	item, ok := listItem.(RuleItem)
	if !ok {
		return
	}

	cursor := "  "
	if index == m.Index() {
		cursor = "> "
	}
	box := "[ ]"
	if item.checked {
		box = "[x]"
	}
	fmt.Fprintf(w, "%s%s %-20s %s", cursor, box, item.Title(), item.Description())
}

type model struct {
	list      list.Model
	confirmed bool
	quitting  bool
}

func newModel(id string, current []rules.UpdateRule) model {
	all := rules.All()
	items := make([]list.Item, len(all))
	for i, rule := range all {
		items[i] = RuleItem{rule: rule, checked: slices.Contains(current, rule)}
	}

	l := list.New(items, ruleDelegate{}, 80, len(items)+8)
	l.Title = fmt.Sprintf("Update rules for %s", id)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)

	return model{list: l}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			m.confirmed = true
			return m, tea.Quit
		case " ", "x":
			return m, m.toggle()
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *model) toggle() tea.Cmd {
	item, ok := m.list.SelectedItem().(RuleItem)
	if !ok {
		return nil
	}
	item.checked = !item.checked
	return m.list.SetItem(m.list.Index(), item)
}

// chosen returns the checked rules in declaration order
func (m model) chosen() []rules.UpdateRule {
	var out []rules.UpdateRule
	for _, it := range m.list.Items() {
		if item, ok := it.(RuleItem); ok && item.checked {
			out = append(out, item.rule)
		}
	}
	return out
}

func (m model) View() string {
	if m.quitting || m.confirmed {
		return ""
	}

	help := "\nNavigate: ↑/↓ • Toggle: Space/x • Confirm: Enter • Cancel: Esc/q\n"
	return m.list.View() + help
}

// SelectRules lets the user pick the update rules for an add-on, starting
// from current. It returns ErrCancelled if the picker is dismissed.
func SelectRules(id string, current []rules.UpdateRule) ([]rules.UpdateRule, error) {
	prog := tea.NewProgram(newModel(id, current))
	finalModel, err := prog.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to run UI: %w", err)
	}

	m, ok := finalModel.(model)
	if !ok || !m.confirmed {
		return nil, ErrCancelled
	}
	return m.chosen(), nil
}

// Diff returns the rules to add and to remove to get from current to chosen
func Diff(current, chosen []rules.UpdateRule) (add, remove []rules.UpdateRule) {
	for _, rule := range chosen {
		if !slices.Contains(current, rule) {
			add = append(add, rule)
		}
	}
	for _, rule := range current {
		if !slices.Contains(chosen, rule) {
			remove = append(remove, rule)
		}
	}
	return add, remove
}
