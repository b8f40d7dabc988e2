package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/cwoolley/solmcp/internal/connectors"
)

// SearchFunc is the function signature for performing a search.
type SearchFunc func(ctx context.Context, query string) ([]connectors.Result, error)

// FetchFunc is the function signature for looking up one result's detail.
type FetchFunc func(ctx context.Context, id string) (connectors.Detail, error)

type state int

const (
	stateInput state = iota
	stateLoading
	stateResults
	stateDetail
)

// searchResultMsg is sent when search results arrive. seq identifies the
// request that produced it.
type searchResultMsg struct {
	seq     int
	results []connectors.Result
	err     error
}

// fetchResultMsg is sent when a detail lookup finishes.
type fetchResultMsg struct {
	seq    int
	id     string
	detail connectors.Detail
	err    error
}

// Model is the Bubble Tea model for the TUI.
type Model struct {
	title       string
	searchInput textinput.Model
	searchFn    SearchFunc
	fetchFn     FetchFunc
	results     []connectors.Result
	cursor      int
	detailID    string
	detail      connectors.Detail
	state       state
	err         error
	cancel      context.CancelFunc
	// seq numbers the request in flight. Results carrying another number
	// were abandoned and are ignored.
	seq int
}

// NewModel creates a new TUI model. title names the backend being browsed.
func NewModel(title string, searchFn SearchFunc, fetchFn FetchFunc) Model {
	ti := textinput.New()
	ti.Placeholder = "Search..."
	ti.Focus()
	ti.Width = 60

	return Model{
		title:       title,
		searchInput: ti,
		searchFn:    searchFn,
		fetchFn:     fetchFn,
		state:       stateInput,
	}
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case searchResultMsg:
		return m.handleSearchResult(msg)
	case fetchResultMsg:
		return m.handleFetchResult(msg)
	}

	if m.state == stateInput {
		var cmd tea.Cmd
		m.searchInput, cmd = m.searchInput.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		m.stopLoading()
		return m, tea.Quit

	case tea.KeyEscape:
		switch m.state {
		case stateInput:
			return m, tea.Quit
		case stateDetail:
			m.state = stateResults
			return m, nil
		default:
			m.stopLoading()
			m.state = stateInput
			m.searchInput.Focus()
			return m, nil
		}

	case tea.KeyEnter:
		switch m.state {
		case stateInput:
			query := strings.TrimSpace(m.searchInput.Value())
			if query == "" {
				return m, nil
			}
			m.state = stateLoading
			m.searchInput.Blur()
			return m, m.startSearch(query)
		case stateResults:
			if len(m.results) == 0 {
				return m, nil
			}
			m.state = stateLoading
			return m, m.startFetch(m.results[m.cursor].ID)
		}

	case tea.KeyUp:
		if m.state == stateResults && m.cursor > 0 {
			m.cursor--
		}

	case tea.KeyDown:
		if m.state == stateResults && m.cursor < len(m.results)-1 {
			m.cursor++
		}
	}

	if m.state == stateInput {
		var cmd tea.Cmd
		m.searchInput, cmd = m.searchInput.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *Model) stopLoading() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

// current reports whether a result message answers the request in flight.
func (m Model) current(seq int) bool {
	return m.state == stateLoading && seq == m.seq
}

func (m Model) handleSearchResult(msg searchResultMsg) (tea.Model, tea.Cmd) {
	if !m.current(msg.seq) {
		return m, nil
	}
	m.cancel = nil
	if msg.err != nil {
		m.err = msg.err
		m.state = stateInput
		m.searchInput.Focus()
		return m, nil
	}

	m.err = nil
	m.results = msg.results
	m.cursor = 0
	m.state = stateResults
	return m, nil
}

func (m Model) handleFetchResult(msg fetchResultMsg) (tea.Model, tea.Cmd) {
	if !m.current(msg.seq) {
		return m, nil
	}
	m.cancel = nil
	if msg.err != nil {
		m.err = msg.err
		m.state = stateResults
		return m, nil
	}

	m.err = nil
	m.detailID = msg.id
	m.detail = msg.detail
	m.state = stateDetail
	return m, nil
}

// startSearch must be called on the copy returned from Update so the cancel
// func survives.
func (m *Model) startSearch(query string) tea.Cmd {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.seq++
	seq, searchFn := m.seq, m.searchFn
	return func() tea.Msg {
		results, err := searchFn(ctx, query)
		return searchResultMsg{seq: seq, results: results, err: err}
	}
}

func (m *Model) startFetch(id string) tea.Cmd {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.seq++
	seq, fetchFn := m.seq, m.fetchFn
	return func() tea.Msg {
		detail, err := fetchFn(ctx, id)
		return fetchResultMsg{seq: seq, id: id, detail: detail, err: err}
	}
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	idStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	tagStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("5"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
)

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("  Search " + m.title))
	b.WriteString("\n\n")
	b.WriteString("  " + m.searchInput.View())
	b.WriteString("\n\n")

	switch m.state {
	case stateLoading:
		b.WriteString("  Loading...\n")

	case stateResults:
		if len(m.results) == 0 {
			b.WriteString("  No results found.\n")
		} else {
			b.WriteString(fmt.Sprintf("  %d results:\n\n", len(m.results)))
			for i, r := range m.results {
				cursor := "  "
				title := titleStyle.Render(r.Title)
				if i == m.cursor {
					cursor = "> "
					title = selectedStyle.Render(r.Title)
				}
				b.WriteString(fmt.Sprintf("  %s%s\n", cursor, title))
				b.WriteString(fmt.Sprintf("     %s\n", idStyle.Render(r.ID)))
				if tag := resultTag(r); tag != "" {
					b.WriteString(fmt.Sprintf("     %s\n", tagStyle.Render("["+tag+"]")))
				}
				b.WriteString("\n")
			}
		}

	case stateDetail:
		b.WriteString(fmt.Sprintf("  %s\n\n", titleStyle.Render(m.detailID)))
		if len(m.detail) == 0 {
			b.WriteString("  No details available.\n")
		} else {
			for _, line := range strings.Split(formatDetail(m.detail), "\n") {
				b.WriteString("  " + line + "\n")
			}
		}
	}

	if m.err != nil {
		b.WriteString(fmt.Sprintf("\n  Error: %s\n", m.err))
	}

	b.WriteString("\n  esc: back • ctrl+c: quit")
	if m.state == stateResults {
		b.WriteString(" • ↑/↓: navigate • enter: details")
	}
	b.WriteString("\n")

	return b.String()
}

// resultTag picks a short label from the raw record: the dex for pools, the
// symbol for tokens.
func resultTag(r connectors.Result) string {
	for _, key := range []string{"dex", "symbol"} {
		if v, ok := r.Metadata[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func formatDetail(d connectors.Detail) string {
	out, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", map[string]any(d))
	}
	return string(out)
}
