package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"dbdash/internal/dbmeta"
)

// browseModel is the terminal table browser: a read-only view over one
// table at a time, with tab cycling through the database's tables.
type browseModel struct {
	conn   *connection
	tables []string
	index  int

	view table.Model

	width  int
	height int

	statusMsg string
	errorMsg  string
}

var (
	tuiHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	tuiStatusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	tuiErrorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	tuiBorderStyle = lipgloss.NewStyle().BorderStyle(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("240"))
)

type tableLoadedMsg struct {
	name    string
	columns []string
	rows    [][]any
}

type tableErrorMsg struct {
	err error
}

func newBrowseModel(conn *connection, tables []string, start int) browseModel {
	tv := table.New(
		table.WithFocused(true),
		table.WithHeight(20),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Bold(true).BorderStyle(lipgloss.NormalBorder()).BorderBottom(true)
	styles.Selected = styles.Selected.Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57"))
	tv.SetStyles(styles)

	return browseModel{
		conn:   conn,
		tables: tables,
		index:  start,
		view:   tv,
	}
}

func (m browseModel) Init() tea.Cmd {
	return m.loadTable()
}

// loadTable fetches the current table's rows off the update loop.
func (m browseModel) loadTable() tea.Cmd {
	name := m.tables[m.index]
	conn := m.conn
	return func() tea.Msg {
		if breadcrumbs != nil {
			breadcrumbs.RecordDatabase("load " + name)
		}
		rel, err := dbmeta.NewRelation(context.Background(), conn.DB, conn.Type, name)
		if err != nil {
			return tableErrorMsg{err}
		}
		cols, rows, err := rel.SelectAll(context.Background(), 1000)
		if err != nil {
			return tableErrorMsg{err}
		}
		return tableLoadedMsg{name: name, columns: cols, rows: rows}
	}
}

func (m browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.view.SetHeight(maxInt(msg.Height-6, 3))
		return m, nil

	case tea.KeyMsg:
		if breadcrumbs != nil {
			breadcrumbs.RecordKeyboard(msg.String())
		}
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit

		case "tab", "]":
			m.index = (m.index + 1) % len(m.tables)
			if breadcrumbs != nil {
				breadcrumbs.RecordNavigation(m.tables[m.index], "next table")
			}
			m.statusMsg = "loading..."
			return m, m.loadTable()

		case "shift+tab", "[":
			m.index = (m.index - 1 + len(m.tables)) % len(m.tables)
			if breadcrumbs != nil {
				breadcrumbs.RecordNavigation(m.tables[m.index], "previous table")
			}
			m.statusMsg = "loading..."
			return m, m.loadTable()

		case "r":
			m.statusMsg = "reloading..."
			return m, m.loadTable()
		}

	case tableLoadedMsg:
		m.errorMsg = ""
		m.statusMsg = fmt.Sprintf("%d row(s)", len(msg.rows))
		m.setData(msg)
		return m, nil

	case tableErrorMsg:
		m.errorMsg = msg.err.Error()
		return m, nil
	}

	var cmd tea.Cmd
	m.view, cmd = m.view.Update(msg)
	return m, cmd
}

func (m *browseModel) setData(msg tableLoadedMsg) {
	cols := make([]table.Column, len(msg.columns))
	widths := make([]int, len(msg.columns))
	for i, c := range msg.columns {
		widths[i] = len(c)
	}
	rows := make([]table.Row, len(msg.rows))
	for ri, r := range msg.rows {
		row := make(table.Row, len(r))
		for ci, v := range r {
			cell := ""
			if v != nil {
				cell = fmt.Sprintf("%v", v)
			}
			if len(cell) > 40 {
				cell = cell[:37] + "..."
			}
			if len(cell) > widths[ci] {
				widths[ci] = len(cell)
			}
			row[ci] = cell
		}
		rows[ri] = row
	}
	for i, c := range msg.columns {
		cols[i] = table.Column{Title: c, Width: widths[i]}
	}
	m.view.SetColumns(cols)
	m.view.SetRows(rows)
	m.view.GotoTop()
}

func (m browseModel) View() string {
	header := tuiHeaderStyle.Render(fmt.Sprintf("%s / %s", m.conn.Name, m.tables[m.index]))
	status := tuiStatusStyle.Render(m.statusMsg + "  (tab: next table, r: reload, q: quit)")
	if m.errorMsg != "" {
		status = tuiErrorStyle.Render(m.errorMsg)
	}
	return header + "\n" + tuiBorderStyle.Render(m.view.View()) + "\n" + status + "\n"
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func runBrowse(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyFlags(cfg, args[:minInt(len(args), 1)])

	if cfg.SentryDSN != "" && telemetryAllowed() {
		if err := InitSentry(cfg.SentryDSN); err == nil {
			InitBreadcrumbs(64)
			defer FlushAndShutdown()
		}
	}

	ctx := context.Background()
	conn, err := resolveConnection(ctx, cfg)
	if err != nil {
		CaptureError(err)
		return err
	}
	defer conn.DB.Close()

	tables, err := dbmeta.ListTables(ctx, conn.DB, conn.Type, conn.Name)
	if err != nil {
		CaptureError(err)
		return err
	}
	if len(tables) == 0 {
		return fmt.Errorf("database %s has no tables", conn.Name)
	}

	start := 0
	if len(args) >= 2 {
		found := false
		for i, t := range tables {
			if t == args[1] {
				start = i
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("unknown table %q", args[1])
		}
	}

	p := tea.NewProgram(newBrowseModel(conn, tables, start), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		CaptureError(err)
		return fmt.Errorf("error running program: %w", err)
	}
	return nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
