package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/ChuLiYu/procsim/internal/snapshot"
	"github.com/ChuLiYu/procsim/pkg/types"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Padding(0, 1)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Width(18)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("60"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#E84A27"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#2ECC71"))
)

// statusColors tints segment statuses in tables
var statusColors = map[string]lipgloss.Color{
	string(types.StatusNominal): lipgloss.Color("#2ECC71"),
	string(types.StatusPartial): lipgloss.Color("#F1C40F"),
	string(types.StatusMerged):  lipgloss.Color("#9D4EDD"),
}

func formatInstant(t time.Time) string {
	return t.UTC().Format(types.TimeLayout)
}

// renderTable draws rows under headers. statusCol names the column holding
// a segment status, -1 for none.
func renderTable(headers []string, rows [][]string, statusCol int) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == statusCol && row >= 0 && row < len(rows) {
				if c, ok := statusColors[rows[row][col]]; ok {
					return cellStyle.Foreground(c)
				}
			}
			return cellStyle
		})
	return t.String()
}

// renderFields draws label/value pairs one per line
func renderFields(fields [][2]string) string {
	lines := make([]string, 0, len(fields))
	for _, f := range fields {
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top,
			labelStyle.Render(f[0]), valueStyle.Render(f[1])))
	}
	return strings.Join(lines, "\n")
}

func renderSummary(w io.Writer, s snapshot.Summary) {
	generated, skipped, failed := s.Totals()

	fmt.Fprintln(w, titleStyle.Render("Run "+s.RunID))
	fields := [][2]string{
		{"Mission", s.Mission},
		{"Job order", s.JobOrder},
		{"Resumed", strconv.FormatBool(s.Resumed)},
		{"Started", formatInstant(s.StartedAt)},
		{"Duration", s.Duration().Round(time.Millisecond).String()},
		{"Journal seq", strconv.FormatUint(s.LastSeq, 10)},
	}
	fmt.Fprintln(w, renderFields(fields))

	rows := make([][]string, 0, len(s.Tasks))
	for _, t := range s.Tasks {
		window := "-"
		if !t.Window.Start.IsZero() {
			window = formatInstant(t.Window.Start) + " / " + formatInstant(t.Window.Stop)
		}
		rows = append(rows, []string{
			t.Name,
			window,
			strconv.Itoa(t.Planned),
			strconv.Itoa(t.Generated),
			strconv.Itoa(t.Skipped),
			strconv.Itoa(t.Failed),
			strconv.Itoa(t.Statuses[types.StatusNominal]),
			strconv.Itoa(t.Statuses[types.StatusPartial]),
			strconv.Itoa(t.Statuses[types.StatusMerged]),
		})
	}
	if len(rows) > 0 {
		fmt.Fprintln(w, renderTable(
			[]string{"TASK", "WINDOW", "PLANNED", "GENERATED", "SKIPPED", "FAILED", "NOMINAL", "PARTIAL", "MERGED"},
			rows, -1))
	}

	for _, t := range s.Tasks {
		for _, e := range t.Errors {
			fmt.Fprintln(w, errorStyle.Render(t.Name+": "+e))
		}
	}

	totals := fmt.Sprintf("generated %d, skipped %d, failed %d", generated, skipped, failed)
	if failed > 0 {
		fmt.Fprintln(w, errorStyle.Render(totals))
		return
	}
	fmt.Fprintln(w, okStyle.Render(totals))
}
