package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"thoughtstream/internal/adapter/tui/theme"
	"thoughtstream/internal/domain"
)

// KeyHint represents a single keybinding hint shown in the status bar.
type KeyHint struct {
	Key  string // e.g. "Tab"
	Desc string // e.g. "Prompt"
}

// StatusBarModel renders a bottom status bar with keybinding hints on the
// left and connection, restart and memory telemetry on the right.
type StatusBarModel struct {
	Hints       []KeyHint
	Connected   bool
	NumRestarts int
	Memory      *domain.Memory
	Extra       string // transient notice, e.g. the last transport error
	width       int
}

// NewStatusBar creates an empty status bar.
func NewStatusBar() StatusBarModel {
	return StatusBarModel{}
}

// SetWidth updates the available width.
func (m *StatusBarModel) SetWidth(w int) {
	m.width = w
}

// FormatMemory renders a memory snapshot as "available/total MB (pct%)".
func FormatMemory(mem *domain.Memory) string {
	if mem == nil {
		return "--"
	}
	return fmt.Sprintf("%.0f/%.0f MB (%.1f%%)", mem.AvailableMB, mem.TotalMB, mem.PercentUsed)
}

// View renders the status bar as a single line.
func (m StatusBarModel) View() string {
	var hints []string
	for _, h := range m.Hints {
		key := theme.StatusKey.Render(h.Key)
		hints = append(hints, key+": "+h.Desc)
	}
	left := strings.Join(hints, "  "+theme.Dim.Render("|")+"  ")

	var parts []string
	if m.Extra != "" {
		parts = append(parts, theme.TextWarning.Render(m.Extra))
	}
	if m.Connected {
		parts = append(parts, theme.TextSuccess.Render(theme.SymbolConnected+" live"))
	} else {
		parts = append(parts, theme.TextError.Render(theme.SymbolDisconnected+" offline"))
	}
	parts = append(parts,
		theme.TextMuted.Render(fmt.Sprintf("%s %d", theme.SymbolRestart, m.NumRestarts)),
		theme.TextInfo.Render(theme.SymbolMemory+" "+FormatMemory(m.Memory)),
	)
	right := strings.Join(parts, "  ")

	leftW := lipgloss.Width(left)
	rightW := lipgloss.Width(right)
	gap := m.width - leftW - rightW
	if gap < 1 {
		gap = 1
	}

	bar := left + strings.Repeat(" ", gap) + right
	return theme.StatusBar.Width(m.width).Render(bar)
}
