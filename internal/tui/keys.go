package tui

import tea "github.com/charmbracelet/bubbletea"

const (
	zoomStep = 1.25
	panStep  = 0.1 // of the view width
)

func isQuit(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "q", "esc", "ctrl+c":
		return true
	}
	return false
}

func helpText() string {
	return "space start/stop  +/- zoom  wheel zoom at cursor  ←/→ pan  0 reset  q quit"
}
