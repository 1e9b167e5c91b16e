package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/roman-kulish/mrgraph/internal/engine"
	"github.com/roman-kulish/mrgraph/internal/spectrum"
)

type frameMsg struct {
	frame *spectrum.Frame
}

// Sender is the part of *tea.Program frames are delivered through.
type Sender interface {
	Send(msg tea.Msg)
}

// Observer forwards frames into the program's event loop. Send blocks until
// the loop takes the message, which only ever stalls the subscription that
// owns this observer.
func Observer(s Sender) engine.Observer {
	return func(frame *spectrum.Frame) {
		s.Send(frameMsg{frame: frame})
	}
}
