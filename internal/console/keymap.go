package console

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/timvw/tcssh/internal/keys"
)

var namedKeys = map[tea.KeyType]string{
	tea.KeyEnter:     "Enter",
	tea.KeyTab:       "Tab",
	tea.KeyShiftTab:  "BTab",
	tea.KeyBackspace: "BSpace",
	tea.KeyEsc:       "Escape",
	tea.KeyUp:        "Up",
	tea.KeyDown:      "Down",
	tea.KeyRight:     "Right",
	tea.KeyLeft:      "Left",
	tea.KeyHome:      "Home",
	tea.KeyEnd:       "End",
	tea.KeyPgUp:      "PPage",
	tea.KeyPgDown:    "NPage",
	tea.KeyInsert:    "IC",
	tea.KeyDelete:    "DC",
	tea.KeyF1:        "F1",
	tea.KeyF2:        "F2",
	tea.KeyF3:        "F3",
	tea.KeyF4:        "F4",
	tea.KeyF5:        "F5",
	tea.KeyF6:        "F6",
	tea.KeyF7:        "F7",
	tea.KeyF8:        "F8",
	tea.KeyF9:        "F9",
	tea.KeyF10:       "F10",
	tea.KeyF11:       "F11",
	tea.KeyF12:       "F12",

	tea.KeyCtrlAt:           "C-@",
	tea.KeyCtrlBackslash:    "C-\\",
	tea.KeyCtrlCloseBracket: "C-]",
	tea.KeyCtrlCaret:        "C-^",
	tea.KeyCtrlUnderscore:   "C-_",
}

// KeyEvent converts a console key press into the event broadcast to the
// sessions. It reports false for keys with no terminal equivalent.
func KeyEvent(msg tea.KeyMsg) (keys.Event, bool) {
	if msg.Paste {
		return keys.Pasted(string(msg.Runes)), true
	}
	switch msg.Type {
	case tea.KeyRunes:
		text := string(msg.Runes)
		if msg.Alt && len(msg.Runes) == 1 {
			return keys.Named("M-" + text), true
		}
		return keys.Literal(text), true
	case tea.KeySpace:
		return keys.Literal(" "), true
	}
	if name, ok := namedKeys[msg.Type]; ok {
		return keys.Named(name), true
	}
	if msg.Type >= tea.KeyCtrlA && msg.Type <= tea.KeyCtrlZ {
		return keys.Named("C-" + string(rune('a'+int(msg.Type-tea.KeyCtrlA)))), true
	}
	return keys.Event{}, false
}
