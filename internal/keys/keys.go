// Package keys defines the key events forwarded from the console to
// sessions, and their encodings for tmux send-keys and for a pty.
package keys

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Phase distinguishes key-down from key-up.
type Phase int

const (
	Press Phase = iota
	Release
)

func (p Phase) String() string {
	if p == Release {
		return "release"
	}
	return "press"
}

// Event is one captured key transition.
//
// Exactly one of Name and Text is set. Name holds a tmux key name ("Enter",
// "C-c", "M-x", "Up", "F5"); Text holds literal characters, which for a
// paste may be many.
type Event struct {
	Phase Phase
	Name  string
	Text  string
	Paste bool
}

// Named returns a press of the named key.
func Named(name string) Event {
	return Event{Phase: Press, Name: name}
}

// Literal returns a press of literal text.
func Literal(text string) Event {
	return Event{Phase: Press, Text: text}
}

// Pasted returns a press carrying pasted text.
func Pasted(text string) Event {
	return Event{Phase: Press, Text: text, Paste: true}
}

// Release returns the matching key-up event for e.
func (e Event) Release() Event {
	e.Phase = Release
	return e
}

// Pair returns e as a press followed by its release.
func Pair(e Event) (press, release Event) {
	e.Phase = Press
	return e, e.Release()
}

func (e Event) String() string {
	if e.Name != "" {
		return fmt.Sprintf("%s %s", e.Phase, e.Name)
	}
	return fmt.Sprintf("%s %q", e.Phase, e.Text)
}

// IsNamed reports whether s is a tmux key name rather than literal text.
func IsNamed(s string) bool {
	if _, ok := sequences[s]; ok {
		return true
	}
	// C-x patterns (Ctrl+key)
	if len(s) == 3 && s[0] == 'C' && s[1] == '-' {
		return true
	}
	// M-x patterns (Meta/Alt+key), any single character
	if strings.HasPrefix(s, "M-") && utf8.RuneCountInString(s[2:]) == 1 {
		return true
	}
	return false
}

var sequences = map[string]string{
	"Enter":  "\r",
	"Escape": "\x1b",
	"Tab":    "\t",
	"BTab":   "\x1b[Z",
	"Space":  " ",
	"BSpace": "\x7f",
	"Up":     "\x1b[A",
	"Down":   "\x1b[B",
	"Right":  "\x1b[C",
	"Left":   "\x1b[D",
	"Home":   "\x1b[H",
	"End":    "\x1b[F",
	"IC":     "\x1b[2~",
	"DC":     "\x1b[3~",
	"PPage":  "\x1b[5~",
	"NPage":  "\x1b[6~",
	"F1":     "\x1bOP",
	"F2":     "\x1bOQ",
	"F3":     "\x1bOR",
	"F4":     "\x1bOS",
	"F5":     "\x1b[15~",
	"F6":     "\x1b[17~",
	"F7":     "\x1b[18~",
	"F8":     "\x1b[19~",
	"F9":     "\x1b[20~",
	"F10":    "\x1b[21~",
	"F11":    "\x1b[23~",
	"F12":    "\x1b[24~",
}

// Bytes returns the byte sequence a terminal would send for e. Releases
// produce nothing, since a pty has no key-up.
func (e Event) Bytes() []byte {
	if e.Phase == Release {
		return nil
	}
	if e.Name == "" {
		if e.Paste {
			return []byte("\x1b[200~" + e.Text + "\x1b[201~")
		}
		return []byte(e.Text)
	}
	if seq, ok := sequences[e.Name]; ok {
		return []byte(seq)
	}
	if rest, ok := strings.CutPrefix(e.Name, "M-"); ok && utf8.RuneCountInString(rest) == 1 {
		return append([]byte{0x1b}, rest...)
	}
	if len(e.Name) == 3 && e.Name[0] == 'C' && e.Name[1] == '-' {
		return []byte{ctrl(e.Name[2])}
	}
	return []byte(e.Name)
}

func ctrl(c byte) byte {
	switch {
	case c >= 'a' && c <= 'z':
		return c - 'a' + 1
	case c >= '@' && c <= '_':
		return c - '@'
	case c == ' ':
		return 0
	case c == '?':
		return 0x7f
	default:
		return c & 0x1f
	}
}

// SendKeysArgs returns the tmux send-keys arguments (after "-t target") for
// e: literal text goes with -l, key names go raw.
func (e Event) SendKeysArgs() []string {
	if e.Name != "" {
		return []string{e.Name}
	}
	return []string{"-l", e.Text}
}

// MaxDatagram is the largest encoded event the helper's key socket accepts.
const MaxDatagram = 8 * 1024

// maxChunkText bounds the text carried by one datagram.
const maxChunkText = MaxDatagram / 2

// Chunks splits e into events small enough for one key datagram each. Text
// is cut on rune boundaries and every piece keeps e's phase and paste flag,
// so a long paste arrives as consecutive pastes. Named keys are never split.
func (e Event) Chunks() []Event {
	if e.Name != "" || len(e.Text) <= maxChunkText {
		return []Event{e}
	}
	var out []Event
	text := e.Text
	for len(text) > maxChunkText {
		cut := maxChunkText
		for !utf8.RuneStart(text[cut]) {
			cut--
		}
		piece := e
		piece.Text = text[:cut]
		out = append(out, piece)
		text = text[cut:]
	}
	last := e
	last.Text = text
	return append(out, last)
}

// Encode serialises e for the helper's key socket: one byte of phase flags
// followed by the payload.
func (e Event) Encode() []byte {
	var flags byte
	if e.Phase == Release {
		flags |= 1
	}
	if e.Paste {
		flags |= 2
	}
	payload := e.Text
	if e.Name != "" {
		flags |= 4
		payload = e.Name
	}
	return append([]byte{flags}, payload...)
}

// Decode is the inverse of Encode.
func Decode(b []byte) (Event, error) {
	if len(b) == 0 {
		return Event{}, fmt.Errorf("empty key datagram")
	}
	flags, payload := b[0], string(b[1:])
	if flags&^7 != 0 {
		return Event{}, fmt.Errorf("invalid key datagram flags %#x", flags)
	}
	e := Event{Paste: flags&2 != 0}
	if flags&1 != 0 {
		e.Phase = Release
	}
	if flags&4 != 0 {
		e.Name = payload
	} else {
		e.Text = payload
	}
	return e, nil
}

// Expand splits text into events the way a typist would produce them:
// newlines become Enter, everything else stays literal.
func Expand(text string) []Event {
	var out []Event
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			out = append(out, Named("Enter"))
		}
		if line != "" {
			out = append(out, Literal(line))
		}
	}
	return out
}
