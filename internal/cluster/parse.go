// Package cluster loads cluster and tag definitions and flattens a request
// name into an ordered, deduplicated list of literal hosts.
package cluster

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Definitions maps a name to its member tokens in declaration order.
type Definitions map[string][]string

// Parse reads "name member member ..." lines from r into defs. A name that
// appears more than once has its members appended. '#' starts a comment, and
// a line ending in '\' continues on the next line. Lines naming no members
// are ignored.
func Parse(r io.Reader, defs Definitions) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)

	var pending strings.Builder
	for sc.Scan() {
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimRight(line, " \t\r")
		if strings.HasSuffix(line, `\`) {
			pending.WriteString(strings.TrimRight(line, `\`))
			pending.WriteByte(' ')
			continue
		}
		pending.WriteString(line)
		addLine(pending.String(), defs)
		pending.Reset()
	}
	if pending.Len() > 0 {
		addLine(pending.String(), defs)
	}
	return sc.Err()
}

func addLine(line string, defs Definitions) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return
	}
	defs[fields[0]] = append(defs[fields[0]], fields[1:]...)
}

// ReadFiles parses each path in order into a fresh Definitions.
func ReadFiles(paths []string) (Definitions, error) {
	defs := Definitions{}
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
		err = Parse(f, defs)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", p, err)
		}
	}
	return defs, nil
}
