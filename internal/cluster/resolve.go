package cluster

import (
	tcerrors "github.com/timvw/tcssh/internal/errors"
	"github.com/timvw/tcssh/internal/hostspec"
)

// Resolver flattens request names against an immutable Table.
type Resolver struct {
	table *Table

	// configFound is false when no config directory or definition file
	// exists; only literal host requests are accepted then.
	configFound bool
	searched    []string
}

// NewResolver returns a Resolver for table. found and searched come from
// config.Source and decide whether MissingConfig is raised.
func NewResolver(table *Table, found bool, searched []string) *Resolver {
	return &Resolver{table: table, configFound: found, searched: searched}
}

// Table returns the symbol table the resolver reads from.
func (r *Resolver) Table() *Table {
	return r.table
}

// Resolve flattens a single request name.
func (r *Resolver) Resolve(name string) ([]hostspec.HostSpec, []tcerrors.Warning, error) {
	return r.ResolveAll([]string{name})
}

// ResolveAll flattens each request name in order and concatenates the
// results. The returned list holds every literal host reachable from the
// requests exactly once, in first-seen order. Tokens that are neither a
// defined name nor a parseable host produce InvalidHost warnings.
//
// A request of the form user@name, where name is defined, rewrites every
// host reached through it to carry that user.
func (r *Resolver) ResolveAll(names []string) ([]hostspec.HostSpec, []tcerrors.Warning, error) {
	w := walker{
		table: r.table,
		seen:  map[string]bool{},
		done:  map[doneKey]bool{},
	}
	for _, name := range names {
		if !r.configFound && !r.table.Has(name) {
			if _, ok := hostspec.Parse(name); !ok {
				return nil, nil, tcerrors.MissingConfig(name, r.searched)
			}
		}
		if err := w.walk(name); err != nil {
			return nil, nil, err
		}
	}
	return w.out, w.warnings, nil
}

type doneKey struct {
	user string
	name string
}

// frame is one cluster/tag being expanded.
type frame struct {
	name    string
	user    string
	members []string
	next    int
}

// walker performs an explicit depth-first walk of the reference graph. Stack
// depth is bounded by the longest acyclic reference chain because every name
// on the stack is distinct.
type walker struct {
	table *Table

	stack      []frame
	inProgress map[string]int // name -> index in stack
	done       map[doneKey]bool

	seen     map[string]bool
	out      []hostspec.HostSpec
	warnings []tcerrors.Warning
}

func (w *walker) walk(root string) error {
	w.stack = w.stack[:0]
	w.inProgress = map[string]int{}

	if err := w.visit(root, ""); err != nil {
		return err
	}
	for len(w.stack) > 0 {
		top := &w.stack[len(w.stack)-1]
		if top.next >= len(top.members) {
			delete(w.inProgress, top.name)
			w.done[doneKey{top.user, top.name}] = true
			w.stack = w.stack[:len(w.stack)-1]
			continue
		}
		token := top.members[top.next]
		top.next++
		if err := w.visit(token, top.user); err != nil {
			return err
		}
	}
	return nil
}

// visit handles one token: a defined name is pushed for expansion, anything
// else is emitted as a literal host. override is the user inherited from an
// enclosing user@name request.
func (w *walker) visit(token, override string) error {
	name, user := token, ""
	members, ok := w.table.Lookup(token)
	if !ok {
		if u, n := hostspec.SplitUser(token); n != token {
			if m, found := w.table.Lookup(n); found {
				name, user, members, ok = n, u, m, true
			}
		}
	}

	if !ok {
		w.emit(token, override)
		return nil
	}

	if override != "" {
		user = override
	}
	if idx, active := w.inProgress[name]; active {
		cycle := make([]string, 0, len(w.stack)-idx+1)
		for _, f := range w.stack[idx:] {
			cycle = append(cycle, f.name)
		}
		cycle = append(cycle, name)
		return tcerrors.CyclicReference(cycle)
	}
	if w.done[doneKey{user, name}] {
		return nil
	}
	w.inProgress[name] = len(w.stack)
	w.stack = append(w.stack, frame{name: name, user: user, members: members})
	return nil
}

func (w *walker) emit(token, user string) {
	spec, ok := hostspec.Parse(token)
	if !ok {
		w.warnings = append(w.warnings, tcerrors.Warn(tcerrors.InvalidHost(token)))
		return
	}
	spec = spec.WithUser(user)
	key := spec.String()
	if w.seen[key] {
		return
	}
	w.seen[key] = true
	w.out = append(w.out, spec)
}
