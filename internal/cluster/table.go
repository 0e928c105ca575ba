package cluster

import (
	"sort"

	"github.com/timvw/tcssh/internal/config"
)

// Table is the immutable symbol table of clusters and tags. Clusters and tags
// are stored separately but share one namespace; a name defined as both
// resolves to the cluster.
type Table struct {
	clusters Definitions
	tags     Definitions
}

// NewTable builds a Table from copies of the given definitions.
func NewTable(clusters, tags Definitions) *Table {
	return &Table{clusters: clone(clusters), tags: clone(tags)}
}

// Load reads every cluster and tag file recorded in src.
func Load(src config.Source) (*Table, error) {
	clusters, err := ReadFiles(src.ClusterFiles)
	if err != nil {
		return nil, err
	}
	tags, err := ReadFiles(src.TagFiles)
	if err != nil {
		return nil, err
	}
	return &Table{clusters: clusters, tags: tags}, nil
}

func clone(d Definitions) Definitions {
	out := make(Definitions, len(d))
	for k, v := range d {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Lookup returns the members of name. The returned slice must not be modified.
func (t *Table) Lookup(name string) ([]string, bool) {
	if t == nil {
		return nil, false
	}
	if m, ok := t.clusters[name]; ok {
		return m, true
	}
	m, ok := t.tags[name]
	return m, ok
}

// Has reports whether name is a cluster or tag.
func (t *Table) Has(name string) bool {
	_, ok := t.Lookup(name)
	return ok
}

// IsTag reports whether name is defined only as a tag.
func (t *Table) IsTag(name string) bool {
	if t == nil {
		return false
	}
	if _, ok := t.clusters[name]; ok {
		return false
	}
	_, ok := t.tags[name]
	return ok
}

// Names returns every defined cluster and tag name, sorted and unique.
func (t *Table) Names() []string {
	if t == nil {
		return nil
	}
	seen := make(map[string]bool, len(t.clusters)+len(t.tags))
	var names []string
	for _, d := range []Definitions{t.clusters, t.tags} {
		for k := range d {
			if !seen[k] {
				seen[k] = true
				names = append(names, k)
			}
		}
	}
	sort.Strings(names)
	return names
}
