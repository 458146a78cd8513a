package project

import (
	"slices"

	"github.com/pelletier/go-toml/v2/unstable"
)

// sectionOrder returns, for each of the given top-level sections, the names of its entries in
// order of first appearance in the document. Decoding into maps loses that order.
func sectionOrder(data []byte, sections ...string) (map[string][]string, error) {
	order := make(map[string][]string, len(sections))
	seen := make(map[string]map[string]bool, len(sections))
	for _, s := range sections {
		seen[s] = make(map[string]bool)
	}

	record := func(path []string) {
		if len(path) < 2 {
			return
		}
		names, ok := seen[path[0]]
		if !ok || names[path[1]] {
			return
		}
		names[path[1]] = true
		order[path[0]] = append(order[path[0]], path[1])
	}

	var p unstable.Parser
	p.Reset(data)

	var table []string
	for p.NextExpression() {
		e := p.Expression()
		switch e.Kind {
		case unstable.Table, unstable.ArrayTable:
			table = keyPath(nil, e.Key())
			record(table)
		case unstable.KeyValue:
			full := keyPath(slices.Clone(table), e.Key())
			record(full)

			// targets = { app = { ... } }
			if v := e.Value(); len(full) == 1 && v.Kind == unstable.InlineTable {
				it := v.Children()
				for it.Next() {
					kv := it.Node()
					if kv.Kind == unstable.KeyValue {
						record(keyPath(slices.Clone(full), kv.Key()))
					}
				}
			}
		}
	}
	if err := p.Error(); err != nil {
		return nil, err
	}

	return order, nil
}

func keyPath(prefix []string, it unstable.Iterator) []string {
	for it.Next() {
		prefix = append(prefix, string(it.Node().Data))
	}
	return prefix
}

// orderedKeys returns the keys of m following order; keys order does not know are appended sorted
func orderedKeys[V any](m map[string]V, order []string) []string {
	keys := make([]string, 0, len(m))
	used := make(map[string]bool, len(m))
	for _, k := range order {
		if _, ok := m[k]; ok && !used[k] {
			keys = append(keys, k)
			used[k] = true
		}
	}
	var rest []string
	for k := range m {
		if !used[k] {
			rest = append(rest, k)
		}
	}
	slices.Sort(rest)
	return append(keys, rest...)
}
