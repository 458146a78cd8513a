package gen

import (
	"errors"
	"fmt"

	"github.com/qobs-build/mike/internal/project"
)

var ErrNameCollision = errors.New("name collision")

type namespace string

const (
	nsPrefix   namespace = "prefix"   // target identifier prefixes
	nsVariable namespace = "variable" // make variables
	nsRule     namespace = "rule"     // task and file rule targets
)

type nameKey struct {
	ns   namespace
	name string
}

// nameTable records who generated each name of one output file
type nameTable struct {
	scope  string
	owners map[nameKey]string
	errs   []error
}

func newNameTable(scope string) *nameTable {
	return &nameTable{scope: scope, owners: make(map[nameKey]string)}
}

func (nt *nameTable) claim(ns namespace, name, owner string) {
	key := nameKey{ns, name}
	if prev, ok := nt.owners[key]; ok {
		nt.errs = append(nt.errs, &project.Error{
			Kind: ErrNameCollision,
			Path: nt.scope,
			Err:  fmt.Errorf("%s %q is generated for both %s and %s", ns, name, prev, owner),
		})
		return
	}
	nt.owners[key] = owner
}

func (nt *nameTable) err() error { return errors.Join(nt.errs...) }

// register claims every name the scope will emit
func (sc *scope) register() {
	nt := sc.names
	for _, v := range fileVariables {
		nt.claim(nsVariable, v, "the generator")
	}
	for _, verb := range verbs {
		nt.claim(nsRule, verb, "the "+verb+" task")
	}
	nt.claim(nsRule, "help", "the help task")

	for _, pp := range sc.projects {
		owner := "project " + pp.prj.Rel
		for _, opt := range pp.options {
			nt.claim(nsVariable, pp.varPrefix+opt.Name, owner)
		}
		if pp.sub != "" {
			for _, verb := range verbs {
				nt.claim(nsRule, pp.verbTask(verb), owner)
			}
		}
		for _, c := range pp.children {
			if c.delegate {
				for _, verb := range verbs {
					nt.claim(nsRule, c.task+"/"+verb, "child "+c.dir)
				}
			}
		}
		for _, s := range pp.scripts {
			nt.claim(nsRule, s.task, "script "+s.script.Name)
		}
		for _, t := range pp.tests {
			nt.claim(nsRule, t.task, "test "+t.test.Name)
		}
		for _, tp := range pp.targets {
			owner := "target " + tp.target.Name
			nt.claim(nsPrefix, tp.prefix, owner)
			for _, v := range targetVariables {
				nt.claim(nsVariable, tp.v(v), owner)
			}
			for _, a := range tp.artifacts {
				nt.claim(nsVariable, tp.v(a.variable), owner)
				nt.claim(nsRule, a.path, owner)
			}
			for _, verb := range targetVerbs {
				nt.claim(nsRule, tp.task(verb), owner)
			}
			nt.claim(nsRule, tp.pkg, owner)
		}
	}
}
