package gen

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/qobs-build/mike/internal/project"
)

// MakefileName is the fixed name of every generated file
const MakefileName = "Makefile"

// Layout selects how a project tree maps onto output files
type Layout int

const (
	// LayoutRecursive writes one Makefile per project; parents delegate to children with $(MAKE) -C
	LayoutRecursive Layout = iota
	// LayoutFlat writes a single Makefile at the tree root containing every project
	LayoutFlat
)

// Layouts maps the command line spelling of each layout to its value
var Layouts = map[string]Layout{
	"recursive": LayoutRecursive,
	"flat":      LayoutFlat,
}

func (l Layout) String() string {
	for name, v := range Layouts {
		if v == l {
			return name
		}
	}
	return fmt.Sprintf("Layout(%d)", int(l))
}

func ParseLayout(s string) (Layout, error) {
	if l, ok := Layouts[strings.ToLower(s)]; ok {
		return l, nil
	}
	return 0, fmt.Errorf("unknown layout %q", s)
}

// File is one rendered Makefile
type File struct {
	Path    string
	Content string
}

var (
	// whole-project verbs, in aggregate emission order
	verbs = []string{"all", "depend", "clean", "install", "uninstall", "package", "test"}
	// per-target verbs; test is project-wide only
	targetVerbs = []string{"all", "depend", "clean", "install", "uninstall", "package"}
	// variables every file may define
	fileVariables = []string{"SHELL", "TEST_TOTAL", "TEST_CURRENT"}
	// per-target variables, without the prefix
	targetVariables = []string{
		"BUILD_DIR", "PACKAGE_DIR", "PACKAGE", "DEPEND",
		"SOURCES", "HEADERS", "OBJECTS",
		"INCLUDES", "INCLUDE_FLAGS", "CFLAGS", "LIBS",
	}
)

type Generator struct {
	layout Layout
	fs     func(root string) FS
}

func New(layout Layout) *Generator {
	return &Generator{layout: layout, fs: DirFS}
}

// WithFS replaces the filesystem used for source discovery
func (g *Generator) WithFS(fs func(root string) FS) *Generator {
	g.fs = fs
	return g
}

func (g *Generator) Layout() Layout { return g.layout }

// Generate renders the Makefiles for tree. Nothing is rendered when any output scope has
// a name collision.
func (g *Generator) Generate(tree *project.Tree) ([]File, error) {
	if tree == nil || len(tree.Nodes) == 0 {
		return nil, errors.New("empty project tree")
	}

	var scopes []*scope
	var err error
	switch g.layout {
	case LayoutFlat:
		var sc *scope
		sc, err = g.planFlat(tree)
		scopes = []*scope{sc}
	default:
		scopes, err = g.planRecursive(tree)
	}
	if err != nil {
		return nil, err
	}

	var errs []error
	for _, sc := range scopes {
		sc.register()
		if err := sc.names.err(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	files := make([]File, len(scopes))
	for i, sc := range scopes {
		files[i] = File{Path: sc.path, Content: sc.render()}
	}
	return files, nil
}

// scope is everything that ends up in one output file
type scope struct {
	path     string
	projects []*projectPlan // pre-order, projects[0] owns the file
	names    *nameTable
}

func newScope(dir string) *scope {
	p := filepath.Join(dir, MakefileName)
	return &scope{path: p, names: newNameTable(p)}
}

func (sc *scope) hasTests() bool {
	return slices.ContainsFunc(sc.projects, func(pp *projectPlan) bool { return len(pp.tests) > 0 })
}

type projectPlan struct {
	prj *project.Project

	// rel is the slash path of the project relative to the file it is rendered into,
	// empty for the project owning the file
	rel       string
	varPrefix string
	sub       string

	options  []project.Option
	children []childPlan
	targets  []*targetPlan
	scripts  []scriptPlan
	tests    []testPlan
}

// verbTask returns the name this project's aggregate verb has in its file
func (pp *projectPlan) verbTask(verb string) string {
	if pp.sub == "" {
		return verb
	}
	return pp.sub + "/" + verb
}

// scoped names a per-project task such as run/<name> or test/<name>
func (pp *projectPlan) scoped(kind, name string) string {
	if pp.rel == "" {
		return kind + "/" + name
	}
	return kind + "/" + pp.rel + "/" + name
}

// opt references one of the project's option variables
func (pp *projectPlan) opt(name string) string { return ref(pp.varPrefix + name) }

// path re-roots a project relative path onto the file's directory
func (pp *projectPlan) path(p string) string {
	if pp.rel == "" || isRooted(p) {
		return p
	}
	return path.Join(pp.rel, p)
}

// inDir prefixes a shell command so it runs in the project's directory
func (pp *projectPlan) inDir(cmd string) string {
	if pp.rel == "" {
		return cmd
	}
	return "cd " + recipeWord(pp.rel) + " && " + cmd
}

type childPlan struct {
	dir  string
	task string // sub/<dir> or sub/<rel>
	// delegate is set when the child lives in its own file and is reached with $(MAKE) -C
	delegate bool
}

type artifact struct {
	kind     project.Kind
	variable string
	path     string
	dir      string // install subdirectory
}

type targetPlan struct {
	target project.Target
	prefix string

	sources   []string
	headers   []string
	includes  []string
	libraries []string

	artifacts []artifact
	pkg       string
}

// v names one of the target's variables
func (tp *targetPlan) v(name string) string { return tp.prefix + "_" + name }

func (tp *targetPlan) task(verb string) string { return tp.target.Name + "/" + verb }

func (tp *targetPlan) has(k project.Kind) bool { return tp.target.Has(k) }

func (tp *targetPlan) objects() []string {
	objs := make([]string, len(tp.sources))
	for i, src := range tp.sources {
		objs[i] = objectPath(ref(tp.v("BUILD_DIR")), src)
	}
	return objs
}

type scriptPlan struct {
	script project.Script
	task   string
	lines  []string
}

type testPlan struct {
	test   project.Test
	task   string
	prereq string
	exe    string // command line prefix running the target
}

func (g *Generator) planRecursive(tree *project.Tree) ([]*scope, error) {
	var scopes []*scope
	seen := make(map[string]bool)
	for _, p := range tree.Nodes {
		// a project reached through two parents is written once
		if seen[p.Root] {
			continue
		}
		seen[p.Root] = true

		pp, err := g.plan(p, "")
		if err != nil {
			return nil, err
		}
		for _, c := range tree.ChildrenOf(p) {
			pp.children = append(pp.children, childPlan{dir: c.Dir, task: "sub/" + c.Dir, delegate: true})
		}

		sc := newScope(p.Root)
		sc.projects = []*projectPlan{pp}
		scopes = append(scopes, sc)
	}
	return scopes, nil
}

func (g *Generator) planFlat(tree *project.Tree) (*scope, error) {
	root := tree.Root()
	sc := newScope(root.Root)
	planned := make(map[string]*projectPlan)

	var visit func(p *project.Project) (*projectPlan, error)
	visit = func(p *project.Project) (*projectPlan, error) {
		if pp, ok := planned[p.Root]; ok {
			return pp, nil
		}
		rel := ""
		if !p.IsRoot() {
			rel = p.Rel
		}
		pp, err := g.plan(p, rel)
		if err != nil {
			return nil, err
		}
		planned[p.Root] = pp
		sc.projects = append(sc.projects, pp)

		for _, c := range tree.ChildrenOf(p) {
			cp, err := visit(c)
			if err != nil {
				return nil, err
			}
			pp.children = append(pp.children, childPlan{dir: c.Dir, task: cp.sub})
		}
		return pp, nil
	}

	if _, err := visit(root); err != nil {
		return nil, err
	}
	return sc, nil
}

// plan resolves everything p needs to be rendered at rel inside its file
func (g *Generator) plan(p *project.Project, rel string) (*projectPlan, error) {
	pp := &projectPlan{prj: p, rel: rel}
	if rel != "" {
		pp.varPrefix = qualifier(rel) + "__"
		pp.sub = "sub/" + rel
	}

	for _, opt := range p.Options.Fields() {
		if (opt.Name == "BUILD_DIR" || opt.Name == "INSTALL_DIR") && opt.Value != "" {
			opt.Value = pp.path(opt.Value)
		}
		pp.options = append(pp.options, opt)
	}

	fsys := g.fs(p.Root)
	for _, t := range p.Targets {
		tp, err := pp.planTarget(fsys, t)
		if err != nil {
			return nil, err
		}
		pp.targets = append(pp.targets, tp)
	}

	for _, s := range p.Scripts {
		sp := scriptPlan{script: s, task: pp.scoped("run", s.Name)}
		for _, cmd := range s.Commands {
			if pp.rel != "" {
				modifiers, rest := splitRecipePrefix(cmd)
				cmd = modifiers + pp.inDir(rest)
			}
			sp.lines = append(sp.lines, cmd)
		}
		pp.scripts = append(pp.scripts, sp)
	}

	for _, t := range p.Tests {
		tp := testPlan{
			test:   t,
			task:   pp.scoped("test", t.Name),
			prereq: t.Target,
			exe:    pp.inDir("./" + t.Target),
		}
		// unknown or non-executable targets stay raw and fail when the task runs
		if target, ok := p.FindTarget(t.Target); ok && target.Executable {
			tp.prereq = pp.path(target.Name)
		}
		pp.tests = append(pp.tests, tp)
	}

	return pp, nil
}

func (pp *projectPlan) planTarget(fsys FS, t project.Target) (*targetPlan, error) {
	sources, err := discover(fsys, pp.prj.Root, t.Sources, sourceExts)
	if err != nil {
		return nil, err
	}
	headers, err := discover(fsys, pp.prj.Root, t.Headers, headerExts)
	if err != nil {
		return nil, err
	}

	tp := &targetPlan{
		target: t,
		prefix: strings.ToUpper(t.Name),
		pkg:    pp.path(t.Name + ".tar.gz"),
	}
	for _, src := range sources {
		tp.sources = append(tp.sources, pp.path(src))
	}
	for _, h := range headers {
		tp.headers = append(tp.headers, pp.path(h))
	}
	for _, inc := range t.Includes {
		inc = filepath.ToSlash(inc)
		if trimmed := strings.TrimRight(inc, "/"); trimmed != "" {
			inc = trimmed
		}
		tp.includes = append(tp.includes, pp.path(inc))
	}

	for _, lib := range t.Libraries {
		if isLibraryPath(lib) {
			lib = pp.path(filepath.ToSlash(lib))
		}
		tp.libraries = append(tp.libraries, lib)
	}

	for _, k := range t.Kinds() {
		switch k {
		case project.Executable:
			tp.artifacts = append(tp.artifacts, artifact{k, "EXECUTABLE", pp.path(t.Name), "bin"})
		case project.StaticLibrary:
			tp.artifacts = append(tp.artifacts, artifact{k, "STATIC_LIB", pp.path(t.Name + ".a"), "lib"})
		case project.SharedLibrary:
			tp.artifacts = append(tp.artifacts, artifact{k, "SHARED_LIB", pp.path(t.Name + ".so"), "lib"})
		}
	}
	return tp, nil
}

// isLibraryPath reports whether a libraries entry names a file rather than a linker flag
func isLibraryPath(lib string) bool {
	if lib == "" || strings.HasPrefix(lib, "-") {
		return false
	}
	return strings.ContainsAny(lib, "/\\") || strings.HasSuffix(lib, ".a") || strings.HasSuffix(lib, ".so") || strings.Contains(lib, ".so.")
}
