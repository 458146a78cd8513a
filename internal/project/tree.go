package project

import (
	"os"
	"path"
	"path/filepath"
	"slices"
)

// Project is one node of the build hierarchy
type Project struct {
	ID     int
	Parent int // -1 for the root

	Name string
	Root string // absolute directory
	Dir  string // declared path relative to the parent, "." for the root
	Rel  string // slash path relative to the tree root, "." for the root

	Options  Options
	Children []int
	Targets  []Target
	Scripts  []Script
	Tests    []Test
}

// IsRoot reports whether p is the root of its tree
func (p *Project) IsRoot() bool { return p.Parent < 0 }

// FindTarget returns the target called name, if any
func (p *Project) FindTarget(name string) (Target, bool) {
	for _, t := range p.Targets {
		if t.Name == name {
			return t, true
		}
	}
	return Target{}, false
}

// Tree is an arena of projects; Nodes[0] is the root and nodes are stored in pre-order
type Tree struct {
	Nodes []*Project
}

func (t *Tree) Root() *Project { return t.Nodes[0] }

// ChildrenOf returns the children of p in declared order
func (t *Tree) ChildrenOf(p *Project) []*Project {
	children := make([]*Project, len(p.Children))
	for i, id := range p.Children {
		children[i] = t.Nodes[id]
	}
	return children
}

// Walk visits p and its descendants depth-first, parents before children
func (t *Tree) Walk(p *Project, fn func(*Project)) {
	fn(p)
	for _, id := range p.Children {
		t.Walk(t.Nodes[id], fn)
	}
}

// HasConfig reports whether dir contains a mike.toml
func HasConfig(dir string) (bool, error) {
	path := filepath.Join(dir, ConfigFilename)
	stat, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, FSError(path, err)
	}
	return !stat.IsDir(), nil
}

type loader struct {
	tree   *Tree
	active []string // resolved roots on the current recursion path
}

// Load builds the project tree rooted at dir
func Load(dir string) (*Tree, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, FSError(dir, err)
	}
	l := &loader{tree: &Tree{}}
	if _, err := l.load(root, ".", ".", -1); err != nil {
		return nil, err
	}
	return l.tree, nil
}

func (l *loader) load(root, dir, rel string, parent int) (int, error) {
	stat, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, &Error{Kind: ErrConfigNotFound, Path: filepath.Join(root, ConfigFilename)}
		}
		return 0, FSError(root, err)
	}
	if !stat.IsDir() {
		return 0, FSError(root, os.ErrInvalid)
	}

	key := root
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		key = resolved
	}
	if i := slices.Index(l.active, key); i >= 0 {
		return 0, cycleError(append(slices.Clone(l.active[i:]), key))
	}
	l.active = append(l.active, key)
	defer func() { l.active = l.active[:len(l.active)-1] }()

	cfg, err := ParseConfigFromFile(filepath.Join(root, ConfigFilename), NewConfigEnv(root))
	if err != nil {
		return 0, err
	}

	name := cfg.Name
	if name == "" {
		name = filepath.Base(root)
	}
	p := &Project{
		ID:      len(l.tree.Nodes),
		Parent:  parent,
		Name:    name,
		Root:    root,
		Dir:     dir,
		Rel:     rel,
		Options: cfg.Options,
		Targets: cfg.Targets,
		Scripts: cfg.Scripts,
		Tests:   cfg.Tests,
	}
	l.tree.Nodes = append(l.tree.Nodes, p)

	for _, child := range cfg.Children {
		childDir := path.Clean(filepath.ToSlash(child))
		id, err := l.load(filepath.Join(root, filepath.FromSlash(childDir)), childDir, path.Join(rel, childDir), p.ID)
		if err != nil {
			return 0, err
		}
		p.Children = append(p.Children, id)
	}

	return p.ID, nil
}
