package gen

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/qobs-build/mike/internal/project"
)

type sectionKind int

const (
	sectionHeader sectionKind = iota
	sectionOptions
	sectionTasks
	sectionScripts
	sectionTarget
	sectionTests
	sectionHelp
)

type section struct {
	order int // position of the owning project in the file
	kind  sectionKind
	title string
	body  strings.Builder
}

// document collects the sections of one Makefile and joins them in a fixed order:
// header, then every project's options, tasks, scripts, targets and tests, then help
type document struct {
	sections []*section
}

func (d *document) add(order int, kind sectionKind, title string) *strings.Builder {
	s := &section{order: order, kind: kind, title: title}
	d.sections = append(d.sections, s)
	return &s.body
}

var bannerRule = "# " + strings.Repeat("-", 75)

func (d *document) String() string {
	slices.SortStableFunc(d.sections, func(a, b *section) int {
		return cmp.Or(cmp.Compare(a.order, b.order), cmp.Compare(a.kind, b.kind))
	})

	var sb strings.Builder
	for _, s := range d.sections {
		if s.body.Len() == 0 {
			continue
		}
		if s.title != "" {
			writeln(&sb, bannerRule)
			writeln(&sb, "# ", s.title)
			writeln(&sb, bannerRule)
		}
		sb.WriteString(s.body.String())
	}
	return strings.TrimRight(sb.String(), "\n") + "\n"
}

func (sc *scope) render() string {
	var doc document

	header := doc.add(-1, sectionHeader, "")
	writeln(header, "# Generated by mike from ", project.ConfigFilename, ". Do not edit.")
	writeln(header)
	assign(header, "SHELL", "/bin/bash")
	writeln(header, ".DEFAULT_GOAL := all")
	if sc.hasTests() {
		writeln(header)
		writeln(header, "TEST_TOTAL ?= 1")
		writeln(header, "TEST_CURRENT ?= 1")
	}
	writeln(header)

	for i, pp := range sc.projects {
		pp.renderOptions(doc.add(i, sectionOptions, pp.title("OPTIONS")))
		pp.renderTasks(doc.add(i, sectionTasks, pp.title("TASKS")))
		if len(pp.scripts) > 0 {
			pp.renderScripts(doc.add(i, sectionScripts, pp.title("SCRIPTS")))
		}
		for _, tp := range pp.targets {
			pp.renderTarget(doc.add(i, sectionTarget, pp.title("TARGET "+tp.prefix)), tp)
		}
		if len(pp.tests) > 0 {
			pp.renderTests(doc.add(i, sectionTests, pp.title("TESTS")))
		}
	}

	sc.renderHelp(doc.add(len(sc.projects), sectionHelp, "HELP"))
	return doc.String()
}

func (pp *projectPlan) title(s string) string {
	if pp.rel == "" {
		return s
	}
	return s + " (" + pp.rel + ")"
}

func (pp *projectPlan) renderOptions(sb *strings.Builder) {
	for _, opt := range pp.options {
		if opt.Value == "" {
			assign(sb, pp.varPrefix+opt.Name)
		} else {
			assign(sb, pp.varPrefix+opt.Name, opt.Value)
		}
	}
	writeln(sb)
}

func (pp *projectPlan) renderTasks(sb *strings.Builder) {
	for _, verb := range verbs {
		if verb == "test" {
			phony(sb, pp.verbTask(verb), nil, pp.testRecipe()...)
			continue
		}

		var prereqs []string
		for _, c := range pp.children {
			prereqs = append(prereqs, c.task+"/"+verb)
		}
		for _, tp := range pp.targets {
			prereqs = append(prereqs, tp.task(verb))
		}
		phony(sb, pp.verbTask(verb), prereqs)
	}

	for _, c := range pp.children {
		if !c.delegate {
			continue
		}
		for _, verb := range verbs {
			phony(sb, c.task+"/"+verb, nil, "@$(MAKE) -C "+recipeWord(c.dir)+" "+verb)
		}
	}
}

func (pp *projectPlan) testRecipe() []string {
	var lines []string
	for _, c := range pp.children {
		lines = append(lines, "@$(MAKE) --no-print-directory "+c.task+"/test")
	}
	if len(pp.tests) == 0 {
		if len(lines) == 0 {
			// keeps make quiet when a parent runs this task
			return []string{"@:"}
		}
		return lines
	}

	lines = append(lines, echo("Test project "+pp.prj.Name))
	for i, t := range pp.tests {
		lines = append(lines, fmt.Sprintf("@$(MAKE) --no-print-directory %s TEST_TOTAL=%d TEST_CURRENT=%d", t.task, len(pp.tests), i+1))
	}
	return append(lines, echo("Test project "+pp.prj.Name+" finished"))
}

func (pp *projectPlan) renderScripts(sb *strings.Builder) {
	for _, s := range pp.scripts {
		phony(sb, s.task, nil, s.lines...)
	}
}

func (pp *projectPlan) renderTarget(sb *strings.Builder, tp *targetPlan) {
	name := tp.target.Name
	v := func(s string) string { return ref(tp.v(s)) }

	assign(sb, tp.v("BUILD_DIR"), pp.opt("BUILD_DIR")+"/"+name)
	assign(sb, tp.v("PACKAGE_DIR"), v("BUILD_DIR")+"/_pack/"+name)
	assign(sb, tp.v("PACKAGE"), tp.pkg)
	assign(sb, tp.v("DEPEND"), v("BUILD_DIR")+"/"+name+".d")
	writeln(sb, "-include ", v("DEPEND"))
	assign(sb, tp.v("SOURCES"), tp.sources...)
	assign(sb, tp.v("HEADERS"), tp.headers...)
	assign(sb, tp.v("OBJECTS"), tp.objects()...)
	assign(sb, tp.v("INCLUDES"), tp.includes...)
	assign(sb, tp.v("INCLUDE_FLAGS"), "$(addprefix -I,"+v("INCLUDES")+")")
	assign(sb, tp.v("CFLAGS"), append(slices.Clone(tp.target.Cflags), tp.target.DefineFlags()...)...)
	assign(sb, tp.v("LIBS"), tp.libraries...)
	for _, a := range tp.artifacts {
		assign(sb, tp.v(a.variable), a.path)
	}
	writeln(sb)

	// link rules
	var artifacts []string
	for _, a := range tp.artifacts {
		var recipe string
		switch a.kind {
		case project.Executable:
			recipe = pp.opt("LD") + " " + pp.opt("LDFLAGS") + " -o $@ " + v("OBJECTS") + " " + v("LIBS")
		case project.StaticLibrary:
			recipe = pp.opt("AR") + " " + pp.opt("ARFLAGS") + " $@ " + v("OBJECTS")
		case project.SharedLibrary:
			recipe = pp.opt("CXX") + " " + pp.opt("LDFLAGS") + " -shared -o $@ " + v("OBJECTS") + " " + v("LIBS")
		}
		rule(sb, a.path, []string{v("OBJECTS")}, recipe)
		writeln(sb)
		artifacts = append(artifacts, a.path)
	}

	phony(sb, tp.task("all"), artifacts)

	depend := []string{echo("Analyzing target " + name), "@mkdir -p $(dir " + v("DEPEND") + ")"}
	if len(tp.sources) == 0 {
		depend = append(depend, "@: > "+v("DEPEND"))
	} else {
		depend = append(depend,
			"@"+pp.opt("CXX")+" "+pp.opt("CXXFLAGS")+" "+v("CFLAGS")+" "+v("INCLUDE_FLAGS")+" -MM "+v("SOURCES")+" > "+v("DEPEND"),
			dependRewrite(v("BUILD_DIR"), v("DEPEND")),
		)
	}
	phony(sb, tp.task("depend"), nil, append(depend, echo("Analyzed target "+name))...)

	removed := make([]string, 0, len(tp.artifacts)+1)
	for _, a := range tp.artifacts {
		removed = append(removed, v(a.variable))
	}
	removed = append(removed, v("PACKAGE"))
	phony(sb, tp.task("clean"), nil,
		echo("Cleaning target "+name),
		"@rm -rf "+v("BUILD_DIR"),
		"@rm -f "+strings.Join(removed, " "),
		echo("Cleaned target "+name),
	)

	install := []string{echo("Installing target " + name)}
	install = append(install, tp.copyLines(pp.opt("INSTALL_DIR"))...)
	phony(sb, tp.task("install"), []string{tp.task("all")}, append(install, echo("Installed target "+name))...)

	uninstall := []string{echo("Uninstalling target " + name)}
	if len(tp.headers) > 0 {
		uninstall = append(uninstall, "@rm -f $(addprefix "+pp.opt("INSTALL_DIR")+"/include/,$(notdir "+v("HEADERS")+"))")
	}
	for _, a := range tp.artifacts {
		uninstall = append(uninstall, "@rm -f "+pp.opt("INSTALL_DIR")+"/"+a.dir+"/$(notdir "+v(a.variable)+")")
	}
	phony(sb, tp.task("uninstall"), nil, append(uninstall, echo("Uninstalled target "+name))...)

	pack := []string{
		echo("Packaging target " + name),
		"@rm -rf " + v("PACKAGE_DIR"),
		"@mkdir -p " + v("PACKAGE_DIR"),
	}
	pack = append(pack, tp.copyLines(v("PACKAGE_DIR"))...)
	pack = append(pack,
		"@tar zcf "+v("PACKAGE")+" -C "+v("PACKAGE_DIR")+"/.. "+name,
		echo("Packaged target "+name),
	)
	phony(sb, tp.task("package"), []string{tp.task("all")}, pack...)

	compiler := pp.opt("CXX") + " " + pp.opt("CXXFLAGS")
	if tp.has(project.SharedLibrary) {
		compiler += " -fPIC"
	}
	compile := []string{"@mkdir -p $(dir $@)", compiler + " " + v("CFLAGS") + " " + v("INCLUDE_FLAGS") + " -o $@ -c $<"}
	rule(sb, v("BUILD_DIR")+"/%.o", []string{"%"}, compile...)
	writeln(sb)
	for _, src := range tp.sources {
		if !hasPatternObject(src) {
			rule(sb, objectPath(v("BUILD_DIR"), src), []string{src}, compile...)
			writeln(sb)
		}
	}
}

// dependRewrite is the sed call that moves the targets of a -MM listing onto the object
// paths under buildDir, with ".." segments and a leading "/" renamed like objectName does
func dependRewrite(buildDir, depend string) string {
	return "@sed -i -E" +
		` -e "s|^[^:]+\.o: +([^ ]+)|\1.o: \1|"` +
		` -e :a -e "s|^(([^: ]*/)?)\.\./|\1` + parentToken + `/|" -e ta` +
		` -e "s|^/|` + parentToken + `/|"` +
		` -e "s|^([^ :][^:]*\.o):|` + buildDir + `/\1:|" ` + depend
}

// copyLines copies headers and artifacts into the include, bin and lib directories of dest
func (tp *targetPlan) copyLines(dest string) []string {
	var lines []string
	if len(tp.headers) > 0 {
		lines = append(lines,
			"@mkdir -p "+dest+"/include",
			"@cp "+ref(tp.v("HEADERS"))+" "+dest+"/include/",
		)
	}
	for _, dir := range []string{"bin", "lib"} {
		var files []string
		for _, a := range tp.artifacts {
			if a.dir == dir {
				files = append(files, ref(tp.v(a.variable)))
			}
		}
		if len(files) == 0 {
			continue
		}
		lines = append(lines,
			"@mkdir -p "+dest+"/"+dir,
			"@cp "+strings.Join(files, " ")+" "+dest+"/"+dir+"/",
		)
	}
	return lines
}

func (pp *projectPlan) renderTests(sb *strings.Builder) {
	for _, t := range pp.tests {
		cmd := t.exe
		if t.test.Args != "" {
			cmd += " " + makeEscape(t.test.Args)
		}
		if t.test.Input != "" {
			cmd += " <<< " + recipeWord(t.test.Input)
		}

		// one shell invocation so the captured output survives until the comparison
		phony(sb, t.task, []string{t.prereq},
			`@echo -e "\tStart $(TEST_CURRENT)\t: `+t.test.Name+`"`,
			`@output="$$(`+cmd+`)"; \`,
			`if [ "$$output" == `+recipeWord(t.test.Expect)+` ]; then result=Passed; else result=Failed; fi; \`,
			`echo -e "$(TEST_CURRENT)/$(TEST_TOTAL)\tTest  $(TEST_CURRENT)\t: `+t.test.Name+`\t................   $$result"`,
		)
	}
}

func (sc *scope) renderHelp(sb *strings.Builder) {
	lines := []string{
		echo("The following are some of the valid targets for this Makefile:"),
		echo("... all (the default if no target is provided)"),
	}
	for _, verb := range verbs[1:] {
		lines = append(lines, echo("... "+verb))
	}

	for _, pp := range sc.projects {
		if pp.sub != "" {
			for _, verb := range verbs {
				lines = append(lines, echo("... "+pp.verbTask(verb)))
			}
		}
		for _, c := range pp.children {
			if c.delegate {
				for _, verb := range verbs {
					lines = append(lines, echo("... "+c.task+"/"+verb))
				}
			}
		}
		for _, s := range pp.scripts {
			lines = append(lines, echo("... "+s.task))
		}
		for _, t := range pp.tests {
			lines = append(lines, echo("... "+t.task))
		}
		for _, tp := range pp.targets {
			for _, a := range tp.artifacts {
				lines = append(lines, echo("... "+a.path))
			}
		}
	}

	phony(sb, "help", nil, lines...)
}
