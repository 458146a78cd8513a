package gen

import (
	"path"
	"strings"
	"unicode"
)

func write(sb *strings.Builder, s ...string) {
	for _, str := range s {
		sb.WriteString(str)
	}
}

func writeln(sb *strings.Builder, s ...string) {
	for _, str := range s {
		sb.WriteString(str)
	}
	sb.WriteByte('\n')
}

// valuesPerLine is the longest list assign keeps on a single line
const valuesPerLine = 4

// assign writes `name = v1 v2 ...`, one value per continuation line for long lists
func assign(sb *strings.Builder, name string, values ...string) {
	write(sb, name, " =")
	if len(values) > valuesPerLine {
		for _, v := range values {
			write(sb, " \\\n\t", v)
		}
		writeln(sb)
		return
	}
	for _, v := range values {
		write(sb, " ", v)
	}
	writeln(sb)
}

// rule writes `target: prereqs` followed by one tab-indented recipe line per entry
func rule(sb *strings.Builder, target string, prereqs []string, recipe ...string) {
	write(sb, target, ":")
	for _, p := range prereqs {
		write(sb, " ", p)
	}
	writeln(sb)
	for _, line := range recipe {
		writeln(sb, "\t", line)
	}
}

// phony writes a rule marked .PHONY followed by a blank line
func phony(sb *strings.Builder, target string, prereqs []string, recipe ...string) {
	rule(sb, target, prereqs, recipe...)
	writeln(sb, ".PHONY: ", target)
	writeln(sb)
}

func ref(name string) string { return "$(" + name + ")" }

// makeEscape protects s from make variable expansion
func makeEscape(s string) string { return strings.ReplaceAll(s, "$", "$$") }

func isShellSafe(r rune) bool {
	return r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("_-+=./,:@%^", r))
}

// shellQuote quotes s as a single bash word: bare when safe, single-quoted when printable,
// ANSI-C quoted ($'...') when it contains control characters
func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	safe, printable := true, true
	for _, r := range s {
		if !isShellSafe(r) {
			safe = false
		}
		if r < 0x20 || r == 0x7f {
			printable = false
		}
	}
	switch {
	case safe:
		return s
	case printable:
		return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
	}

	var sb strings.Builder
	sb.WriteString("$'")
	for _, r := range s {
		switch r {
		case '\\':
			sb.WriteString(`\\`)
		case '\'':
			sb.WriteString(`\'`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			if r < 0x20 || r == 0x7f {
				sb.WriteString(`\x`)
				sb.WriteByte("0123456789abcdef"[r>>4])
				sb.WriteByte("0123456789abcdef"[r&0xf])
			} else {
				sb.WriteRune(r)
			}
		}
	}
	sb.WriteByte('\'')
	return sb.String()
}

// recipeWord quotes s for the shell and then for make
func recipeWord(s string) string { return makeEscape(shellQuote(s)) }

// echo is a silent recipe line printing s
func echo(s string) string { return "@echo " + recipeWord(s) }

// isRooted reports whether p must not be re-rooted under a project prefix
func isRooted(p string) bool {
	return path.IsAbs(p) || strings.HasPrefix(p, "$") || strings.HasPrefix(p, "~")
}

// splitRecipePrefix separates the leading make recipe modifiers (@, - and +) from a command
func splitRecipePrefix(cmd string) (prefix, rest string) {
	i := 0
	for i < len(cmd) && strings.IndexByte("@-+", cmd[i]) >= 0 {
		i++
	}
	return cmd[:i], strings.TrimLeft(cmd[i:], " \t")
}

// qualifier turns a relative project path into a variable name fragment
func qualifier(rel string) string {
	var sb strings.Builder
	for _, r := range strings.ToUpper(rel) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			sb.WriteRune(r)
		} else {
			sb.WriteByte('_')
		}
	}
	return sb.String()
}
