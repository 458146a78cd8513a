package project

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"runtime"
	"slices"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/pelletier/go-toml/v2"
)

// Config is the decoded content of one mike.toml
type Config struct {
	Name     string
	Options  Options
	Children []string
	Targets  []Target
	Scripts  []Script
	Tests    []Test
}

type headerSection struct {
	Name     string   `toml:"name"`
	Children []string `toml:"children"`
}

// TargetSection defines a [targets.*] table or a [[targets]] entry
type TargetSection struct {
	Name          string            `toml:"name"`
	Sources       []string          `toml:"sources"`
	Headers       []string          `toml:"headers"`
	Includes      []string          `toml:"includes"`
	Libraries     []string          `toml:"libraries"`
	Cflags        []string          `toml:"cflags"`
	Defines       map[string]string `toml:"defines"`
	Executable    bool              `toml:"executable"`
	StaticLibrary bool              `toml:"staticLibrary"`
	SharedLibrary bool              `toml:"sharedLibrary"`
}

// Resolve applies the target defaults. A target without any kind flag is an executable.
func (s TargetSection) Resolve(name string) (Target, error) {
	if err := validateName("target", name); err != nil {
		return Target{}, err
	}
	t := Target{
		Name:          name,
		Sources:       s.Sources,
		Headers:       s.Headers,
		Includes:      slices.Clone(s.Includes),
		Libraries:     slices.Clone(s.Libraries),
		Cflags:        slices.Clone(s.Cflags),
		Defines:       s.Defines,
		Executable:    s.Executable,
		StaticLibrary: s.StaticLibrary,
		SharedLibrary: s.SharedLibrary,
	}
	if t.Sources == nil {
		t.Sources = []string{CurrentDir}
	}
	if t.Headers == nil {
		t.Headers = []string{CurrentDir}
	}
	if !t.Executable && !t.StaticLibrary && !t.SharedLibrary {
		t.Executable = true
	}
	return t, nil
}

// TestSection defines a [tests.*] table or a [[tests]] entry
type TestSection struct {
	Name   string `toml:"name"`
	Target string `toml:"target"`
	Args   string `toml:"args"`
	Input  string `toml:"input"`
	Expect string `toml:"expect"`
}

func (s TestSection) Resolve(name string) (Test, error) {
	if err := validateName("test", name); err != nil {
		return Test{}, err
	}
	if s.Target == "" {
		return Test{}, fmt.Errorf("test %q has no target", name)
	}
	return Test{
		Name:   name,
		Target: s.Target,
		Args:   s.Args,
		Input:  s.Input,
		Expect: s.Expect,
	}, nil
}

var lineBreakRegex = regexp.MustCompile(`(\r\n|\n|\r)\s*`)

// ParseScript builds a script from a multi-line string or an array of command lines
func ParseScript(name string, raw any) (Script, error) {
	if err := validateName("script", name); err != nil {
		return Script{}, err
	}
	s := Script{Name: name}
	switch v := raw.(type) {
	case string:
		v = strings.TrimSpace(v)
		if v != "" {
			s.Commands = lineBreakRegex.Split(v, -1)
		}
	case []any:
		for i, item := range v {
			line, ok := item.(string)
			if !ok {
				return Script{}, fmt.Errorf("script %q: command %d is a %T, expected a string", name, i, item)
			}
			if line = strings.TrimSpace(line); line != "" {
				s.Commands = append(s.Commands, line)
			}
		}
	default:
		return Script{}, fmt.Errorf("script %q: expected a string or an array of strings, got %T", name, raw)
	}
	return s, nil
}

// mergeStructs merges the fields of the src struct into the dst struct
func mergeStructs(dst, src any) error {
	dstVal := reflect.ValueOf(dst)
	if dstVal.Kind() != reflect.Pointer || dstVal.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("dst must be a pointer to a struct")
	}

	dstElem := dstVal.Elem()
	srcVal := reflect.ValueOf(src)

	if srcVal.Kind() == reflect.Pointer {
		srcVal = srcVal.Elem()
	}

	if srcVal.Kind() != reflect.Struct {
		return fmt.Errorf("src must be a struct or a pointer to a struct")
	}

	if dstElem.Type() != srcVal.Type() {
		return fmt.Errorf("dst and src must be of the same struct type")
	}

	for i := range srcVal.NumField() {
		srcField := srcVal.Field(i)
		dstField := dstElem.Field(i)

		if !dstField.CanSet() {
			continue
		}

		switch dstField.Kind() {
		case reflect.Slice:
			if !srcField.IsNil() {
				dstField.Set(reflect.AppendSlice(dstField, srcField))
			}
		case reflect.Map:
			if !srcField.IsNil() {
				if dstField.IsNil() {
					dstField.Set(reflect.MakeMap(dstField.Type()))
				}
				for _, key := range srcField.MapKeys() {
					dstField.SetMapIndex(key, srcField.MapIndex(key))
				}
			}
		case reflect.Bool:
			dstField.SetBool(dstField.Bool() || srcField.Bool())
		default:
			if !srcField.IsZero() {
				dstField.Set(srcField)
			}
		}
	}

	return nil
}

func mustMarshal(v any) []byte {
	b, err := toml.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

// unmarshalConditional decodes table into dst. Sub-tables whose key is a valid expression are
// merged into dst, in key order, when the expression evaluates to true.
func unmarshalConditional[T any](table map[string]any, dst *T, env ConfigEnv, where string) error {
	baseFields := make(map[string]any)
	conditionalFields := make(map[string]map[string]any)

	for key, val := range table {
		if subMap, ok := val.(map[string]any); ok {
			if _, err := expr.Compile(key, expr.Env(env)); err == nil {
				conditionalFields[key] = subMap
				continue
			}
		}
		baseFields[key] = val
	}

	if len(baseFields) > 0 {
		if err := toml.Unmarshal(mustMarshal(baseFields), dst); err != nil {
			return fmt.Errorf("failed to parse %s: %w", where, err)
		}
	}

	expressions := make([]string, 0, len(conditionalFields))
	for expression := range conditionalFields {
		expressions = append(expressions, expression)
	}
	slices.Sort(expressions)

	for _, expression := range expressions {
		program, err := expr.Compile(expression, expr.Env(env))
		if err != nil {
			return fmt.Errorf("failed to compile expression for %s.%q: %w", where, expression, err)
		}

		result, err := expr.Run(program, env)
		if err != nil {
			return fmt.Errorf("failed to run expression for %s.%q: %w", where, expression, err)
		}

		if matched, ok := result.(bool); !ok || !matched {
			continue
		}

		var condSection T
		if err := toml.Unmarshal(mustMarshal(conditionalFields[expression]), &condSection); err != nil {
			return fmt.Errorf("failed to parse conditional section %s.%q: %w", where, expression, err)
		}
		if err := mergeStructs(dst, condSection); err != nil {
			return fmt.Errorf("failed to merge conditional section %s.%q: %w", where, expression, err)
		}
	}

	return nil
}

var exprRegex = regexp.MustCompile(`\{\{(.+?)\}\}`)

// evaluateString finds and evaluates all {{...}} expressions in a string
func evaluateString(s string, env ConfigEnv) (string, error) {
	matches := exprRegex.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s, nil
	}

	var builder strings.Builder
	lastIndex := 0

	for _, matchIndexes := range matches {
		fullMatchStart := matchIndexes[0]
		fullMatchEnd := matchIndexes[1]
		expressionStart := matchIndexes[2]
		expressionEnd := matchIndexes[3]

		builder.WriteString(s[lastIndex:fullMatchStart])

		expression := strings.TrimSpace(s[expressionStart:expressionEnd])
		program, err := expr.Compile(expression, expr.Env(env))
		if err != nil {
			return "", fmt.Errorf("failed to compile expression %q: %w", expression, err)
		}

		result, err := expr.Run(program, env)
		if err != nil {
			return "", fmt.Errorf("failed to run expression %q: %w", expression, err)
		}

		builder.WriteString(fmt.Sprintf("%v", result))
		lastIndex = fullMatchEnd
	}

	builder.WriteString(s[lastIndex:])

	return builder.String(), nil
}

// processExpressions recursively walks the parsed TOML data and evaluates expressions in strings
func processExpressions(data any, env ConfigEnv) (any, error) {
	switch v := data.(type) {
	case map[string]any:
		for key, val := range v {
			processedVal, err := processExpressions(val, env)
			if err != nil {
				return nil, err
			}
			v[key] = processedVal
		}
		return v, nil
	case []any:
		for i, item := range v {
			processedItem, err := processExpressions(item, env)
			if err != nil {
				return nil, err
			}
			v[i] = processedItem
		}
		return v, nil
	case string:
		return evaluateString(v, env)
	default:
		return data, nil
	}
}

// ParseConfig decodes a mike.toml document
func ParseConfig(rdr io.Reader, env ConfigEnv) (*Config, error) {
	data, err := io.ReadAll(rdr)
	if err != nil {
		return nil, err
	}

	var rawConfig map[string]any
	if err := toml.Unmarshal(data, &rawConfig); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			return nil, errors.New(derr.String())
		}
		return nil, err
	}

	order, err := sectionOrder(data, "targets", "scripts", "tests")
	if err != nil {
		return nil, err
	}

	processedConfig, err := processExpressions(rawConfig, env)
	if err != nil {
		return nil, fmt.Errorf("error processing expressions in config: %w", err)
	}
	rawConfig = processedConfig.(map[string]any)

	// top-level scalars; unrelated keys are ignored by the decoder
	top := make(map[string]any, len(rawConfig))
	for k, v := range rawConfig {
		switch k {
		case "targets", "scripts", "tests":
		default:
			top[k] = v
		}
	}
	topData := mustMarshal(top)

	var header headerSection
	if err := toml.Unmarshal(topData, &header); err != nil {
		return nil, fmt.Errorf("failed to parse top-level keys: %w", err)
	}
	cfg := &Config{
		Name:     header.Name,
		Options:  DefaultOptions(),
		Children: header.Children,
	}
	if err := toml.Unmarshal(topData, &cfg.Options); err != nil {
		return nil, fmt.Errorf("failed to parse options: %w", err)
	}
	for _, child := range cfg.Children {
		if err := validateChildPath(child); err != nil {
			return nil, err
		}
	}

	if cfg.Targets, err = parseTargets(rawConfig["targets"], order["targets"], env); err != nil {
		return nil, err
	}
	if cfg.Scripts, err = parseScripts(rawConfig["scripts"], order["scripts"]); err != nil {
		return nil, err
	}
	if cfg.Tests, err = parseTests(rawConfig["tests"], order["tests"]); err != nil {
		return nil, err
	}

	return cfg, nil
}

// namedTables normalises the two accepted layouts of a section (a table keyed by name, or an
// array of tables with a "name" key) into an ordered list
func namedTables(raw any, order []string, section string) (names []string, tables []map[string]any, err error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil, nil
	case map[string]any:
		for _, name := range orderedKeys(v, order) {
			tbl, ok := v[name].(map[string]any)
			if !ok {
				return nil, nil, fmt.Errorf("invalid [%s.%s] section format: expected a table", section, name)
			}
			names = append(names, name)
			tables = append(tables, tbl)
		}
	case []any:
		for i, item := range v {
			tbl, ok := item.(map[string]any)
			if !ok {
				return nil, nil, fmt.Errorf("invalid [[%s]] entry %d: expected a table", section, i)
			}
			name, _ := tbl["name"].(string)
			if name == "" {
				return nil, nil, fmt.Errorf("[[%s]] entry %d has no name", section, i)
			}
			names = append(names, name)
			tables = append(tables, tbl)
		}
	default:
		return nil, nil, fmt.Errorf("invalid [%s] section format: expected a table or an array of tables", section)
	}
	return names, tables, nil
}

func parseTargets(raw any, order []string, env ConfigEnv) ([]Target, error) {
	names, tables, err := namedTables(raw, order, "targets")
	if err != nil {
		return nil, err
	}
	targets := make([]Target, 0, len(names))
	for i, name := range names {
		var section TargetSection
		if err := unmarshalConditional(tables[i], &section, env, "[targets."+name+"]"); err != nil {
			return nil, err
		}
		t, err := section.Resolve(name)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, nil
}

func parseTests(raw any, order []string) ([]Test, error) {
	names, tables, err := namedTables(raw, order, "tests")
	if err != nil {
		return nil, err
	}
	tests := make([]Test, 0, len(names))
	for i, name := range names {
		var section TestSection
		if err := toml.Unmarshal(mustMarshal(tables[i]), &section); err != nil {
			return nil, fmt.Errorf("failed to parse [tests.%s]: %w", name, err)
		}
		t, err := section.Resolve(name)
		if err != nil {
			return nil, err
		}
		tests = append(tests, t)
	}
	return tests, nil
}

func parseScripts(raw any, order []string) ([]Script, error) {
	if raw == nil {
		return nil, nil
	}
	table, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("invalid [scripts] section format: expected a table")
	}
	scripts := make([]Script, 0, len(table))
	for _, name := range orderedKeys(table, order) {
		s, err := ParseScript(name, table[name])
		if err != nil {
			return nil, err
		}
		scripts = append(scripts, s)
	}
	return scripts, nil
}

// ParseConfigFromFile parses a config file from a filepath
func ParseConfigFromFile(path string, env ConfigEnv) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &Error{Kind: ErrConfigNotFound, Path: path}
		}
		return nil, FSError(path, err)
	}
	defer f.Close()

	cfg, err := ParseConfig(f, env)
	if err != nil {
		return nil, &Error{Kind: ErrConfigParse, Path: path, Err: err}
	}
	return cfg, nil
}

//
// expr-lang helpers
//

type ConfigEnv struct {
	TargetOS   string            `expr:"target_os"`
	TargetArch string            `expr:"target_arch"`
	Environ    map[string]string `expr:"environ"`
	basedir    string
}

func NewConfigEnv(basedir string) ConfigEnv {
	environ := make(map[string]string)
	for _, e := range os.Environ() {
		if i := strings.Index(e, "="); i >= 0 {
			environ[e[:i]] = e[i+1:]
		}
	}

	return ConfigEnv{
		TargetOS:   runtime.GOOS,
		TargetArch: runtime.GOARCH,
		Environ:    environ,
		basedir:    basedir,
	}
}

// ReadFile returns the trimmed content of a file inside the project directory
func (env ConfigEnv) ReadFile(path string) (string, error) {
	fullPath := filepath.Join(env.basedir, path)
	rel, err := filepath.Rel(env.basedir, fullPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q is outside of project directory %q", path, env.basedir)
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(data)), nil
}
