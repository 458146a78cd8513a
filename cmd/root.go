// mike [folder], mike generate [folder]
package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/qobs-build/mike/internal/builder"
	"github.com/qobs-build/mike/internal/builder/gen"
	"github.com/qobs-build/mike/internal/msg"
	"github.com/qobs-build/mike/internal/project"
	"github.com/spf13/cobra"
)

var errStale = errors.New("stale Makefiles")

var (
	flagLayout = NewEnumValue("recursive", map[string]string{
		"recursive": "One Makefile per project, children are run with $(MAKE) -C (default)",
		"flat":      "A single Makefile at the root containing every project",
	})
	flagDryRun bool
	flagCheck  bool
)

type generateOptions struct {
	layout gen.Layout
	dryRun bool
	check  bool
}

// generate runs one generation for args and reports to w. It returns nil when there is
// nothing to do.
func generate(w io.Writer, args []string, opts generateOptions) error {
	if len(args) > 1 {
		fmt.Fprintf(w, "Usage: %s [folder]\n", getProgramName())
		return nil
	}

	target := "."
	if len(args) > 0 {
		target = args[0]
	}
	dir, err := filepath.Abs(target)
	if err != nil {
		return err
	}

	msg.Info("Generating Makefile at %s", dir)
	found, err := project.HasConfig(dir)
	if err != nil {
		return err
	}
	if !found {
		msg.Warn("no %s in %s, nothing to generate", project.ConfigFilename, dir)
		return nil
	}

	b, err := builder.NewBuilderInDirectory(dir)
	if err != nil {
		return err
	}

	switch {
	case opts.check:
		stale, err := b.Check(opts.layout)
		if err != nil {
			return err
		}
		for _, s := range stale {
			msg.Warn("%s is out of date", b.Rel(s.Path))
			io.WriteString(&msg.IndentWriter{Indent: "    ", W: w}, s.Diff)
		}
		if len(stale) > 0 {
			return fmt.Errorf("%w: %d of them need regenerating", errStale, len(stale))
		}
		msg.Info("Makefiles are up to date")
	case opts.dryRun:
		return b.Print(w, opts.layout)
	default:
		files, err := b.Write(opts.layout)
		if err != nil {
			return err
		}
		for _, f := range files {
			msg.Info("Wrote %s", b.Rel(f.Path))
		}
	}
	return nil
}

func doGenerate(cmd *cobra.Command, args []string) {
	layout, err := gen.ParseLayout(flagLayout.Value())
	if err != nil {
		msg.Fatal("%v", err)
	}
	opts := generateOptions{layout: layout, dryRun: flagDryRun, check: flagCheck}
	if err := generate(cmd.OutOrStdout(), args, opts); err != nil {
		msg.Fatal("%v", err)
	}
}

var rootCmd = &cobra.Command{
	Use:   "mike [folder]",
	Short: "Makefile generator for C/C++ projects",
	Long:  `Generates Makefiles from the mike.toml description of a project and its children. If no folder is given, uses "."`,
	Args:  cobra.ArbitraryArgs,
	Run:   doGenerate,
}

var generateCmd = &cobra.Command{
	Use:     "generate [folder]",
	Aliases: []string{"gen"},
	Short:   "Generate Makefiles",
	Long:    `Generate Makefiles. If no folder is given, uses "."`,
	Args:    cobra.ArbitraryArgs,
	Run:     doGenerate,
}

func init() {
	addGenerateFlags(rootCmd)

	// mike generate subcommand
	rootCmd.AddCommand(generateCmd)
	addGenerateFlags(generateCmd)
}

func addGenerateFlags(cmd *cobra.Command) {
	cmd.Flags().VarP(&flagLayout, "layout", "l", "Output layout, one of "+flagLayout.HelpString())
	cmd.RegisterFlagCompletionFunc("layout", flagLayout.CompletionFunc())
	cmd.Flags().BoolVarP(&flagDryRun, "dry-run", "n", false, "Print the Makefiles instead of writing them")
	cmd.Flags().BoolVar(&flagCheck, "check", false, "Fail if any Makefile on disk is out of date, without writing")
	cmd.MarkFlagsMutuallyExclusive("dry-run", "check")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
