// Package cli implements the plandag command line: one-shot compiles and
// a watch mode that recompiles on save.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/dgallion1/plandag/internal/config"
	"github.com/dgallion1/plandag/internal/logging"
	"github.com/dgallion1/plandag/internal/outline"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// Exit codes
const (
	ExitSuccess = 0
	// ExitInvalidPlan means the outline failed to compile.
	ExitInvalidPlan = 1
	// ExitFailure covers unreadable files, bad flags and config errors.
	ExitFailure = 2
)

type globalFlags struct {
	configPath string
	logLevel   string
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	var g globalFlags
	root := &cobra.Command{
		Use:   "plandag",
		Short: "Compile plan outlines into task dependency graphs",
		Long: `plandag turns an outline of headers and nested lists, annotated with
estimates, deadlines and references, into a validated dependency graph.`,
		Example: `  plandag compile launch.md
  plandag compile plan.txt -o yaml --now 2024-12-20
  plandag watch launch.md -o text`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "config file (.yaml or .json)")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(newCompileCmd(&g), newWatchCmd(&g))
	return root
}

// Execute runs the CLI and returns the process exit code.
func Execute(args []string, stdout, stderr io.Writer) int {
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.Execute(); err != nil {
		printError(stderr, err)
		return ExitCode(err)
	}
	return ExitSuccess
}

// ExitCode maps an error to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	if _, ok := outline.KindOf(err); ok {
		return ExitInvalidPlan
	}
	return ExitFailure
}

// loadConfig reads configuration and applies flag overrides.
func (g *globalFlags) loadConfig() (config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// logger writes text logs to the command's stderr.
func logger(cmd *cobra.Command, cfg config.Config) *slog.Logger {
	return logging.New(cfg.LogLevel, "text", cmd.ErrOrStderr())
}

// printError writes err in red, adding the line and involved tasks of an
// outline error.
func printError(w io.Writer, err error) {
	red := color.New(color.FgRed, color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	var oe *outline.Error
	if !errors.As(err, &oe) {
		fmt.Fprintf(w, "%s %v\n", red("error:"), err)
		return
	}
	fmt.Fprintf(w, "%s %s %v\n", red("error:"), dim("["+oe.Kind.String()+"]"), oe)
	for _, task := range oe.Tasks {
		fmt.Fprintf(w, "  %s %s\n", dim("-"), task)
	}
}
