package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/plandag/internal/parser"
	"github.com/dgallion1/plandag/internal/watch"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newWatchCmd(g *globalFlags) *cobra.Command {
	var (
		format   string
		debounce time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch FILE",
		Short: "Recompile FILE each time it is saved",
		Long: `Watch compiles FILE, then recompiles it from scratch after every save once
the file has been quiet for the debounce period. When an edit breaks the
outline the error is shown and the last valid graph is kept.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validFormat(format); err != nil {
				return err
			}
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("debounce") {
				debounce = cfg.Debounce
			}

			w, err := watch.New(args[0], watch.Options{
				Debounce:   debounce,
				LookBehind: cfg.DeadlineLookBehind,
				Parse:      parser.Options{FallbackPdftotext: cfg.PDFFallbackPdftotext},
				Log:        logger(cmd, cfg),
			})
			if err != nil {
				return err
			}
			defer w.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, w, cmd.OutOrStdout(), cmd.ErrOrStderr(), format)
		},
	}
	cmd.Flags().StringVarP(&format, "output", "o", FormatText, "output format: json, yaml or text")
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "quiet period before recompiling")
	return cmd
}

type watchRunner interface {
	Run(ctx context.Context, onResult func(watch.Result)) error
}

func runWatch(ctx context.Context, w watchRunner, stdout, stderr io.Writer, format string) error {
	return w.Run(ctx, func(r watch.Result) {
		printResult(stdout, stderr, r, format)
	})
}

// printResult shows one compile: the new graph, or the error and how much
// of the previous graph is still in effect.
func printResult(stdout, stderr io.Writer, r watch.Result, format string) {
	green := color.New(color.FgGreen, color.Bold).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	stamp := dim(fmt.Sprintf("[#%d %s]", r.Revision, r.Duration.Round(time.Microsecond)))
	if r.Err != nil {
		fmt.Fprintln(stderr, stamp)
		printError(stderr, r.Err)
		if r.Last != nil {
			fmt.Fprintln(stderr, yellow(fmt.Sprintf("keeping last valid graph (%d tasks)", len(r.Last.Nodes))))
		}
		return
	}
	fmt.Fprintf(stdout, "%s %s\n", stamp, green(r.Title))
	if err := writeDAG(stdout, r.DAG, format); err != nil {
		printError(stderr, err)
	}
}
