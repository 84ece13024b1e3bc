package cli

import (
	"github.com/dgallion1/plandag/internal/outline"
	"github.com/dgallion1/plandag/internal/parser"
	"github.com/dgallion1/plandag/internal/watch"
	"github.com/spf13/cobra"
)

func newCompileCmd(g *globalFlags) *cobra.Command {
	var (
		format string
		now    string
	)
	cmd := &cobra.Command{
		Use:   "compile FILE",
		Short: "Compile an outline file and print its dependency graph",
		Long: `Compile reads FILE (.plan, .txt, .md, .html, .docx, .pdf or .csv), extracts
the outline and prints the reduced dependency graph. Invalid outlines exit
with status 1.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validFormat(format); err != nil {
				return err
			}
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			ref, err := outline.ParseNow(now)
			if err != nil {
				return err
			}
			log := logger(cmd, cfg)

			title, dag, err := watch.CompileFile(args[0],
				parser.Options{FallbackPdftotext: cfg.PDFFallbackPdftotext},
				outline.Options{Now: ref, LookBehind: cfg.DeadlineLookBehind})
			if err != nil {
				return err
			}
			log.Debug("compiled", "file", args[0], "title", title,
				"nodes", len(dag.Nodes), "edges", len(dag.Edges))
			return writeDAG(cmd.OutOrStdout(), dag, format)
		},
	}
	cmd.Flags().StringVarP(&format, "output", "o", FormatJSON, "output format: json, yaml or text")
	cmd.Flags().StringVar(&now, "now", "", "reference date for partial deadlines (YYYY-MM-DD)")
	return cmd
}
