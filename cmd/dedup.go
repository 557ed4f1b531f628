package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"testctl/internal/cli"
	"testctl/internal/testcase"
	"testctl/internal/versioning"
)

func newDedupCmd() *cobra.Command {
	var threshold float64

	cmd := &cobra.Command{
		Use:   "dedup <file|dir>",
		Short: "Report duplicate and near-duplicate test cases",
		Long: `Exact duplicates have the same steps after lowercasing and collapsing
whitespace. Near duplicates are pairs whose TF-IDF similarity is at least
--threshold (default: versioning.dedup_threshold).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("threshold") {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				threshold = cfg.Versioning.DedupThreshold
			}
			if threshold < 0 || threshold > 1 {
				return fmt.Errorf("threshold must be within [0,1], got %v", threshold)
			}

			cases, err := testcase.Load(args[0])
			if err != nil {
				return err
			}
			p, err := printer(cmd)
			if err != nil {
				return err
			}
			return p.PrintDuplicates(cli.Duplicates{
				Exact:    versioning.FindExactDuplicates(cases),
				Semantic: versioning.FindSemanticDuplicates(cases, threshold),
			})
		},
	}
	cmd.Flags().Float64Var(&threshold, "threshold", versioning.DefaultDedupThreshold, "Minimum similarity for a near duplicate")
	return cmd
}
