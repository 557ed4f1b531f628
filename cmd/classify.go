package cmd

import (
	"github.com/spf13/cobra"

	"testctl/internal/app"
	"testctl/internal/cli"
	"testctl/internal/testcase"
)

func newClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <file|dir>",
		Short: "Show which backend each test case would run on",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cases, err := testcase.Load(args[0])
			if err != nil {
				return err
			}
			p, err := printer(cmd)
			if err != nil {
				return err
			}

			a, err := openApp(cmd.Context(), app.Options{Stub: true})
			if err != nil {
				return err
			}
			defer a.Close()

			rows := make([]cli.Classification, 0, len(cases))
			for _, tc := range cases {
				rows = append(rows, cli.Classification{Identifier: tc.Identifier, Backend: a.Router.Classify(cmd.Context(), tc)})
			}
			return p.PrintClassifications(rows)
		},
	}
}
