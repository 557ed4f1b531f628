package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"testctl/internal/locator"
	"testctl/internal/waitgate"
)

func newWaitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wait",
		Short: "Manage the busy indicators steps wait on",
		Long: `Before UI and mobile actions, testctl waits for every known spinner and
overlay of the context to disappear. Indicators live in the YAML file at
wait_repo.path.`,
	}

	openRepo := func() (*waitgate.Repository, error) {
		cfg, err := loadConfig()
		if err != nil {
			return nil, err
		}
		return waitgate.NewRepository(cfg.WaitRepo.Path)
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:       "add <context> <indicator>",
			Short:     "Add a spinner selector to a context (ui or mobile)",
			Args:      cobra.ExactArgs(2),
			ValidArgs: []string{locator.ContextUI, locator.ContextMobile},
			RunE: func(cmd *cobra.Command, args []string) error {
				repo, err := openRepo()
				if err != nil {
					return err
				}
				added, err := repo.AddIndicator(args[0], args[1])
				if err != nil {
					return err
				}
				if !added {
					fmt.Fprintf(cmd.OutOrStdout(), "%s indicator %q is already known\n", args[0], args[1])
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s indicator %q\n", args[0], args[1])
				return nil
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List the indicators of every context",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				repo, err := openRepo()
				if err != nil {
					return err
				}
				byContext := make(map[string][]string)
				for _, c := range []string{locator.ContextUI, locator.ContextMobile} {
					ind, err := repo.Indicators(c)
					if err != nil {
						return err
					}
					byContext[c] = ind.All()
				}
				p, err := printer(cmd)
				if err != nil {
					return err
				}
				return p.PrintIndicators(byContext)
			},
		},
	)
	return cmd
}
