package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"testctl/internal/app"
	"testctl/internal/locator"
	"testctl/internal/step"
)

func newLocatorsCmd() *cobra.Command {
	var locContext string

	cmd := &cobra.Command{
		Use:   "locators",
		Short: "Inspect and edit the versioned locator store",
		Long: `Locators are stored per context (ui or mobile) and step key. Setting a
locator deactivates the previous version; history is never deleted.

Example usage:
  testctl locators list --context ui
  testctl locators key '{"action":"click","label":"Login"}'
  testctl locators get click:Login --copy
  testctl locators set click:Login css '#login-button'
  testctl locators history click:Login`,
	}
	cmd.PersistentFlags().StringVar(&locContext, "context", locator.ContextUI, "Locator context (ui or mobile)")
	_ = cmd.RegisterFlagCompletionFunc("context", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{locator.ContextUI, locator.ContextMobile}, cobra.ShellCompDirectiveDefault
	})

	withStore := func(run func(cmd *cobra.Command, store *locator.Store, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), app.Options{Stub: true})
			if err != nil {
				return err
			}
			defer a.Close()
			return run(cmd, a.Locators, args)
		}
	}

	var copyValue bool
	get := &cobra.Command{
		Use:   "get <step-key>",
		Short: "Print the active locator for a step key",
		Args:  cobra.ExactArgs(1),
		RunE: withStore(func(cmd *cobra.Command, store *locator.Store, args []string) error {
			loc, err := store.GetActive(cmd.Context(), locContext, args[0])
			if err != nil {
				return err
			}
			if loc == nil {
				return fmt.Errorf("no active %s locator for %q", locContext, args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), loc.String())
			if copyValue {
				if err := clipboard.WriteAll(loc.Value); err != nil {
					return fmt.Errorf("failed to copy to clipboard: %w", err)
				}
				fmt.Fprintln(cmd.ErrOrStderr(), "Copied to clipboard")
			}
			return nil
		}),
	}
	get.Flags().BoolVar(&copyValue, "copy", false, "Copy the locator value to the clipboard")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List the active locators of a context",
			Args:  cobra.NoArgs,
			RunE: withStore(func(cmd *cobra.Command, store *locator.Store, args []string) error {
				records, err := store.List(cmd.Context(), locContext)
				if err != nil {
					return err
				}
				p, err := printer(cmd)
				if err != nil {
					return err
				}
				return p.PrintLocators(records)
			}),
		},
		get,
		&cobra.Command{
			Use:   "set <step-key> <type> <value>",
			Short: "Store a new active locator version",
			Args:  cobra.ExactArgs(3),
			RunE: withStore(func(cmd *cobra.Command, store *locator.Store, args []string) error {
				version, err := store.SetActive(cmd.Context(), locContext, args[0], locator.Locator{Type: args[1], Value: args[2]})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Stored %s locator for %q as version %d\n", locContext, args[0], version)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "history <step-key>",
			Short: "List every locator version for a step key, newest first",
			Args:  cobra.ExactArgs(1),
			RunE: withStore(func(cmd *cobra.Command, store *locator.Store, args []string) error {
				records, err := store.History(cmd.Context(), locContext, args[0])
				if err != nil {
					return err
				}
				p, err := printer(cmd)
				if err != nil {
					return err
				}
				return p.PrintLocators(records)
			}),
		},
		&cobra.Command{
			Use:   "key <step-json>",
			Short: "Print the step key a step would be stored under",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				var s step.Step
				if err := json.Unmarshal([]byte(args[0]), &s); err != nil {
					return fmt.Errorf("invalid step JSON: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), step.Key(s))
				return nil
			},
		},
	)
	return cmd
}
