package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"cashboxes/internal/core"
	applog "cashboxes/internal/log"
	"cashboxes/internal/services"
)

func newBalanceCommand() *cobra.Command {
	var box, username, asOf string

	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Print the balance of a cash box or of a user",
		Long: "Print the balance of a cash box. With --user, print what the box owes\n" +
			"that user instead; without --box, the user's total over all boxes.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if box == "" && username == "" {
				return fmt.Errorf("at least one of --box or --user is required")
			}

			var cutoff *core.Date
			if asOf != "" {
				d, err := core.ParseDate(asOf)
				if err != nil {
					return fmt.Errorf("invalid date %q: %w", asOf, err)
				}
				cutoff = &d
			}

			a, err := openApp(cmd.Context(), applog.ComponentLedger, false)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			ledger := services.NewLedger(a.store, nil)

			var balance core.Euro
			switch {
			case username == "":
				balance, err = ledger.CashBoxBalance(ctx, box, cutoff)
			default:
				u, uerr := a.store.GetUserByUsername(ctx, username)
				if uerr != nil {
					return fmt.Errorf("user %q: %w", username, uerr)
				}
				if box == "" {
					balance, err = ledger.TotalUserBalance(ctx, u.ID, cutoff)
				} else {
					balance, err = ledger.UserBalance(ctx, box, u.ID, cutoff)
				}
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", balance)
			return nil
		},
	}
	cmd.Flags().StringVar(&box, "box", "", "cash box name")
	cmd.Flags().StringVar(&username, "user", "", "username")
	cmd.Flags().StringVar(&asOf, "as-of", "", "only count transactions on or before this date (YYYY-MM-DD)")
	return cmd
}
