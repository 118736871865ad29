package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"cashboxes/internal/core"
	applog "cashboxes/internal/log"
	"cashboxes/internal/services"
)

func newCashBoxCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "cashbox",
		Aliases: []string{"box"},
		Short:   "Create, list and move money in cash boxes",
	}
	cmd.AddCommand(newCashBoxCreateCommand(), newCashBoxListCommand(), newCashBoxFlowCommand())
	return cmd
}

func newCashBoxCreateCommand() *cobra.Command {
	var initial string

	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Register a new cash box",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseInitial(initial)
			if err != nil {
				return err
			}

			a, err := openApp(cmd.Context(), applog.ComponentLedger, false)
			if err != nil {
				return err
			}
			defer a.Close()

			box, err := services.NewLedger(a.store, nil).CreateCashBox(cmd.Context(), args[0], amount)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created cash box %q with initial amount %s\n", box.Name, box.InitialAmount)
			return nil
		},
	}
	cmd.Flags().StringVar(&initial, "initial", "0", "initial amount in euro")
	return cmd
}

// parseInitial accepts zero on top of ParseSignedAmount.
func parseInitial(s string) (core.Euro, error) {
	if d, err := decimal.NewFromString(strings.TrimSpace(s)); err == nil && d.IsZero() {
		return 0, nil
	}
	amount, err := core.ParseSignedAmount(s)
	if err != nil {
		return 0, fmt.Errorf("invalid initial amount %q: %w", s, err)
	}
	return amount, nil
}

func newCashBoxListCommand() *cobra.Command {
	var search string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cash boxes with their balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), applog.ComponentLedger, false)
			if err != nil {
				return err
			}
			defer a.Close()

			boxes, err := services.NewLedger(a.store, nil).CashBoxes(cmd.Context(), search)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tINITIAL\tBALANCE")
			for _, b := range boxes {
				fmt.Fprintf(w, "%s\t%s\t%s\n", b.Box.Name, b.Box.InitialAmount, b.Balance)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "only boxes whose name contains this text")
	return cmd
}

func newCashBoxFlowCommand() *cobra.Command {
	var box, username, amount, date string

	cmd := &cobra.Command{
		Use:   "flow",
		Short: "Record money a user put into or took out of a box",
		Long: "Record a cash flow. A negative amount is money the user paid into the box,\n" +
			"a positive amount is money the user took out of it.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := core.ParseSignedAmount(amount)
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", amount, err)
			}

			a, err := openApp(cmd.Context(), applog.ComponentLedger, false)
			if err != nil {
				return err
			}
			defer a.Close()

			day := core.DateOf(nowFunc())
			if date != "" {
				if day, err = core.ParseDate(date); err != nil {
					return fmt.Errorf("invalid date %q: %w", date, err)
				}
			}

			user, err := a.store.GetUserByUsername(cmd.Context(), username)
			if err != nil {
				return fmt.Errorf("user %q: %w", username, err)
			}

			tx, err := services.NewLedger(a.store, nil).RecordCashFlow(cmd.Context(), box, user, value, day)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "recorded %s for %s in %q on %s\n", tx.Amount, user.Username, box, tx.Date)
			return nil
		},
	}
	cmd.Flags().StringVar(&box, "box", "", "cash box name")
	cmd.Flags().StringVar(&username, "user", "", "username")
	cmd.Flags().StringVar(&amount, "amount", "", "signed amount in euro")
	cmd.Flags().StringVar(&date, "date", "", "transaction date (YYYY-MM-DD), today by default")
	_ = cmd.MarkFlagRequired("box")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}
