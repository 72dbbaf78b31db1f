package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmynk/kameti/internal/gateway"
	"github.com/mmynk/kameti/pkg/api"
)

func reconcileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Record a payment the gateway never reported (operator only)",
		Long: `Submit a completed payment manually. Replaying the same transaction ID
is safe: the server returns the original payment marked as duplicate.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}

			tx, _ := cmd.Flags().GetString("tx")
			payer, _ := cmd.Flags().GetString("payer")
			group, _ := cmd.Flags().GetString("group")
			amountStr, _ := cmd.Flags().GetString("amount")
			round, _ := cmd.Flags().GetInt("round")
			method, _ := cmd.Flags().GetString("method")

			amount, err := gateway.ParseAmount(amountStr)
			if err != nil {
				return err
			}

			resp, err := client.ReconcilePayment(cmd.Context(), &api.ReconcilePaymentRequest{
				TransactionID: tx,
				PayerIdentity: payer,
				Amount:        amount,
				GroupID:       group,
				Round:         round,
				Method:        method,
			})
			if err != nil {
				return err
			}
			if resp.Duplicate {
				fmt.Fprintf(cmd.ErrOrStderr(), "transaction %s was already reconciled\n", tx)
			}
			return printJSON(cmd, resp)
		},
	}

	cmd.Flags().String("tx", "", "Transaction ID (required)")
	cmd.Flags().String("payer", "", "Payer email or user ID (required)")
	cmd.Flags().String("group", "", "Kameti ID (required)")
	cmd.Flags().String("amount", "", "Amount in major units, e.g. 1000.00 (required)")
	cmd.Flags().Int("round", 0, "Round the payment is for (default current)")
	cmd.Flags().String("method", "cash", "Payment method (card, bank_transfer, wallet, cash)")
	for _, f := range []string{"tx", "payer", "group", "amount"} {
		cmd.MarkFlagRequired(f)
	}

	return cmd
}

func readinessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "readiness [group-id]",
		Short: "Explain whether a round can be paid out",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			round, _ := cmd.Flags().GetInt("round")

			resp, err := client.GetRoundReadiness(cmd.Context(), &api.GetRoundReadinessRequest{
				GroupID: args[0],
				Round:   round,
			})
			if err != nil {
				return err
			}
			r := resp.Readiness
			fmt.Fprintf(cmd.OutOrStdout(), "Round %d/%d (%s): %s\n", r.Round, r.TotalRounds, r.GroupStatus, r.Reason)
			fmt.Fprintf(cmd.OutOrStdout(), "  Paid:      %d/%d\n", r.PaidCount, r.TotalMembers)
			fmt.Fprintf(cmd.OutOrStdout(), "  Pool:      %s\n", gateway.FormatAmount(r.PoolAmount))
			fmt.Fprintf(cmd.OutOrStdout(), "  Eligible:  %d\n", r.EligibleRecipients)
			fmt.Fprintf(cmd.OutOrStdout(), "  Ready:     %v\n", r.Ready)
			return nil
		},
	}

	cmd.Flags().Int("round", 0, "Round to evaluate (default current)")

	return cmd
}

func payoutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payout [group-id]",
		Short: "Disburse the current round (group owner only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			recipient, _ := cmd.Flags().GetString("recipient")

			resp, err := client.ProcessPayout(cmd.Context(), &api.ProcessPayoutRequest{
				GroupID:     args[0],
				RecipientID: recipient,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, resp)
		},
	}

	cmd.Flags().String("recipient", "", "Recipient user ID, overriding the payout order")

	return cmd
}
