package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/degentalk/ledger/internal/database"
	"github.com/degentalk/ledger/internal/services"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the ledger tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, dialect, err := database.Open(database.GetConfig())
			if err != nil {
				return err
			}
			defer db.Close()
			return database.Migrate(commandContext(cmd), db, dialect)
		},
	}
}

func auditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Recompute every balance from its entries and report mismatches",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := commandContext(cmd)
			reports, err := a.ledger.AuditAll(ctx)
			if err != nil {
				return err
			}
			supply, err := a.ledger.TotalSupply(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			mismatches := 0
			for _, r := range reports {
				if r.Consistent() {
					continue
				}
				mismatches++
				fmt.Fprintf(out, "MISMATCH %s stored=%d ledger=%d entries=%d\n",
					r.Account, r.StoredBalance, r.LedgerBalance, r.EntryCount)
			}
			fmt.Fprintf(out, "%d accounts, %d mismatches, total supply %d\n", len(reports), mismatches, supply)
			if mismatches > 0 {
				return fmt.Errorf("ledger audit found %d inconsistent accounts", mismatches)
			}
			return nil
		},
	}
}

func replayCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "replay [EVENT_ID]",
		Short: "Reprocess failed webhook events",
		Long: `Reprocess one stored webhook event, or every failed event that can still
succeed when no id is given. Events failed for unknown types or mismatched
orders are skipped.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := commandContext(cmd)
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				outcome, err := a.webhooks.Replay(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s: %s\n", args[0], outcome)
				return nil
			}

			events, err := a.webhooks.ListFailedEvents(ctx, limit)
			if err != nil {
				return err
			}
			for _, event := range events {
				if terminalFailure(event.LastError) {
					continue
				}
				outcome, err := a.webhooks.Replay(ctx, event.ID)
				if err != nil {
					fmt.Fprintf(out, "%s: failed: %v\n", event.ProviderEventID, err)
					continue
				}
				fmt.Fprintf(out, "%s: %s\n", event.ProviderEventID, outcome)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum events to replay")
	return cmd
}

// terminalFailure recognises stored errors that a replay cannot fix
func terminalFailure(lastError string) bool {
	for _, err := range []error{services.ErrUnknownEventType, services.ErrEventMismatch, services.ErrInvalidPayload} {
		if strings.HasPrefix(lastError, err.Error()) {
			return true
		}
	}
	return false
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
