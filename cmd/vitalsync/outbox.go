package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vitalsync/vitalsync/pkg/config"
	"github.com/vitalsync/vitalsync/pkg/storage"
	"github.com/vitalsync/vitalsync/pkg/types"
)

// Outbox diagnostics operate on the store directly. Run them while the
// agent is stopped; bolt takes an exclusive file lock.
var outboxCmd = &cobra.Command{
	Use:   "outbox",
	Short: "Inspect and repair the outbox ledger",
}

var outboxListCmd = &cobra.Command{
	Use:   "list",
	Short: "List outbox entries by status",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")

		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		entries, err := store.ListOutboxByStatus(types.OutboxStatus(status))
		if err != nil {
			return fmt.Errorf("failed to list outbox: %v", err)
		}

		if len(entries) == 0 {
			fmt.Printf("No outbox entries with status %q\n", status)
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tKIND\tOP\tATTEMPTS\tNEXT ATTEMPT\tLAST ERROR")
		for _, e := range entries {
			next := "-"
			if !e.NextAttemptAt.IsZero() {
				next = e.NextAttemptAt.Format(time.RFC3339)
			}
			lastErr := e.LastError
			if len(lastErr) > 60 {
				lastErr = lastErr[:57] + "..."
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
				e.ID, e.Kind, e.Op, e.AttemptCount, next, lastErr)
		}
		return w.Flush()
	},
}

var outboxRetryCmd = &cobra.Command{
	Use:   "retry [ID]",
	Short: "Reset failed outbox entries to pending",
	Long: `Reset permanently failed outbox entries so the drainer picks them
up again. Pass an entry ID to retry one entry, or --all to retry every
permanently failed entry.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		if !all && len(args) != 1 {
			return fmt.Errorf("pass an outbox entry ID or --all")
		}

		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		var targets []*types.OutboxEntry
		if all {
			targets, err = store.ListOutboxByStatus(types.OutboxFailedPermanent)
			if err != nil {
				return fmt.Errorf("failed to list outbox: %v", err)
			}
		} else {
			entry, err := store.GetOutbox(args[0])
			if err != nil {
				return fmt.Errorf("failed to load outbox entry: %v", err)
			}
			if entry.Status != types.OutboxFailedPermanent {
				return fmt.Errorf("entry %s has status %s, only failed entries can be retried", entry.ID, entry.Status)
			}
			targets = []*types.OutboxEntry{entry}
		}

		for _, entry := range targets {
			entry.Status = types.OutboxPending
			entry.AttemptCount = 0
			entry.NextAttemptAt = time.Now()
			entry.LastError = ""
			entry.UpdatedAt = time.Now()
			if err := store.PutOutbox(entry); err != nil {
				return fmt.Errorf("failed to reset entry %s: %v", entry.ID, err)
			}
			fmt.Printf("✓ Reset %s to pending\n", entry.ID)
		}

		if len(targets) == 0 {
			fmt.Println("No permanently failed entries to retry")
		}
		return nil
	},
}

func init() {
	outboxCmd.AddCommand(outboxListCmd)
	outboxCmd.AddCommand(outboxRetryCmd)

	outboxCmd.PersistentFlags().String("config", "", "Path to YAML config file")
	outboxCmd.PersistentFlags().String("data-dir", "", "Override data directory")

	outboxListCmd.Flags().String("status", string(types.OutboxPending), "Status to list (pending, in_flight, failed_permanent)")
	outboxRetryCmd.Flags().Bool("all", false, "Retry every permanently failed entry")
}

func openStore(cmd *cobra.Command) (storage.Store, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dataDir, _ := cmd.Flags().GetString("data-dir"); dataDir != "" {
		cfg.DataDir = dataDir
	}

	store, err := storage.NewStore(storage.Backend(cfg.Storage), cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %v", err)
	}
	return store, nil
}
