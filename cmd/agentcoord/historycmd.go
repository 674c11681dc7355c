package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aristath/agentcoord/internal/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Query the SQLite archive",
}

var historyTransitionsCmd = &cobra.Command{
	Use:   "transitions <task-id>",
	Short: "List archived transitions for a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withHistory(cmd.Context(), func(ctx context.Context, store *history.Store) error {
			recs, err := store.Transitions(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(recs)
		})
	},
}

var historyDeliveriesCmd = &cobra.Command{
	Use:   "deliveries <message-id>",
	Short: "List archived delivery outcomes for a message",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withHistory(cmd.Context(), func(ctx context.Context, store *history.Store) error {
			recs, err := store.Deliveries(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(recs)
		})
	},
}

var historyFailedCmd = &cobra.Command{
	Use:   "failed",
	Short: "Count archived failed deliveries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withHistory(cmd.Context(), func(ctx context.Context, store *history.Store) error {
			n, err := store.FailedDeliveryCount(ctx)
			if err != nil {
				return err
			}
			fmt.Println(n)
			return nil
		})
	},
}

func init() {
	historyCmd.AddCommand(historyTransitionsCmd, historyDeliveriesCmd, historyFailedCmd)
	rootCmd.AddCommand(historyCmd)
}

func withHistory(ctx context.Context, fn func(context.Context, *history.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.History == "" {
		return fmt.Errorf("history archiving is disabled (no history path configured)")
	}
	store, err := history.Open(ctx, cfg.History)
	if err != nil {
		return fmt.Errorf("opening history archive: %w", err)
	}
	defer store.Close()
	return fn(ctx, store)
}
