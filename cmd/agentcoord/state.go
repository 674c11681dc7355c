package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/aristath/agentcoord/internal/logging"
	"github.com/aristath/agentcoord/internal/state"
)

var (
	flagTaskName         string
	flagTaskOwner        string
	flagTaskDeps         []string
	flagTaskDeliverables []string
	flagReason           string
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect and mutate the task state snapshot",
}

var stateCreateCmd = &cobra.Command{
	Use:   "create <id>",
	Short: "Create a task in PENDING",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store *state.Store) error {
			name := flagTaskName
			if name == "" {
				name = args[0]
			}
			if err := store.Create(args[0], name, flagTaskOwner, flagTaskDeliverables, flagTaskDeps); err != nil {
				return err
			}
			return printTask(store, args[0])
		})
	},
}

var stateActivateCmd = &cobra.Command{
	Use:   "activate <id>",
	Short: "Move a task to ACTIVE",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store *state.Store) error {
			if err := store.Activate(args[0]); err != nil {
				return err
			}
			return printTask(store, args[0])
		})
	},
}

var stateCompleteCmd = &cobra.Command{
	Use:   "complete <id> [deliverable...]",
	Short: "Move a task to COMPLETED",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store *state.Store) error {
			if err := store.Complete(args[0], args[1:]...); err != nil {
				return err
			}
			return printTask(store, args[0])
		})
	},
}

var stateFailCmd = &cobra.Command{
	Use:   "fail <id>",
	Short: "Move a task to FAILED",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store *state.Store) error {
			if err := store.Fail(args[0], flagReason); err != nil {
				return err
			}
			return printTask(store, args[0])
		})
	},
}

var stateBlockCmd = &cobra.Command{
	Use:   "block <id>",
	Short: "Move a task to BLOCKED",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store *state.Store) error {
			if err := store.Block(args[0], flagReason); err != nil {
				return err
			}
			return printTask(store, args[0])
		})
	},
}

var stateUnblockCmd = &cobra.Command{
	Use:   "unblock <id>",
	Short: "Return a BLOCKED task to PENDING",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store *state.Store) error {
			if err := store.Unblock(args[0]); err != nil {
				return err
			}
			return printTask(store, args[0])
		})
	},
}

var stateProgressCmd = &cobra.Command{
	Use:   "progress <id> <percent>",
	Short: "Update progress on an ACTIVE task",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		pct, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("parsing percent %q: %w", args[1], err)
		}
		return withStore(func(store *state.Store) error {
			if err := store.UpdateProgress(args[0], pct); err != nil {
				return err
			}
			return printTask(store, args[0])
		})
	},
}

var stateReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print an aggregate state report",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store *state.Store) error {
			return printJSON(store.Report())
		})
	},
}

var stateAvailableCmd = &cobra.Command{
	Use:   "available",
	Short: "List PENDING tasks whose dependencies are all COMPLETED",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store *state.Store) error {
			return printJSON(store.AvailableTasks())
		})
	},
}

var stateWorkloadCmd = &cobra.Command{
	Use:   "workload <agent-id>",
	Short: "Show per-status task counts for an agent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store *state.Store) error {
			return printJSON(store.AgentWorkload(args[0]))
		})
	},
}

var stateValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the dependency graph and print a topological order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store *state.Store) error {
			order, err := store.ValidateDependencies()
			if err != nil {
				return err
			}
			return printJSON(order)
		})
	},
}

func init() {
	stateCreateCmd.Flags().StringVar(&flagTaskName, "name", "", "human-readable task name")
	stateCreateCmd.Flags().StringVar(&flagTaskOwner, "owner", "", "owning agent id")
	stateCreateCmd.Flags().StringSliceVar(&flagTaskDeps, "dep", nil, "dependency task id (repeatable)")
	stateCreateCmd.Flags().StringSliceVar(&flagTaskDeliverables, "deliverable", nil, "expected deliverable (repeatable)")
	stateFailCmd.Flags().StringVar(&flagReason, "reason", "", "failure reason")
	stateBlockCmd.Flags().StringVar(&flagReason, "reason", "", "blocking reason")

	stateCmd.AddCommand(
		stateCreateCmd,
		stateActivateCmd,
		stateCompleteCmd,
		stateFailCmd,
		stateBlockCmd,
		stateUnblockCmd,
		stateProgressCmd,
		stateReportCmd,
		stateAvailableCmd,
		stateWorkloadCmd,
		stateValidateCmd,
	)
	rootCmd.AddCommand(stateCmd)
}

// withStore opens the snapshot-backed store, runs fn, and surfaces any
// snapshot write failures as a command error.
func withStore(fn func(*state.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}

	store, err := state.Open(cfg.Snapshot, logging.NewComponent(log, "state"))
	if err != nil {
		return fmt.Errorf("opening state store: %w", err)
	}
	if err := fn(store); err != nil {
		return err
	}
	if n := store.Report().SnapshotErrors; n > 0 {
		return fmt.Errorf("%d snapshot write failure(s); state may not be persisted", n)
	}
	return nil
}

// printTask prints the task's record after a mutation so callers see the
// resulting state without a second lookup.
func printTask(store *state.Store, id string) error {
	ts, err := store.Get(id)
	if err != nil {
		return err
	}
	return printJSON(ts)
}

func printJSON(v any) error {
	enc := json.NewEncoder(rootCmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
