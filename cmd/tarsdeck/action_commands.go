package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/potrolco/tarsdeck/internal/app"
)

func newWorkersCmd(cc *commandContext) *cobra.Command {
	workersCmd := &cobra.Command{
		Use:   "workers",
		Short: "Pause or resume workers",
	}
	workersCmd.AddCommand(&cobra.Command{
		Use:   "pause <worker-id>",
		Short: "Pause a worker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cc.withDeck(cmd.Context(), func(d *app.Deck) error {
				if err := d.Workers.Pause(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Paused worker %s\n", args[0])
				return nil
			})
		},
	})
	workersCmd.AddCommand(&cobra.Command{
		Use:   "resume <worker-id>",
		Short: "Resume a paused worker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cc.withDeck(cmd.Context(), func(d *app.Deck) error {
				if err := d.Workers.Resume(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Resumed worker %s\n", args[0])
				return nil
			})
		},
	})
	return workersCmd
}

func newQueueCmd(cc *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Manage pending tasks",
	}
	queueCmd.AddCommand(&cobra.Command{
		Use:     "rm <task-id>",
		Aliases: []string{"remove"},
		Short:   "Remove a pending task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			return cc.withDeck(cmd.Context(), func(d *app.Deck) error {
				if err := d.Queue.DeleteTask(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed task %d\n", id)
				return nil
			})
		},
	})
	return queueCmd
}

func newHistoryCmd(cc *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Manage completed tasks",
	}
	historyCmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete successful tasks from history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cc.withDeck(cmd.Context(), func(d *app.Deck) error {
				if err := d.History.ClearCompleted(cmd.Context()); err != nil {
					return err
				}
				snap := d.History.Snapshot()
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared successful tasks, %d remain\n", snap.Total)
				return nil
			})
		},
	})
	return historyCmd
}

func parseTaskID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q", raw)
	}
	return id, nil
}
