package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/josancamon19/web-environments/internal/config"
	"github.com/josancamon19/web-environments/internal/registry"
)

func newTasksCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Inspect and manage the task registry",
	}
	cmd.AddCommand(newTasksListCmd(cfg), newTasksAddCmd(cfg))
	return cmd
}

func newTasksListCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered tasks, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := registry.Open(cfg.DataDir)
			if err != nil {
				return err
			}
			defer reg.Close()

			tasks, err := reg.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(tasks) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No tasks registered")
				return nil
			}

			fmt.Fprintln(cmd.OutOrStdout(), "ID\tSTATUS\tCREATED\tDESCRIPTION")
			for _, t := range tasks {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\t%s\n",
					t.ID, t.Status, t.CreatedAt.Format(time.RFC3339), t.Description)
			}
			return nil
		},
	}
}

func newTasksAddCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "add <description...>",
		Short: "Register a task without starting a recording",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := registry.Open(cfg.DataDir)
			if err != nil {
				return err
			}
			defer reg.Close()

			task, err := reg.Create(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created task %d: %s\n", task.ID, task.Description)
			return nil
		},
	}
}
