// Package cli wires the capture, replay and compile engines into the
// web-environments command tree.
package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/josancamon19/web-environments/internal/config"
)

func NewRootCommand(cfg *config.Config, log *zap.SugaredLogger) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "webenv",
		Short: "Record human web sessions into replayable bundles",
		Long: `webenv captures a human browsing session, its UI steps, network
traffic and storage state, into a self-contained bundle that can later be
replayed deterministically or compiled into an agent training trajectory.`,
	}

	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
	rootCmd.AddCommand(
		newRecordCmd(cfg, log),
		newReplayCmd(cfg, log),
		newSandboxCmd(cfg, log),
		newCompileCmd(cfg, log),
		newTasksCmd(cfg),
	)

	return rootCmd
}
