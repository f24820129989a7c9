package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/josancamon19/web-environments/internal/bundle"
	"github.com/josancamon19/web-environments/internal/config"
	"github.com/josancamon19/web-environments/internal/registry"
	"github.com/josancamon19/web-environments/internal/replay"
)

func newReplayCmd(cfg *config.Config, log *zap.SugaredLogger) *cobra.Command {
	var (
		steps      bool
		humanPaced bool
		fallback   bool
		headless   bool
	)

	cmd := &cobra.Command{
		Use:   "replay <task-id>",
		Short: "Replay a recorded bundle against its archived network traffic",
		Long: `Opens a browser whose network layer is served entirely from the
bundle's archive. With --steps the recorded UI actions are played back as
well; otherwise the page stays open for manual interaction against the
frozen snapshot. Unmatched requests are blocked unless --fallback routes
them to the live network.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task, b, err := loadTaskBundle(cmd, cfg, args[0], false)
			if err != nil {
				return err
			}

			engine := replay.NewEngine(b, replay.Options{
				Headless:      headless,
				AllowFallback: fallback,
				ReplaySteps:   steps,
				HumanPaced:    humanPaced,
				LogDir:        registry.RunPath(cfg.DataDir, task.ID),
			}, log)

			if err := engine.Run(cmd.Context()); err != nil {
				return fmt.Errorf("replay task %d: %w", task.ID, err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&steps, "steps", false, "Play back the recorded UI steps")
	cmd.Flags().BoolVar(&humanPaced, "human-paced", false, "Reproduce the recorded pauses between steps")
	cmd.Flags().BoolVar(&fallback, "fallback", false, "Route unmatched requests to the live network")
	cmd.Flags().BoolVar(&headless, "headless", false, "Run the replay browser headless")
	return cmd
}

func newSandboxCmd(cfg *config.Config, log *zap.SugaredLogger) *cobra.Command {
	var headless bool

	cmd := &cobra.Command{
		Use:   "sandbox <task-id>",
		Short: "Open a live browser seeded with a bundle's storage state",
		Long: `Restores the bundle's cookies and origin storage into a fresh
browser against the live network. Nothing is routed or recorded; the
context stays open until Ctrl+C.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, b, err := loadTaskBundle(cmd, cfg, args[0], true)
			if err != nil {
				return err
			}
			return replay.Sandbox(cmd.Context(), b, headless, log)
		},
	}

	cmd.Flags().BoolVar(&headless, "headless", false, "Run the sandbox browser headless")
	return cmd
}

// loadTaskBundle resolves a task id argument to its bundle. Replay requires
// a complete bundle; inspection-style commands accept any finalized one.
func loadTaskBundle(cmd *cobra.Command, cfg *config.Config, arg string, anyStatus bool) (*registry.Task, *bundle.Bundle, error) {
	id, err := parseTaskID(arg)
	if err != nil {
		return nil, nil, err
	}

	reg, err := registry.Open(cfg.DataDir)
	if err != nil {
		return nil, nil, err
	}
	defer reg.Close()

	task, err := reg.Get(cmd.Context(), id)
	if err != nil {
		return nil, nil, fmt.Errorf("task %d: %w", id, err)
	}

	var b *bundle.Bundle
	if anyStatus {
		b, err = bundle.Open(task.BundleDir)
	} else {
		b, err = bundle.Load(task.BundleDir)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("bundle for task %d: %w", id, err)
	}
	return task, b, nil
}

func parseTaskID(arg string) (int64, error) {
	var id int64
	if _, err := fmt.Sscanf(arg, "%d", &id); err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q", arg)
	}
	return id, nil
}
