package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/josancamon19/web-environments/internal/config"
	"github.com/josancamon19/web-environments/internal/registry"
	"github.com/josancamon19/web-environments/internal/trajectory"
)

const (
	trajectoryFile  = "trajectory.json"
	checkpointsFile = "checkpoints.json"
)

func newCompileCmd(cfg *config.Config, log *zap.SugaredLogger) *cobra.Command {
	var annotate bool

	cmd := &cobra.Command{
		Use:   "compile <task-id>",
		Short: "Compile a bundle's steps into a tool-call trajectory",
		Long: `Reduces the recorded step log to the semantic tool-call sequence
used for agent training and writes it next to the bundle. Compilation is
deterministic: recompiling an unchanged bundle produces identical output.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task, b, err := loadTaskBundle(cmd, cfg, args[0], true)
			if err != nil {
				return err
			}

			traj := trajectory.Compile(task.ID, task.Description, b.Steps)

			// Derived output goes next to the run, never into the finalized
			// bundle, which stays read-only.
			runDir := registry.RunPath(cfg.DataDir, task.ID)
			if err := os.MkdirAll(runDir, 0o755); err != nil {
				return fmt.Errorf("create run dir: %w", err)
			}

			outPath := filepath.Join(runDir, trajectoryFile)
			if err := writeJSON(outPath, traj); err != nil {
				return fmt.Errorf("write trajectory: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Compiled %d steps into %d tool calls: %s\n",
				len(b.Steps), len(traj.ToolCalls), outPath)

			if !annotate {
				return nil
			}
			if cfg.APIKey == "" {
				return errors.New("--annotate requires API_KEY to be set")
			}

			annotator := trajectory.NewOpenAIAnnotator(cfg.APIKey, cfg.Model, cfg.Url)
			checkpoints, err := annotator.Annotate(cmd.Context(), traj)
			if err != nil {
				return fmt.Errorf("annotate trajectory: %w", err)
			}

			cpPath := filepath.Join(runDir, checkpointsFile)
			if err := writeJSON(cpPath, checkpoints); err != nil {
				return fmt.Errorf("write checkpoints: %w", err)
			}
			log.Infow("trajectory annotated", "task", task.ID, "checkpoints", len(checkpoints))
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d checkpoints: %s\n", len(checkpoints), cpPath)
			return nil
		},
	}

	cmd.Flags().BoolVar(&annotate, "annotate", false, "Generate scoring checkpoints with the configured LLM")
	return cmd
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
