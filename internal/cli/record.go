package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/josancamon19/web-environments/internal/archiver"
	"github.com/josancamon19/web-environments/internal/browser"
	"github.com/josancamon19/web-environments/internal/bundle"
	"github.com/josancamon19/web-environments/internal/config"
	"github.com/josancamon19/web-environments/internal/entity"
	"github.com/josancamon19/web-environments/internal/recorder"
	"github.com/josancamon19/web-environments/internal/registry"
)

func newRecordCmd(cfg *config.Config, log *zap.SugaredLogger) *cobra.Command {
	var (
		taskID   int64
		startURL string
	)

	cmd := &cobra.Command{
		Use:   "record [description...]",
		Short: "Record a live browsing session into a bundle",
		Long: `Opens a browser, registers (or resumes) a task and records every
UI step and network exchange until interrupted with Ctrl+C. Interruption
is the normal way to end a session; the bundle is finalized on the way out.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := registry.Open(cfg.DataDir)
			if err != nil {
				return err
			}
			defer reg.Close()

			task, err := resolveTask(cmd.Context(), reg, taskID, strings.Join(args, " "))
			if err != nil {
				return err
			}

			if err := reg.UpdateStatus(cmd.Context(), task.ID, registry.TaskRecording); err != nil {
				return err
			}

			status, runErr := recordSession(cmd.Context(), cfg, task, startURL, log)

			taskStatus := registry.TaskComplete
			if status != entity.StatusComplete {
				taskStatus = registry.TaskFailed
			}
			if err := reg.UpdateStatus(context.Background(), task.ID, taskStatus); err != nil {
				log.Warnw("task status update failed", "task", task.ID, "err", err)
			}

			if runErr != nil {
				return runErr
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded task %d into %s (%s)\n", task.ID, task.BundleDir, status)
			return nil
		},
	}

	cmd.Flags().Int64Var(&taskID, "task", 0, "Record against an existing task id instead of creating one")
	cmd.Flags().StringVar(&startURL, "url", "", "URL to open when the session starts")
	return cmd
}

func resolveTask(ctx context.Context, reg *registry.Registry, taskID int64, description string) (*registry.Task, error) {
	if taskID != 0 {
		task, err := reg.Get(ctx, taskID)
		if err != nil {
			return nil, fmt.Errorf("task %d: %w", taskID, err)
		}
		return task, nil
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, errors.New("provide a task description or --task <id>")
	}
	return reg.Create(ctx, description)
}

// recordSession runs one capture session end to end and returns the
// terminal bundle status. The browser outlives ctx: the final storage
// snapshot happens after the event loops have stopped.
func recordSession(ctx context.Context, cfg *config.Config, task *registry.Task, startURL string, log *zap.SugaredLogger) (entity.SessionStatus, error) {
	svc, err := browser.New(context.Background(), browser.Config{
		Headless:       cfg.Headless,
		ViewportWidth:  cfg.ViewportWidth,
		ViewportHeight: cfg.ViewportHeight,
		UserDataDir:    cfg.UserDataDir,
		Stealth:        true,
	})
	if err != nil {
		return entity.StatusIncomplete, fmt.Errorf("launch capture browser: %w", err)
	}
	defer svc.Close()

	writer, err := bundle.NewWriter(task.BundleDir, uuid.NewString(), task.ID,
		svc.BrowserConfig(cfg.BrowserChannel), log)
	if err != nil {
		return entity.StatusIncomplete, err
	}

	exchanges := archiver.NewExchangeLog(writer, cfg.BodyCapBytes, log)
	exchanges.Attach(ctx, svc.Page())

	rec := recorder.New(writer, svc, writer, recorder.Options{
		ScrollQuiet:        cfg.ScrollQuiet,
		ScreenshotThrottle: cfg.ScreenshotThrottle,
	}, log)

	if err := svc.StartEventStream(ctx, rec.Handle); err != nil {
		finalize(writer, entity.StatusIncomplete, log)
		return entity.StatusIncomplete, fmt.Errorf("install event hooks: %w", err)
	}

	if startURL != "" {
		if err := svc.Navigate(startURL); err != nil {
			log.Warnw("start navigation failed", "url", startURL, "err", err)
		}
	}

	log.Infow("recording", "task", task.ID, "bundle", task.BundleDir)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rec.Run(gctx)
		return nil
	})
	_ = g.Wait()

	// Event loops are down; drain what never completed, then snapshot
	// storage from the still-live page.
	exchanges.Drain()

	status := entity.StatusComplete
	if st, err := svc.SnapshotStorage(); err != nil {
		log.Warnw("storage snapshot failed", "err", err)
		status = entity.StatusIncomplete
	} else if err := writer.WriteStorageState(st); err != nil {
		log.Warnw("storage state write failed", "err", err)
		status = entity.StatusIncomplete
	}

	if err := writer.Finalize(status); err != nil {
		return entity.StatusIncomplete, fmt.Errorf("finalize bundle: %w", err)
	}
	return status, nil
}

func finalize(w *bundle.Writer, status entity.SessionStatus, log *zap.SugaredLogger) {
	if err := w.Finalize(status); err != nil && !errors.Is(err, bundle.ErrFinalized) {
		log.Warnw("finalize failed", "err", err)
	}
}
