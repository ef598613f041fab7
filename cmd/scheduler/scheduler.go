// Package scheduler implements the cron-driven runner that executes the
// pipeline stages on their configured schedules.
package scheduler

import (
	"context"
	"fmt"
	"os/signal"
	"sync"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/northvine/sitesync/cmd/common"
	"github.com/northvine/sitesync/internal/logger"
	"github.com/northvine/sitesync/internal/pipeline"
)

// Default schedules when the config leaves them unset. The stages are
// staggered so a scan's changes are usually orchestrated and applied within
// the same hour.
const (
	defaultScanCron        = "0 * * * *"
	defaultOrchestrateCron = "15 * * * *"
	defaultApplyCron       = "45 * * * *"
)

// Command returns the scheduler command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "scheduler",
		Short: "Run the pipeline stages on their cron schedules",
		Long: `Scheduler keeps the process alive and triggers scan, orchestrate, and
apply runs on the cron expressions from configuration. Stage runs never
overlap; a trigger that fires while another stage is running is skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := common.NewDeps(cmd)
			if err != nil {
				return err
			}

			p, err := pipeline.New(cmd.Context(), deps.Config, deps.Logger)
			if err != nil {
				return fmt.Errorf("wire pipeline: %w", err)
			}
			defer p.Close()

			sched := deps.Config.Scheduler
			return run(cmd.Context(), p, deps.Logger, stageSchedules{
				scan:        orDefault(sched.ScanCron, defaultScanCron),
				orchestrate: orDefault(sched.OrchestrateCron, defaultOrchestrateCron),
				apply:       orDefault(sched.ApplyCron, defaultApplyCron),
			})
		},
	}
}

type stageSchedules struct {
	scan        string
	orchestrate string
	apply       string
}

func orDefault(expr, fallback string) string {
	if expr == "" {
		return fallback
	}
	return expr
}

// run blocks until the context is cancelled or a termination signal arrives.
func run(ctx context.Context, p *pipeline.Pipeline, log logger.Logger, schedules stageSchedules) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// One mutex across all stages: the pipeline is a single logical thread,
	// so a slow stage delays the others rather than racing them.
	var mu sync.Mutex
	c := cron.New()

	stages := []struct {
		name string
		expr string
		fn   func(context.Context) error
	}{
		{"scan", schedules.scan, p.Scan},
		{"orchestrate", schedules.orchestrate, p.Orchestrate},
		{"apply", schedules.apply, p.Apply},
	}

	for _, stage := range stages {
		name, fn := stage.name, stage.fn
		_, err := c.AddFunc(stage.expr, func() {
			if !mu.TryLock() {
				log.Warn("Skipping stage run, another stage still in progress",
					logger.String("stage", name))
				return
			}
			defer mu.Unlock()

			log.Info("Stage run triggered", logger.String("stage", name))
			if err := fn(ctx); err != nil {
				log.Error("Stage run failed",
					logger.String("stage", name),
					logger.Error(err))
				return
			}
			log.Info("Stage run complete", logger.String("stage", name))
		})
		if err != nil {
			return fmt.Errorf("schedule %s (%q): %w", stage.name, stage.expr, err)
		}
	}

	log.Info("Scheduler started",
		logger.String("scan", schedules.scan),
		logger.String("orchestrate", schedules.orchestrate),
		logger.String("apply", schedules.apply))

	c.Start()
	<-ctx.Done()

	log.Info("Scheduler stopping")
	<-c.Stop().Done()
	return nil
}
