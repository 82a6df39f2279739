package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ChuLiYu/procsim/internal/config"
	"github.com/ChuLiYu/procsim/internal/generator"
	"github.com/ChuLiYu/procsim/internal/inventory"
	"github.com/ChuLiYu/procsim/internal/joborder"
	"github.com/ChuLiYu/procsim/internal/journal"
	"github.com/ChuLiYu/procsim/internal/metrics"
	"github.com/ChuLiYu/procsim/internal/processor"
	"github.com/ChuLiYu/procsim/internal/snapshot"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

func (a *app) buildRunCommand() *cobra.Command {
	var jobOrder string
	var resume bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a job order",
		Long:  "Run every task of a job order: slice acquisitions into level-0 products and frame them into level-1 products.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.runJobOrder(ctx, cmd, jobOrder, resume)
		},
	}

	cmd.Flags().StringVarP(&jobOrder, "job-order", "j", "", "job order XML file")
	cmd.Flags().BoolVar(&resume, "resume", false, "skip products already generated by the previous run")
	cmd.MarkFlagRequired("job-order")

	return cmd
}

func (a *app) runJobOrder(ctx context.Context, cmd *cobra.Command, path string, resume bool) error {
	cfg := a.cfg

	jo, err := joborder.Load(path)
	if err != nil {
		return err
	}

	slicing, framing, err := cfg.Engines()
	if err != nil {
		return fmt.Errorf("failed to build grid engines: %w", err)
	}

	j, err := journal.Open(cfg.Resolve(cfg.Journal.Path), false)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer j.Close()

	var inv *inventory.Inventory
	if cfg.Inventory.Path != "" {
		if inv, err = inventory.Open(cfg.Resolve(cfg.Inventory.Path)); err != nil {
			return err
		}
		defer inv.Close()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	if cfg.Metrics.Enabled {
		go func() {
			slog.Info("Starting metrics server", "port", cfg.Metrics.Port)
			if err := metrics.Serve(ctx, cfg.Metrics.Port, reg); err != nil {
				slog.Error("Metrics server error", "error", err)
			}
		}()
	}

	p, err := processor.New(processor.Config{
		Mission:          cfg.Mission,
		ProcessorName:    cfg.Processor.Name,
		ProcessorVersion: cfg.Processor.Version,
		Baseline:         cfg.Baseline,
		WorkerCount:      cfg.Worker.WorkerCount,
		TaskTimeout:      cfg.Worker.TaskTimeout,
		PayloadSize:      cfg.Payload.SizeBytes,
		Resources: generator.Resources{
			CPU:      config.Seconds(cfg.Resources.CPUSeconds),
			MemoryMB: cfg.Resources.MemoryMB,
		},
		KeepSummaries: 5,
	}, j, inv, collector, snapshot.NewManager(a.summaryPath()))
	if err != nil {
		return err
	}

	p.Register(joborder.TaskSlicer, func(meta generator.Meta) generator.Generator {
		return generator.NewSlicer(slicing, cfg.Slicing.ProductType, meta)
	})
	p.Register(joborder.TaskFramer, func(meta generator.Meta) generator.Generator {
		return generator.NewFramer(slicing, framing, cfg.Framing.ProductType, meta)
	})

	summary, err := p.Run(ctx, jo, processor.RunOptions{JobOrderPath: path, Resume: resume})
	if summary.RunID != "" {
		renderSummary(cmd.OutOrStdout(), summary)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("run interrupted, resume with --resume: %w", err)
	}
	return err
}
