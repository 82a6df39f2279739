package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/ChuLiYu/procsim/internal/journal"
	"github.com/ChuLiYu/procsim/internal/snapshot"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func (a *app) buildStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the scenario and the last run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			w := cmd.OutOrStdout()

			metricsAddr := "disabled"
			if cfg.Metrics.Enabled {
				metricsAddr = fmt.Sprintf(":%d/metrics", cfg.Metrics.Port)
			}
			fmt.Fprintln(w, titleStyle.Render("Scenario"))
			fmt.Fprintln(w, renderFields([][2]string{
				{"Config", a.configPath},
				{"Mission", cfg.Mission},
				{"Orbital period", cfg.OrbitalPeriod().String()},
				{"Slices", fmt.Sprintf("%s every %gs", cfg.Slicing.ProductType, cfg.Slicing.Spacing)},
				{"Frames", fmt.Sprintf("%s every %gs", cfg.Framing.ProductType, cfg.Framing.Spacing)},
				{"Workers", strconv.Itoa(cfg.Worker.WorkerCount)},
				{"Output", cfg.Resolve(cfg.OutputDir)},
				{"Metrics", metricsAddr},
			}))

			if err := a.printJournal(cmd); err != nil {
				return err
			}

			inv, err := a.openInventory()
			switch {
			case errors.Is(err, errNoInventory):
			case err != nil:
				return err
			default:
				n, err := inv.Count(cmd.Context(), "")
				inv.Close()
				if err != nil {
					return err
				}
				fmt.Fprintln(w, renderFields([][2]string{{"Inventory", humanize.Comma(int64(n)) + " products"}}))
			}

			summary, err := snapshot.NewManager(a.summaryPath()).Load()
			if errors.Is(err, snapshot.ErrSnapshotNotFound) {
				fmt.Fprintln(w, "no run recorded")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(w)
			renderSummary(w, summary)
			return nil
		},
	}
}

// printJournal reports the journal sequence and generated product count
func (a *app) printJournal(cmd *cobra.Command) error {
	path := a.cfg.Resolve(a.cfg.Journal.Path)
	j, err := journal.Open(path, false)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer j.Close()

	generated, err := j.Generated()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderFields([][2]string{
		{"Journal", path},
		{"Journal seq", strconv.FormatUint(j.LastSeq(), 10)},
		{"Generated", humanize.Comma(int64(len(generated))) + " products"},
	}))
	return nil
}
