package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/ChuLiYu/procsim/internal/grid"
	"github.com/ChuLiYu/procsim/internal/orbit"
	"github.com/ChuLiYu/procsim/pkg/types"
	"github.com/spf13/cobra"
)

// Product levels selectable with --level
const (
	levelSlice = "slice"
	levelFrame = "frame"
)

func (a *app) engine(level string) (*grid.Engine, error) {
	slicing, framing, err := a.cfg.Engines()
	if err != nil {
		return nil, fmt.Errorf("failed to build grid engines: %w", err)
	}
	switch level {
	case levelSlice:
		return slicing, nil
	case levelFrame:
		return framing, nil
	default:
		return nil, fmt.Errorf("invalid level %q: want %s or %s", level, levelSlice, levelFrame)
	}
}

func parseInstant(flag, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("--%s is required", flag)
	}
	t, err := orbit.ParseUTC(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: %w", flag, err)
	}
	return t, nil
}

func (a *app) buildSegmentsCommand() *cobra.Command {
	var start, stop, sliceStart, level, format string
	var index int

	cmd := &cobra.Command{
		Use:   "segments",
		Short: "Segment an acquisition window on the grid",
		Long:  "Print the segments the slicer or framer would produce for an acquisition window, without writing products.",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := a.engine(level)
			if err != nil {
				return err
			}
			req := grid.Request{StartIndex: index}
			if req.Window.Start, err = parseInstant("start", start); err != nil {
				return err
			}
			if req.Window.Stop, err = parseInstant("stop", stop); err != nil {
				return err
			}
			if sliceStart != "" {
				if req.SliceStart, err = parseInstant("slice-start", sliceStart); err != nil {
					return err
				}
			}

			segs, err := engine.Build(req)
			if err != nil {
				return err
			}
			return writeSegments(cmd.OutOrStdout(), engine, segs, format)
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "acquisition start (ISO-8601 UTC)")
	cmd.Flags().StringVar(&stop, "stop", "", "acquisition stop (ISO-8601 UTC)")
	cmd.Flags().StringVar(&sliceStart, "slice-start", "", "theoretical start of the first cell (derived when empty)")
	cmd.Flags().StringVar(&level, "level", levelSlice, "grid level: slice or frame")
	cmd.Flags().IntVar(&index, "index", 0, "id of the first segment (derived from the grid when 0)")
	cmd.Flags().StringVar(&format, "format", "table", "output format: table or json")

	return cmd
}

func writeSegments(w io.Writer, engine *grid.Engine, segs []types.Segment, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(segs)
	case "table":
		rows := make([][]string, 0, len(segs))
		for _, s := range segs {
			orbitNum, err := engine.Table().AbsoluteOrbit(s.Cell.Start)
			if err != nil {
				return err
			}
			rows = append(rows, []string{
				strconv.Itoa(s.ID),
				strconv.Itoa(orbitNum),
				strconv.Itoa(s.Cell.Index),
				formatInstant(s.SensingStart),
				formatInstant(s.SensingStop),
				formatInstant(s.ValidityStart),
				formatInstant(s.ValidityStop),
				string(s.Status),
			})
		}
		fmt.Fprintln(w, renderTable(
			[]string{"ID", "ORBIT", "CELL", "SENSING START", "SENSING STOP", "VALIDITY START", "VALIDITY STOP", "STATUS"},
			rows, 7))
		fmt.Fprintf(w, "%d segments\n", len(segs))
		return nil
	default:
		return fmt.Errorf("invalid format %q: want table or json", format)
	}
}

func (a *app) buildLocateCommand() *cobra.Command {
	var at, level string

	cmd := &cobra.Command{
		Use:   "locate",
		Short: "Show the grid cell containing an instant",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := a.engine(level)
			if err != nil {
				return err
			}
			t, err := parseInstant("at", at)
			if err != nil {
				return err
			}

			cell, err := engine.Cell(t)
			if err != nil {
				return err
			}
			anx, err := engine.Table().NearestPrecedingANX(t)
			if err != nil {
				return err
			}
			orbitNum, err := engine.Table().AbsoluteOrbit(t)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintln(w, renderFields([][2]string{
				{"Instant", formatInstant(t)},
				{"Level", level},
				{"Absolute orbit", strconv.Itoa(orbitNum)},
				{"Preceding ANX", formatInstant(anx)},
				{"Cell", fmt.Sprintf("%d of %d", cell.Index, engine.Config().CellsPerOrbit())},
				{"Cell start", formatInstant(cell.Start)},
				{"Cell end", formatInstant(cell.End)},
			}))
			return nil
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "instant to locate (ISO-8601 UTC)")
	cmd.Flags().StringVar(&level, "level", levelSlice, "grid level: slice or frame")
	return cmd
}

func (a *app) buildClassifyCommand() *cobra.Command {
	var start, stop, level string

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Recover the theoretical grid bounds of a slice",
		Long:  "Classify caller-supplied slice bounds as aligned, aligned with overlaps, or derived from the grid.",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := a.engine(level)
			if err != nil {
				return err
			}
			from, err := parseInstant("start", start)
			if err != nil {
				return err
			}
			to, err := parseInstant("stop", stop)
			if err != nil {
				return err
			}

			bounds, alignment, err := engine.Classify(from, to)
			if err != nil {
				return err
			}
			index, err := engine.CellIndex(bounds.Start)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderFields([][2]string{
				{"Alignment", alignment.String()},
				{"Theoretical start", formatInstant(bounds.Start)},
				{"Theoretical stop", formatInstant(bounds.Stop)},
				{"Cell", strconv.Itoa(index)},
			}))
			return nil
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "slice start (ISO-8601 UTC)")
	cmd.Flags().StringVar(&stop, "stop", "", "slice stop (ISO-8601 UTC)")
	cmd.Flags().StringVar(&level, "level", levelSlice, "grid level: slice or frame")
	return cmd
}
