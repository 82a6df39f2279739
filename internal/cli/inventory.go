package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/ChuLiYu/procsim/internal/inventory"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var errNoInventory = errors.New("no inventory configured")

func (a *app) openInventory() (*inventory.Inventory, error) {
	if a.cfg.Inventory.Path == "" {
		return nil, errNoInventory
	}
	return inventory.Open(a.cfg.Resolve(a.cfg.Inventory.Path))
}

func (a *app) buildInventoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inventory",
		Short: "Query the product inventory",
	}
	cmd.AddCommand(a.buildInventoryListCommand())
	return cmd
}

func (a *app) buildInventoryListCommand() *cobra.Command {
	var filter inventory.Filter

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalogued products",
		RunE: func(cmd *cobra.Command, args []string) error {
			inv, err := a.openInventory()
			if err != nil {
				return err
			}
			defer inv.Close()

			entries, err := inv.List(cmd.Context(), filter)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(w, "no products")
				return nil
			}

			rows := make([][]string, 0, len(entries))
			var total int64
			for _, e := range entries {
				h := e.Header
				total += h.PayloadSize
				rows = append(rows, []string{
					e.Name,
					strconv.Itoa(h.AbsoluteOrbit),
					strconv.Itoa(h.CellNumber),
					strconv.Itoa(h.ParentCell),
					string(h.Status),
					humanize.IBytes(uint64(h.PayloadSize)),
				})
			}
			fmt.Fprintln(w, renderTable(
				[]string{"NAME", "ORBIT", "CELL", "PARENT", "STATUS", "SIZE"},
				rows, 4))
			fmt.Fprintf(w, "%s products, %s\n", humanize.Comma(int64(len(entries))), humanize.IBytes(uint64(total)))
			return nil
		},
	}

	cmd.Flags().StringVar(&filter.Type, "type", "", "only products of this type")
	cmd.Flags().StringVar(&filter.RunID, "run", "", "only products of this run id")
	cmd.Flags().IntVar(&filter.Limit, "limit", 0, "maximum number of products (0 for all)")

	return cmd
}
