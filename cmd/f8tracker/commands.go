package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/xelth-com/f8tracker/internal/feed"
	"github.com/xelth-com/f8tracker/internal/models"
	"github.com/xelth-com/f8tracker/internal/reconcile"
	"github.com/xelth-com/f8tracker/internal/services/feedsync"
	"github.com/xelth-com/f8tracker/internal/services/printer"
	"github.com/xelth-com/f8tracker/internal/store"
)

var (
	listUnidad   string
	listEstado   string
	exportFormat string
	exportOut    string
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one feed sync cycle against the local cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer a.Close()

		res := a.sync.RunCycle(cmd.Context())
		fmt.Fprintf(cmd.OutOrStdout(), "cycle %s: %s (orders=%d added=%d updated=%d orphans=%d)\n",
			res.CycleID, res.Outcome, a.engine.Len(), res.Merge.Added, res.Merge.Updated, len(res.Merge.Orphans))
		if res.Err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", res.Err)
		}
		if res.Outcome == feedsync.OutcomeFailed {
			return res.Err
		}
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print cached orders as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer a.Close()

		var orders []models.Order
		switch {
		case listUnidad != "":
			orders, err = a.engine.FindBy(cmd.Context(), store.IndexUnidad, listUnidad)
		case listEstado != "":
			orders, err = a.engine.FindBy(cmd.Context(), store.IndexEstado, listEstado)
		default:
			orders = a.engine.Orders()
		}
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), orders)
	},
}

var editCmd = &cobra.Command{
	Use:   "edit <id> <field> <value>",
	Short: "Apply a single field edit to a cached order",
	Example: `  f8tracker edit A1 estado EMPACADO
  f8tracker edit A1 comentarios "llamar antes de entregar"`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer a.Close()

		jw, err := openJournal()
		if err != nil {
			return err
		}
		defer jw.Close()

		a.engine.OnEdit(func(ctx context.Context, c reconcile.Change) {
			if err := jw.Append(ctx, changeEntry(c)); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: journal: %v\n", err)
			}
		})

		o, err := a.engine.ApplyEdit(cmd.Context(), models.Edit{ID: args[0], Field: args[1], Value: args[2]})
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), o)
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export cached orders as CSV or PDF",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer a.Close()

		var data []byte
		switch exportFormat {
		case "csv":
			data = feed.ExportCSV(a.engine.Orders())
		case "pdf":
			if data, err = printer.OrdersReportPDF(a.engine.Orders(), time.Now()); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown format %q (want csv or pdf)", exportFormat)
		}

		if exportOut == "" || exportOut == "-" {
			_, err = cmd.OutOrStdout().Write(data)
			return err
		}
		return os.WriteFile(exportOut, data, 0o644)
	},
}

func init() {
	listCmd.Flags().StringVar(&listUnidad, "unidad", "", "only orders of this unidad ejecutora")
	listCmd.Flags().StringVar(&listEstado, "estado", "", "only orders in this status")
	listCmd.MarkFlagsMutuallyExclusive("unidad", "estado")

	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "csv", "output format: csv or pdf")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default stdout)")
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
