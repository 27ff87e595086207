package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"lnprice/internal/components/chrono"
	"lnprice/internal/components/telemetry"
	"lnprice/internal/report"
	"lnprice/lib/osutil"
	"lnprice/lib/pricestore"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	historyDb  string
	historyId  string
	historyOut string
)

func init() {
	historyCmd.PersistentFlags().StringVar(&historyDb, "db", "jgxx.db", "The sqlite database runs were archived to.")
	historyExportCmd.Flags().StringVar(&historyId, "id", "", "Id of the run to export.")
	historyExportCmd.Flags().StringVar(&historyOut, "out", ".", "File or directory to export to (.xlsx or .csv).")
	historyExportCmd.MarkFlagRequired("id")
	historyDeleteCmd.Flags().StringVar(&historyId, "id", "", "Id of the run to delete.")
	historyDeleteCmd.MarkFlagRequired("id")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyExportCmd)
	historyCmd.AddCommand(historyDeleteCmd)
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Lists, re-exports and deletes archived runs.",
}

var historyListCmd = &cobra.Command{
	Use:   "list [--db <path>]",
	Short: "Lists archived runs, newest first.",
	Run: func(cmd *cobra.Command, args []string) {
		store, closeStore := openStore(cmd.Context(), historyDb, chrono.NewStandardTime(), telemetry.NewSlogAPI())
		defer closeStore()

		runs, err := store.List(cmd.Context())
		if err != nil {
			osutil.Fatal("failed to list runs", err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"ID", "Archived", "Region", "City", "Date", "Records", "Rows"})
		for _, run := range runs {
			t.AppendRow(table.Row{
				run.ID,
				run.CreatedAt.Format(time.DateTime),
				run.Region,
				run.CityName,
				fmt.Sprintf("%04d-%02d", run.Year, run.Month),
				run.TotalRecords,
				run.Rows,
			})
		}
		t.Render()
	},
}

var historyExportCmd = &cobra.Command{
	Use:   "export --id <id> [--out <path>] [--db <path>]",
	Short: "Exports an archived run again.",
	Run: func(cmd *cobra.Command, args []string) {
		tel := telemetry.NewSlogAPI()
		store, closeStore := openStore(cmd.Context(), historyDb, chrono.NewStandardTime(), tel)
		defer closeStore()

		run, err := store.Load(cmd.Context(), historyId)
		if errors.Is(err, pricestore.ErrRunNotFound) {
			osutil.Fatal("no such run", fmt.Errorf("%w: %s", err, historyId))
		}
		if err != nil {
			osutil.Fatal("failed to load run", err)
		}
		if run.Dataset.Empty() {
			osutil.Fatal("nothing to export", errors.New("the run has no rows"))
		}

		path := historyOut
		info, err := os.Stat(path)
		if err == nil && info.IsDir() {
			path = filepath.Join(path, report.DefaultFilename(run.Region, run.City.DisplayName, run.Year, run.Month)+".xlsx")
		}

		written, err := report.NewWriter(tel).Write(path, run.Dataset)
		if err != nil {
			osutil.Fatal("failed to export run", err)
		}
		fmt.Fprintf(os.Stderr, "✅ 数据已保存到: %s (记录数: %d)\n", written, len(run.Dataset.Rows))
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete --id <id> [--db <path>]",
	Short: "Deletes an archived run and its rows.",
	Run: func(cmd *cobra.Command, args []string) {
		store, closeStore := openStore(cmd.Context(), historyDb, chrono.NewStandardTime(), telemetry.NewSlogAPI())
		defer closeStore()

		err := store.Delete(cmd.Context(), historyId)
		if errors.Is(err, pricestore.ErrRunNotFound) {
			osutil.Fatal("no such run", fmt.Errorf("%w: %s", err, historyId))
		}
		if err != nil {
			osutil.Fatal("failed to delete run", err)
		}
		fmt.Fprintf(os.Stderr, "🗑️ 已删除记录: %s\n", historyId)
	},
}
