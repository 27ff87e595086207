package commands

import (
	"context"
	"log/slog"

	"lnprice/internal/components/chrono"
	"lnprice/internal/components/telemetry"
	"lnprice/lib/osutil"
	"lnprice/lib/pricestore"

	"github.com/spf13/cobra"
)

var (
	extractFlags     selectionFlags
	extractFirstPage bool
	extractOut       string
	extractDb        string
)

func init() {
	extractFlags.register(extractCmd)
	extractCmd.Flags().BoolVar(&extractFirstPage, "first-page", false, "Only extract the first result page.")
	extractCmd.Flags().StringVar(&extractOut, "out", ".", "File or directory to export to (.xlsx or .csv).")
	extractCmd.Flags().StringVar(&extractDb, "db", "", "Archive the run into this sqlite database.")
	rootCmd.AddCommand(extractCmd)
}

func openStore(ctx context.Context, path string, time chrono.TimeAPI, tel telemetry.API) (pricestore.Store, func()) {
	database, err := pricestore.Open(ctx, path)
	if err != nil {
		osutil.Fatal("failed to open db", err)
	}
	return pricestore.NewStore(database, time, tel), func() { database.Close() }
}

var extractCmd = &cobra.Command{
	Use:   "extract --city <id|name> [--year <yyyy>] [--month <m>] [--first-page] [--out <path>] [--db <path>]",
	Short: "Extracts a price list and exports it.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := newApp()
		defer a.controller.Close()

		a.connectAndSelect(cmd, extractFlags)
		must(a.controller.Query(ctx))

		t1 := a.time.Now()
		must(a.controller.Extract(ctx, !extractFirstPage, func(page, total int) {
			slog.Info("extracting", "page", page, "of", total)
		}))
		slog.Info("extraction time", "seconds", a.time.Now().Sub(t1).Seconds())

		outcome := must(a.controller.Export(ctx, extractOut))

		if extractDb == "" {
			return
		}
		state := a.controller.State()
		city, _ := state.Catalog.Lookup(state.Selection.CityID)

		store, closeStore := openStore(ctx, extractDb, a.time, a.tel)
		defer closeStore()
		id, err := store.Save(ctx, pricestore.Run{
			Region:  cfg.Region,
			City:    city,
			Year:    state.Selection.Year,
			Month:   state.Selection.Month,
			Result:  *state.Result,
			Report:  state.Report,
			Dataset: *state.Dataset,
		})
		if err != nil {
			osutil.Fatal("failed to archive run", err)
		}
		slog.Info("archived run", "id", id, "file", outcome.Path)
	},
}
