package commands

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var queryFlags selectionFlags

func init() {
	queryFlags.register(queryCmd)
	rootCmd.AddCommand(queryCmd)
}

var queryCmd = &cobra.Command{
	Use:   "query --city <id|name> [--year <yyyy>] [--month <m>]",
	Short: "Prints how many records and pages a price list has.",
	Run: func(cmd *cobra.Command, args []string) {
		a := newApp()
		defer a.controller.Close()

		state := a.connectAndSelect(cmd, queryFlags)
		must(a.controller.Query(cmd.Context()))
		result := a.controller.State().Result
		city, _ := state.Catalog.Lookup(state.Selection.CityID)

		t := newTable()
		t.AppendHeader(table.Row{"City", "Date", "Records", "Pages", "Counted by"})
		t.AppendRow(table.Row{
			city.DisplayName,
			state.Selection.DateString(),
			result.TotalRecords,
			result.TotalPages,
			string(result.RecordsMethod),
		})
		t.Render()
	},
}
