package commands

import (
	"log/slog"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(citiesCmd)
}

var citiesCmd = &cobra.Command{
	Use:   "cities",
	Short: "Connects and prints the cities that can be queried.",
	Run: func(cmd *cobra.Command, args []string) {
		a := newApp()
		defer a.controller.Close()

		must(a.controller.Connect(cmd.Context()))
		state := a.controller.State()
		if state.Catalog.Fallback {
			slog.Warn("the city dropdown could not be read, showing the built-in list")
		}

		t := newTable()
		t.AppendHeader(table.Row{"ID", "City"})
		for _, city := range state.Catalog.Cities {
			t.AppendRow(table.Row{city.ID, city.DisplayName})
		}
		t.Render()
	},
}
