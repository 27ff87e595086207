package commands

import (
	"fmt"
	"os"

	"lnprice/internal/application/workflow"
	"lnprice/internal/components/chrono"
	"lnprice/internal/components/telemetry"
	"lnprice/internal/report"
	"lnprice/internal/scrapers/jgxx"
	"lnprice/lib/osutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

type app struct {
	controller *workflow.Controller
	time       chrono.TimeAPI
	tel        telemetry.API
}

func newApp() app {
	opts, err := cfg.options()
	if err != nil {
		osutil.Fatal("failed to configure client", err)
	}

	time := chrono.NewStandardTime()
	tel := telemetry.NewSlogAPI()
	extractor := jgxx.NewPageExtractor(opts, time, tel)

	controller := workflow.NewController(workflow.Steps{
		Sessions:   jgxx.NewSessionManager(opts, time, tel),
		Catalog:    jgxx.NewParameterCatalog(time, tel),
		Planner:    jgxx.NewQueryPlanner(opts, time, tel),
		Aggregator: jgxx.NewAggregator(extractor, tel),
		Writer:     report.NewWriter(tel),
	}, cfg.Region, tel)

	return app{
		controller: controller,
		time:       time,
		tel:        tel,
	}
}

// must waits for an operation and exits on failure.
func must(ch <-chan workflow.Outcome) workflow.Outcome {
	outcome := <-ch
	if outcome.Err != nil {
		fmt.Fprintln(os.Stderr, outcome.Message)
		osutil.Fatal("operation failed", outcome.Err)
	}
	fmt.Fprintln(os.Stderr, outcome.Message)
	return outcome
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}

type selectionFlags struct {
	city  string
	year  int
	month int
}

func (f *selectionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.city, "city", "", "City id or name, ex. 15 or 沈阳市.")
	cmd.Flags().IntVar(&f.year, "year", 0, "Year of the price list, defaults to the current year.")
	cmd.Flags().IntVar(&f.month, "month", 0, "Month of the price list (1-12), defaults to the current month.")
	cmd.MarkFlagRequired("city")
}

// connectAndSelect connects and applies the selection given on the command line.
func (a app) connectAndSelect(cmd *cobra.Command, flags selectionFlags) workflow.State {
	must(a.controller.Connect(cmd.Context()))

	state := a.controller.State()
	city, err := state.Catalog.Resolve(flags.city)
	if err != nil {
		osutil.Fatal("unknown city", err)
	}

	selection := state.Selection
	selection.CityID = city.ID
	if flags.year != 0 {
		selection.Year = flags.year
	}
	if flags.month != 0 {
		selection.Month = flags.month
	}
	a.controller.Select(selection)
	return a.controller.State()
}
