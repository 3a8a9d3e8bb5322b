package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/neexbeast/starwatch/internal/location"
	"github.com/neexbeast/starwatch/internal/storage"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Fetch the weekly dataset and rewrite the forecast tables",
	Args:  cobra.NoArgs,
	RunE:  runRefresh,
}

var weeklyCmd = &cobra.Command{
	Use:   "weekly NAME",
	Short: "Print the weekly digest for a location name fragment",
	Args:  cobra.ExactArgs(1),
	RunE:  runWeekly,
}

var tonightCmd = &cobra.Command{
	Use:   "tonight ID|NAME",
	Short: "Print tonight's advisory for a location id or name fragment",
	Args:  cobra.ExactArgs(1),
	RunE:  runTonight,
}

var historyCmd = &cobra.Command{
	Use:   "history ID",
	Short: "Print the stored history rows of one location",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(weeklyCmd)
	rootCmd.AddCommand(tonightCmd)
	rootCmd.AddCommand(historyCmd)
}

func runRefresh(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Service.RefreshWeeklyData(cmd.Context()); err != nil {
		return err
	}
	dates, err := a.Store.Dates(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✅ weekly tables refreshed: %s\n", strings.Join(dates, ", "))
	return nil
}

func runWeekly(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Fprintln(cmd.OutOrStdout(), a.Service.WeeklyAdvisory(cmd.Context(), args[0]))
	return nil
}

func runTonight(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	loc, err := resolve(a.Catalog, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), a.Service.ImpromptuAdvisory(cmd.Context(), loc.ID, loc.Name))
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	loc, err := resolve(a.Catalog, args[0])
	if err != nil {
		return err
	}
	rows, err := a.Store.History(cmd.Context(), loc.ID)
	if err != nil {
		return err
	}
	printRows(cmd, rows)
	return nil
}

// resolve accepts a catalog id or, failing that, a name fragment.
func resolve(c *location.Catalog, arg string) (location.Location, error) {
	arg = strings.TrimSpace(arg)
	if loc, ok := c.Lookup(strings.ToUpper(arg)); ok {
		return loc, nil
	}
	id, err := c.ResolveID(arg)
	if err != nil {
		return location.Location{}, fmt.Errorf("%q: %w", arg, err)
	}
	loc, _ := c.Lookup(id)
	return loc, nil
}

func printRows(cmd *cobra.Command, rows []storage.Row) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-6s %-6s %-6s %-10s %5s %5s %5s %4s\n", "date", "period", "pid", "sky", "min", "max", "pop", "wind")
	for _, r := range rows {
		fmt.Fprintf(out, "%-6s %-6s %-6s %-10s %5s %5s %5s %4s\n",
			r.Date, r.Period, r.PID, r.Sky, r.TempMin, r.TempMax, r.PrecipProb, r.WindScale)
	}
	if len(rows) == 0 {
		fmt.Fprintln(out, "no history rows")
	}
}
