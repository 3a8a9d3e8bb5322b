package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/neexbeast/starwatch/internal/forecast"
	"github.com/neexbeast/starwatch/internal/location"
)

var locationsCmd = &cobra.Command{
	Use:   "locations",
	Short: "List the catalog grouped by region",
	Args:  cobra.NoArgs,
	RunE:  runLocations,
}

var coverageCmd = &cobra.Command{
	Use:   "coverage",
	Short: "Check which catalog ids a CWA dataset currently contains",
	Args:  cobra.NoArgs,
	RunE:  runCoverage,
}

var (
	regionFilter string
	coverageSet  string
)

func init() {
	locationsCmd.Flags().StringVar(&regionFilter, "region", "", "only list one region (北部, 中部, 南部)")
	coverageCmd.Flags().StringVar(&coverageSet, "dataset", "short", "dataset to check: short or weekly")

	rootCmd.AddCommand(locationsCmd)
	rootCmd.AddCommand(coverageCmd)
}

func runLocations(cmd *cobra.Command, _ []string) error {
	catalog, err := location.Default()
	if err != nil {
		return err
	}

	regions := catalog.Regions()
	if regionFilter != "" {
		r, ok := catalog.Region(regionFilter)
		if !ok {
			return fmt.Errorf("unknown region %q", regionFilter)
		}
		regions = []location.Region{r}
	}

	out := cmd.OutOrStdout()
	for _, r := range regions {
		fmt.Fprintf(out, "== %s ==\n", r.Name)
		for _, l := range r.Locations {
			fmt.Fprintf(out, "%s  %s  (%.4f, %.4f)\n", l.ID, l.Name, l.Latitude, l.Longitude)
		}
	}
	return nil
}

func runCoverage(cmd *cobra.Command, _ []string) error {
	var dataset string
	switch coverageSet {
	case "short":
		dataset = forecast.DatasetShortRange
	case "weekly":
		dataset = forecast.DatasetWeekly
	default:
		return fmt.Errorf("unknown dataset %q", coverageSet)
	}

	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	present, missing, err := a.Service.Coverage(cmd.Context(), dataset)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %d/%d catalog locations present\n", dataset, len(present), len(present)+len(missing))
	for _, l := range present {
		fmt.Fprintf(out, "✅ %s %s\n", l.ID, l.Name)
	}
	for _, l := range missing {
		fmt.Fprintf(out, "❌ %s %s\n", l.ID, l.Name)
	}
	return nil
}
