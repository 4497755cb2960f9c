// Command inspect prints row counts per table and a sample of the latest
// observations of the configured store.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"citypulse/internal/config"
	"citypulse/internal/domain"
	"citypulse/internal/metrics"
	"citypulse/internal/repository"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	city := flag.String("city", "", "only sample observations of this city")
	sample := flag.Int("sample", 10, "number of latest observations to print")
	flag.Parse()

	if *sample < 0 {
		fmt.Fprintln(os.Stderr, "-sample must be >= 0, got", *sample)
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error while loading the config..", err)
		os.Exit(1)
	}

	store, err := repository.New(cfg.Storage)
	if err == nil {
		err = store.Init()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to open store:", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := report(ctx, os.Stdout, store, *city, *sample); err != nil {
		fmt.Fprintln(os.Stderr, "Inspect failed:", err)
		os.Exit(1)
	}
}

func report(ctx context.Context, out io.Writer, store domain.Store, city string, sample int) error {
	if sample < 0 {
		return fmt.Errorf("sample must be >= 0, got %d", sample)
	}
	counts := []struct {
		table string
		count func(context.Context) (int64, error)
	}{
		{"users", store.CountUsers},
		{"dashboards", store.CountDashboards},
		{"widgets", store.CountWidgets},
		{"city_metrics", store.CountObservations},
	}

	fmt.Fprintln(out, "Database Table Status:")
	for _, c := range counts {
		n, err := c.count(ctx)
		if err != nil {
			return fmt.Errorf("counting %s: %w", c.table, err)
		}
		fmt.Fprintf(out, "  %-13s %d records\n", c.table, n)
	}

	latest, err := metrics.NewEngine(store).LatestPerType(ctx, city)
	if err != nil {
		return err
	}
	if len(latest) > sample {
		latest = latest[:sample]
	}

	fmt.Fprintln(out, "\nLatest observations:")
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  CITY\tMETRIC\tVALUE\tUNIT\tTIMESTAMP")
	for _, o := range latest {
		fmt.Fprintf(tw, "  %s\t%s\t%g\t%s\t%s\n", o.City, o.MetricType, o.Value, o.Unit, o.Timestamp.Format(time.RFC3339))
	}
	return tw.Flush()
}
