package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/kurihiro0119/findings-exporter/internal/aggregator"
	"github.com/kurihiro0119/findings-exporter/internal/config"
	"github.com/kurihiro0119/findings-exporter/internal/domain"
	"github.com/kurihiro0119/findings-exporter/internal/export"
	"github.com/kurihiro0119/findings-exporter/pkg/client"
)

var (
	runsLimit      int
	showGroupBy    string
	exportOutput   string
	exportFilterBy string
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List archived runs",
	Long:  `List archived fetch runs, most recent first.`,
	Args:  cobra.NoArgs,
	RunE:  runListRuns,
}

var showCmd = &cobra.Command{
	Use:   "show [run-id]",
	Short: "Show an archived run",
	Long:  `Display a run, its report jobs and its findings grouped by a field.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runShowRun,
}

var exportCmd = &cobra.Command{
	Use:   "export [run-id]",
	Short: "Re-export the findings of an archived run",
	Long:  `Write the archived findings of a run to a file. The format follows the file extension.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runExportRun,
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum number of runs to list")
	showCmd.Flags().StringVar(&showGroupBy, "group-by", "", "field to group findings by (default FILTER_FIELD)")
	exportCmd.Flags().StringVar(&exportOutput, "output-file", "", "output path (default OUTPUT_DIR/<run-id>.xlsx)")
	exportCmd.Flags().StringVar(&exportFilterBy, "filter", "", "keep only findings where field=value")
}

func runListRuns(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	out := cmd.OutOrStdout()

	if remote {
		runs, err := client.NewClient(cfg.APIEndpoint).ListRuns(runsLimit)
		if err != nil {
			return fmt.Errorf("failed to list runs: %w", err)
		}
		if outputJSON {
			return writeJSON(out, runs)
		}
		table := newRunsTable(out)
		for _, r := range runs {
			table.Append([]string{r.ID, r.Start, r.End, r.Status, fmt.Sprintf("%d", r.IntervalCount), fmt.Sprintf("%d", r.FindingCount)})
		}
		table.Render()
		return nil
	}

	store, err := requireStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := aggregator.NewAggregator(store).ListRuns(context.Background(), runsLimit)
	if err != nil {
		return err
	}

	if outputJSON {
		return writeJSON(out, runs)
	}

	table := newRunsTable(out)
	for _, r := range runs {
		table.Append([]string{
			r.ID,
			r.Start.Format(domain.ReportTimeLayout),
			r.End.Format(domain.ReportTimeLayout),
			string(r.Status),
			fmt.Sprintf("%d", r.IntervalCount),
			fmt.Sprintf("%d", r.FindingCount),
		})
	}
	table.Render()
	return nil
}

func newRunsTable(w io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Run ID", "Start", "End", "Status", "Intervals", "Findings"})
	return table
}

func runShowRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	groupBy := showGroupBy
	if groupBy == "" {
		groupBy = cfg.FilterField
	}
	out := cmd.OutOrStdout()

	if remote {
		return showRemoteRun(out, client.NewClient(cfg.APIEndpoint), runID, groupBy)
	}

	store, err := requireStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	agg := aggregator.NewAggregator(store)
	ctx := context.Background()

	run, jobs, err := agg.GetRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to get run: %w", err)
	}
	summary, err := agg.SummarizeRun(ctx, runID, groupBy)
	if err != nil {
		return fmt.Errorf("failed to summarize run: %w", err)
	}

	if outputJSON {
		return writeJSON(out, map[string]interface{}{
			"run":     run,
			"jobs":    jobs,
			"summary": summary,
		})
	}

	fmt.Fprintf(out, "\nRun: %s\n", run.ID)
	fmt.Fprintf(out, "Time Range: %s -> %s\n", run.Start.Format(domain.ReportTimeLayout), run.End.Format(domain.ReportTimeLayout))
	fmt.Fprintf(out, "Status: %s\n", run.Status)
	if run.Error != "" {
		fmt.Fprintf(out, "Error: %s\n", run.Error)
	}
	fmt.Fprintln(out)

	if len(jobs) > 0 {
		table := tablewriter.NewWriter(out)
		table.SetHeader([]string{"Interval", "Start", "End", "Report ID", "Status", "Polls", "Findings"})
		for _, j := range jobs {
			table.Append([]string{
				fmt.Sprintf("%d", j.IntervalIndex+1),
				j.Start.Format(domain.ReportTimeLayout),
				j.End.Format(domain.ReportTimeLayout),
				j.ReportID,
				j.Status,
				fmt.Sprintf("%d", j.Polls),
				fmt.Sprintf("%d", j.FindingCount),
			})
		}
		table.Render()
		fmt.Fprintln(out)
	}

	printSummary(out, summary)
	return nil
}

func showRemoteRun(out io.Writer, c *client.Client, runID, groupBy string) error {
	run, err := c.GetRun(runID)
	if err != nil {
		return fmt.Errorf("failed to get run: %w", err)
	}
	summary, err := c.GetSummary(runID, groupBy)
	if err != nil {
		return fmt.Errorf("failed to summarize run: %w", err)
	}

	if outputJSON {
		return writeJSON(out, map[string]interface{}{
			"run":     run,
			"summary": summary,
		})
	}

	fmt.Fprintf(out, "\nRun: %s\n", run.ID)
	fmt.Fprintf(out, "Time Range: %s -> %s\n", run.Start, run.End)
	fmt.Fprintf(out, "Status: %s\n\n", run.Status)

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Interval", "Start", "End", "Report ID", "Status", "Polls", "Findings"})
	for _, j := range run.Jobs {
		table.Append([]string{
			fmt.Sprintf("%d", j.Interval),
			j.Start,
			j.End,
			j.ReportID,
			j.Status,
			fmt.Sprintf("%d", j.Polls),
			fmt.Sprintf("%d", j.FindingCount),
		})
	}
	table.Render()
	fmt.Fprintln(out)

	printSummary(out, summary)
	return nil
}

func printSummary(out io.Writer, summary *domain.RunSummary) {
	fmt.Fprintf(out, "Findings by %s (%d total)\n", summary.Field, summary.Total)
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{summary.Field, "Count"})
	for _, g := range summary.Groups {
		table.Append([]string{g.Value, fmt.Sprintf("%d", g.Count)})
	}
	table.Render()
}

func runExportRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	var filter export.Filter
	if exportFilterBy != "" {
		if filter, err = export.ParseFilter(exportFilterBy); err != nil {
			return err
		}
	}

	store, err := requireStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	findings, err := aggregator.NewAggregator(store).GetFindings(context.Background(), runID, filter)
	if err != nil {
		return fmt.Errorf("failed to get findings: %w", err)
	}

	path := exportOutput
	if path == "" {
		path = filepath.Join(cfg.OutputDir, runID+".xlsx")
	}

	result, err := export.Write(path, findings)
	if err != nil {
		return fmt.Errorf("failed to export findings: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d findings to %s\n", result.RecordCount, result.Path)
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
