package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/kurihiro0119/findings-exporter/internal/collector"
	"github.com/kurihiro0119/findings-exporter/internal/config"
	"github.com/kurihiro0119/findings-exporter/internal/domain"
	"github.com/kurihiro0119/findings-exporter/internal/export"
	"github.com/kurihiro0119/findings-exporter/internal/orchestrator"
	"github.com/kurihiro0119/findings-exporter/internal/planner"
	"github.com/kurihiro0119/findings-exporter/internal/storage"
	"github.com/kurihiro0119/findings-exporter/internal/transport"
)

var (
	fetchStart       string
	fetchEnd         string
	fetchOutputDir   string
	fetchOutputFile  string
	fetchFilter      string
	fetchInteractive bool
	fetchUpload      bool
	fetchDryRun      bool
	fetchPollTimeout time.Duration
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch findings for a time range and export them",
	Long: `Split the time range into windows of at most INTERVAL_MONTHS calendar months,
run one report job per window, merge the findings and write them to a file.

Dates are "YYYY-MM-DD HH:MM:SS" or "YYYY-MM-DD" in local time. The end defaults
to now. The output format follows the file extension: .xlsx, .csv, .json,
.json.gz, .json.zst or .json.lz4.`,
	Args: cobra.NoArgs,
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().StringVar(&fetchStart, "start", "", "start of the range (YYYY-MM-DD[ HH:MM:SS])")
	fetchCmd.Flags().StringVar(&fetchEnd, "end", "", "end of the range (default now)")
	fetchCmd.Flags().StringVar(&fetchOutputDir, "output-dir", "", "output directory (default OUTPUT_DIR)")
	fetchCmd.Flags().StringVar(&fetchOutputFile, "output-file", "", "output file name (default OUTPUT_FILE)")
	fetchCmd.Flags().StringVar(&fetchFilter, "filter", "", "keep only findings where field=value")
	fetchCmd.Flags().BoolVar(&fetchInteractive, "interactive", false, "prompt for a FILTER_FIELD value to filter on")
	fetchCmd.Flags().BoolVar(&fetchUpload, "upload", false, "upload the export to Azure Blob Storage")
	fetchCmd.Flags().BoolVar(&fetchDryRun, "dry-run", false, "print the planned intervals and exit")
	fetchCmd.Flags().DurationVar(&fetchPollTimeout, "poll-timeout", 0, "limit for a single report job (default POLL_TIMEOUT, 0 waits for ever)")
	_ = fetchCmd.MarkFlagRequired("start")
}

// newTransport builds the configured report service transport
func newTransport(cfg *config.Config) transport.Transport {
	if cfg.Transport == "httpie" {
		return transport.NewCommandTransport(cfg.HTTPieBin, cfg.HTTPieAuth, nil)
	}
	var opts []transport.HTTPOption
	if cfg.APIToken != "" {
		opts = append(opts, transport.WithBearerToken(cfg.APIToken))
	}
	return transport.NewHTTPTransport(opts...)
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if fetchUpload && !cfg.BlobUploadEnabled() {
		return fmt.Errorf("--upload needs AZURE_STORAGE_ACCOUNT, AZURE_STORAGE_KEY and AZURE_CONTAINER")
	}
	if fetchFilter != "" && fetchInteractive {
		return fmt.Errorf("--filter and --interactive are mutually exclusive")
	}

	var filter export.Filter
	if fetchFilter != "" {
		if filter, err = export.ParseFilter(fetchFilter); err != nil {
			return err
		}
	}

	tr, err := parseTimeRange(fetchStart, fetchEnd, time.Now(), time.Local)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	logger := slog.Default()

	pollTimeout := cfg.PollTimeout
	if cmd.Flags().Changed("poll-timeout") {
		pollTimeout = fetchPollTimeout
	}

	coll := collector.NewAnalyticsCollector(newTransport(cfg), cfg.ReportAPIURL,
		collector.WithPollInterval(cfg.PollInterval),
		collector.WithLogger(logger),
		collector.WithPollCallback(func(reportID string, attempt int, status domain.JobStatus) {
			logger.Debug("Report status", "report_id", reportID, "attempt", attempt, "status", status)
		}),
	)
	orch := orchestrator.New(coll,
		orchestrator.WithSpan(planner.MonthSpan(cfg.IntervalMonths)),
		orchestrator.WithJobTimeout(pollTimeout),
		orchestrator.WithLogger(logger),
		orchestrator.WithIntervalCallback(func(iv domain.Interval, total int) {
			fmt.Fprintf(out, "Interval %d/%d: %s\n", iv.Index+1, total, iv.TimeRange)
		}),
	)

	intervals, err := orch.Plan(tr)
	if err != nil {
		return err
	}
	if fetchDryRun {
		printIntervals(out, intervals)
		return nil
	}
	if len(intervals) == 0 {
		fmt.Fprintln(out, "Empty time range, nothing to fetch.")
		return nil
	}

	store, err := getStorage(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	if store != nil {
		defer store.Close()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run := &domain.Run{
		ID:            uuid.NewString(),
		Start:         tr.Start,
		End:           tr.End,
		IntervalCount: len(intervals),
		CreatedAt:     time.Now(),
	}
	fmt.Fprintf(out, "Fetching findings for %s in %d interval(s)\n", tr, len(intervals))

	result, err := orch.Execute(ctx, tr)
	if err != nil {
		run.Status = domain.RunStatusFailed
		run.Error = err.Error()
		archiveRun(store, run, nil, nil)
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("fetch interrupted: %w", err)
		}
		return fmt.Errorf("fetch failed: %w", err)
	}

	jobs := domain.StoredJobsFromSummaries(run.ID, result.Jobs)
	if result.Empty() {
		fmt.Fprintln(out, "No findings returned.")
		run.Status = domain.RunStatusEmpty
		archiveRun(store, run, jobs, nil)
		return nil
	}

	fmt.Fprintf(out, "Retrieved %d findings\n", len(result.Records))

	if fetchInteractive {
		if filter, err = export.PromptFilter(cmd.InOrStdin(), out, cfg.FilterField); err != nil {
			return err
		}
	}
	records := filter.Apply(result.Records)
	if !filter.IsZero() {
		fmt.Fprintf(out, "Filter %s kept %d of %d findings\n", filter, len(records), len(result.Records))
	}

	outputDir := cfg.OutputDir
	if fetchOutputDir != "" {
		outputDir = fetchOutputDir
	}
	outputFile := cfg.OutputFile
	if fetchOutputFile != "" {
		outputFile = fetchOutputFile
	}

	exported, err := export.Write(filepath.Join(outputDir, outputFile), records)
	if err != nil {
		run.Status = domain.RunStatusFailed
		run.Error = err.Error()
		archiveRun(store, run, jobs, nil)
		return fmt.Errorf("failed to export findings: %w", err)
	}
	fmt.Fprintf(out, "Exported %d findings to %s\n", exported.RecordCount, exported.Path)

	if fetchUpload {
		uploader, err := export.NewBlobUploader(cfg.AzureAccount, cfg.AzureKey, cfg.AzureContainer)
		if err != nil {
			return fmt.Errorf("failed to create blob uploader: %w", err)
		}
		name, err := uploader.Upload(ctx, exported.Path, run.ID)
		if err != nil {
			return fmt.Errorf("failed to upload export: %w", err)
		}
		fmt.Fprintf(out, "Uploaded to %s/%s\n", cfg.AzureContainer, name)
	}

	run.Status = domain.RunStatusCompleted
	run.FindingCount = len(result.Records)
	archiveRun(store, run, jobs, result.Records)

	printJobSummaries(out, result.Jobs)
	if store != nil {
		fmt.Fprintf(out, "Run ID: %s\n", run.ID)
	}
	return nil
}

// archiveRun stores a finished run. Archive failures are logged, not returned,
// so they never mask the outcome of the fetch itself.
func archiveRun(store storage.Storage, run *domain.Run, jobs []*domain.StoredJob, findings []domain.Record) {
	if store == nil {
		return
	}
	run.CompletedAt = time.Now()
	if err := store.SaveRun(context.Background(), run, jobs, findings); err != nil {
		slog.Warn("Failed to archive run", "run_id", run.ID, "error", err)
		return
	}
	slog.Debug("Archived run", "run_id", run.ID, "status", run.Status)
}

func printIntervals(w io.Writer, intervals []domain.Interval) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Interval", "Start", "End"})
	for _, iv := range intervals {
		table.Append([]string{
			fmt.Sprintf("%d/%d", iv.Index+1, len(intervals)),
			iv.Start.Format(domain.ReportTimeLayout),
			iv.End.Format(domain.ReportTimeLayout),
		})
	}
	table.Render()
}

func printJobSummaries(w io.Writer, jobs []domain.JobSummary) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Interval", "Start", "End", "Report ID", "Status", "Polls", "Findings"})
	for _, j := range jobs {
		table.Append([]string{
			fmt.Sprintf("%d", j.Interval.Index+1),
			j.Interval.Start.Format(domain.ReportTimeLayout),
			j.Interval.End.Format(domain.ReportTimeLayout),
			j.ReportID,
			string(j.Status),
			fmt.Sprintf("%d", j.Polls),
			fmt.Sprintf("%d", j.RecordCount),
		})
	}
	table.Render()
}
