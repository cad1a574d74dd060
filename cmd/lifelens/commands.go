package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kalambet/lifelens/internal/api"
	"github.com/kalambet/lifelens/internal/config"
	"github.com/kalambet/lifelens/internal/journal"
	"github.com/kalambet/lifelens/internal/pipeline"
	"github.com/kalambet/lifelens/internal/report"
	"github.com/kalambet/lifelens/internal/storage"
	"github.com/kalambet/lifelens/internal/worker"
)

// --- analyze ---

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a journal file locally and write the report",
	Long: `Analyze a journal file locally and write the report JSON.

The input is a JSON array or YAML list of entries with "entry_id", "date"
(YYYY-MM-DD) and any of "text", "voice_transcript", "image_caption".

Examples:
  lifelens analyze --input journal.json
  lifelens analyze --input journal.yaml --output report.json --clusters 4 --seed 7`,
	RunE: func(cmd *cobra.Command, args []string) error {
		input, _ := cmd.Flags().GetString("input")
		output, _ := cmd.Flags().GetString("output")
		noStore, _ := cmd.Flags().GetBool("no-store")

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		setupLogging(cfg.Log.Level)

		records, err := journal.LoadFile(input)
		if err != nil {
			return err
		}
		params := paramsFromFlags(cmd.Flags())
		base := analysisOptions(cfg)

		// Bad settings or records fail here, before any model is pulled.
		if _, err := pipeline.Validate(records, params.Apply(base)); err != nil {
			return stageFailure(err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var store *storage.Store
		if !noStore || cfg.Embedding.Cache {
			store, err = storage.Open(cfg.Storage.DataDir)
			if err != nil {
				return fmt.Errorf("opening storage: %w", err)
			}
			defer store.Close()
		}

		printStep("Preparing %s embeddings (%s)", cfg.Engine.Provider, embedModel(cfg))
		v, release, err := newVectorizer(ctx, cfg, store, os.Stderr)
		if err != nil {
			return err
		}
		defer release()

		var rec worker.Recorder
		if !noStore {
			rec = store
		}

		printStep("Analyzing %d entries", len(records))
		runID, res, err := worker.RunNow(ctx, rec, pipeline.NewRunner(v), "cli", records, params, base)
		if err != nil {
			return stageFailure(err)
		}

		if err := writeReport(output, res.Report); err != nil {
			return err
		}
		printSummary(res)
		if rec != nil {
			printStatus("Run", "%s", runID)
		}
		if output != "" {
			printSuccess("Report written to %s", output)
		}
		return nil
	},
}

func init() {
	analyzeCmd.Flags().String("input", "", "journal file (.json, .yaml or .yml)")
	analyzeCmd.Flags().String("output", "", "report file (default: stdout)")
	analyzeCmd.Flags().Bool("no-store", false, "do not record the run in the local database")
	addParamFlags(analyzeCmd.Flags())
	analyzeCmd.MarkFlagRequired("input")
}

// stageFailure names the failed pipeline stage in err, if any.
func stageFailure(err error) error {
	if stage := pipeline.FailedStage(err); stage != "" {
		return fmt.Errorf("analysis failed at %s stage: %w", stage, err)
	}
	return err
}

// writeReport writes the indented report to path, or stdout when path is empty.
func writeReport(path string, r *report.Report) error {
	if path == "" {
		return report.Encode(os.Stdout, r)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	if err := report.Encode(f, r); err != nil {
		f.Close()
		return fmt.Errorf("writing report: %w", err)
	}
	return f.Close()
}

func printSummary(res *pipeline.Result) {
	printStatus("Entries", "%d", len(res.Records))
	labels := make([]string, len(res.Themes))
	for i, th := range res.Themes {
		labels[i] = fmt.Sprintf("%s (%d)", th.Label, th.EntryCount)
	}
	printStatus("Themes", "%s", strings.Join(labels, ", "))
	printStatus("Weeks", "%d", len(res.Weeks))
	printStatus("Anomalies", "%d", len(res.Anomalies))
}

// --- submit ---

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Queue a journal file for analysis on the running server",
	RunE: func(cmd *cobra.Command, args []string) error {
		input, _ := cmd.Flags().GetString("input")

		records, err := journal.LoadFile(input)
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		runID, err := submitRecords(cmd.Context(), client, records, paramsFromFlags(cmd.Flags()))
		if err != nil {
			return err
		}

		printSuccess("Queued run %s", runID)
		return nil
	},
}

func init() {
	submitCmd.Flags().String("input", "", "journal file (.json, .yaml or .yml)")
	addParamFlags(submitCmd.Flags())
	submitCmd.MarkFlagRequired("input")
}

func submitRecords(ctx context.Context, client *apiClient, records []journal.Record, p pipeline.Params) (string, error) {
	req := api.SubmitRequest{Entries: make([]journal.Entry, len(records)), Params: p}
	for i, r := range records {
		req.Entries[i] = journal.EntryFromRecord(r)
	}

	resp, err := client.post(ctx, "/runs", req)
	if err != nil {
		return "", err
	}
	var out api.SubmitResponse
	if err := decodeJSON(resp, &out); err != nil {
		return "", err
	}
	return out.RunID, nil
}

// --- runs ---

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect analysis runs on the running server",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/runs?limit=%d", limit))
		if err != nil {
			return err
		}

		var runs []api.RunView
		if err := decodeJSON(resp, &runs); err != nil {
			return err
		}

		printRuns(cmd.OutOrStdout(), runs)
		return nil
	},
}

func printRuns(w io.Writer, runs []api.RunView) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs found.")
		return
	}
	for _, r := range runs {
		id := r.ID
		if len(id) > 8 {
			id = id[:8]
		}
		fmt.Fprintf(w, "%s  %s  %-9s  %-4s  %d entries\n",
			colorize(colorCyan, id),
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			statusLabel(r.Status),
			r.Source,
			r.RecordCount,
		)
	}
}

var runsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a run, or its report with --report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		withReport, _ := cmd.Flags().GetBool("report")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := "/runs/" + args[0]
		if withReport {
			path += "/report"
		}
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var body any
		if err := decodeJSON(resp, &body); err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(body)
	},
}

var runsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a run and its report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/runs/"+args[0])
		if err != nil {
			return err
		}
		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Deleted run %s", args[0])
		return nil
	},
}

func init() {
	runsListCmd.Flags().Int("limit", 20, "maximum number of runs to list")
	runsShowCmd.Flags().Bool("report", false, "print the report instead of the run")
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsDeleteCmd)
}

// --- cache ---

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the embedding cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cached embedding and job counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openConfiguredStore()
		if err != nil {
			return err
		}
		defer store.Close()

		n, err := store.CountEmbeddings()
		if err != nil {
			return err
		}
		printStatus("Cached embeddings", "%d", n)

		jobs, err := store.CountJobs()
		if err != nil {
			return err
		}
		for _, status := range []string{storage.JobPending, storage.JobRunning, storage.JobCompleted, storage.JobFailed} {
			printStatus("Jobs "+status, "%d", jobs[status])
		}
		return nil
	},
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete cached embeddings",
	RunE: func(cmd *cobra.Command, args []string) error {
		model, _ := cmd.Flags().GetString("model")

		store, err := openConfiguredStore()
		if err != nil {
			return err
		}
		defer store.Close()

		n, err := store.PurgeEmbeddings(model)
		if err != nil {
			return err
		}
		printSuccess("Removed %d cached embeddings", n)
		return nil
	},
}

func init() {
	cachePurgeCmd.Flags().String("model", "", "only remove embeddings of this model")
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cachePurgeCmd)
}

func openConfiguredStore() (*storage.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}
	return store, nil
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value.\n\nValid keys: " + strings.Join(config.ValidKeys(), ", "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
