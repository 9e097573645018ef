package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jdziat/recipe-ingest/pkg/core"
	"github.com/jdziat/recipe-ingest/pkg/review"
)

var (
	listStatus string
	listSearch string
	listLimit  int
	listOffset int
	getJSON    bool

	reviewDecision string
	reviewNotes    string
	reviewer       string
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect ingestion jobs",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs, newest first",
	Long: `List ingestion jobs with optional filtering.

Examples:
  recipe-ingest jobs list
  recipe-ingest jobs list --status NEEDS_REVIEW
  recipe-ingest jobs list --search carbonara -n 10`,
	RunE: runJobsList,
}

var jobsGetCmd = &cobra.Command{
	Use:   "get <job-id>",
	Short: "Show one job with its meta and review history",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsGet,
}

var submitCmd = &cobra.Command{
	Use:   "submit <file>...",
	Short: "Copy documents into the inbox and enqueue them",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSubmit,
}

var reviewCmd = &cobra.Command{
	Use:   "review <job-id>",
	Short: "Record a review decision for a NEEDS_REVIEW job",
	Long: `Record a reviewer decision.

  APPROVED        store the job's candidate as a recipe
  REJECTED        close the job without a recipe
  NEEDS_REVISION  run the pipeline again with --notes passed to the AI model

Examples:
  recipe-ingest review 6f1c... --decision APPROVED --reviewer ana
  recipe-ingest review 6f1c... --decision NEEDS_REVISION --notes "serves 4, not 2"`,
	Args: cobra.ExactArgs(1),
	RunE: runReview,
}

var reprocessCmd = &cobra.Command{
	Use:   "reprocess <job-id>",
	Short: "Send a FAILED, DLQ or REJECTED job back to PENDING",
	Args:  cobra.ExactArgs(1),
	RunE:  runReprocess,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show job counts and rates",
	RunE:  runStats,
}

func init() {
	jobsListCmd.Flags().StringVarP(&listStatus, "status", "s", "", "filter by status")
	jobsListCmd.Flags().StringVar(&listSearch, "search", "", "match id, filename or path")
	jobsListCmd.Flags().IntVarP(&listLimit, "limit", "n", 50, "max results (up to 100)")
	jobsListCmd.Flags().IntVar(&listOffset, "offset", 0, "skip this many results")
	jobsGetCmd.Flags().BoolVar(&getJSON, "json", false, "print the job as JSON")

	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsGetCmd)

	reviewCmd.Flags().StringVarP(&reviewDecision, "decision", "d", "", "APPROVED, REJECTED or NEEDS_REVISION")
	reviewCmd.Flags().StringVar(&reviewNotes, "notes", "", "reviewer notes")
	reviewCmd.Flags().StringVar(&reviewer, "reviewer", os.Getenv("USER"), "reviewer name")
	_ = reviewCmd.MarkFlagRequired("decision")
}

func runJobsList(cmd *cobra.Command, args []string) error {
	jobs, total, err := service.Orchestrator.ListJobs(cmd.Context(), core.JobFilter{
		Status: core.JobStatus(strings.ToUpper(listStatus)),
		Search: listSearch,
		Limit:  listLimit,
		Offset: listOffset,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(jobs) == 0 {
		fmt.Fprintln(out, "No jobs found.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tRETRIES\tCONFIDENCE\tFILE\tSIZE\tCREATED")
	for _, j := range jobs {
		fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%s\t%s\t%s\t%s\n",
			j.ID, j.Status, j.Retries, j.MaxRetries, confidence(j.ConfidenceScore),
			j.OriginalFilename, humanize.Bytes(uint64(j.FileSizeBytes)), humanize.Time(j.CreatedAt))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nShowing %d of %s jobs.\n", len(jobs), humanize.Comma(total))
	return nil
}

func runJobsGet(cmd *cobra.Command, args []string) error {
	detail, err := service.Orchestrator.GetJob(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if getJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"job":     detail.Job,
			"meta":    detail.Job.Meta.Data(),
			"reviews": detail.Reviews,
		})
	}

	j := detail.Job
	printJob(out, j)
	meta := j.Meta.Data()
	if meta.DetectedLanguage != "" {
		fmt.Fprintf(out, "Language:    %s (%.2f)%s\n", meta.DetectedLanguage, meta.LanguageConfidence, translatedMark(meta))
	}
	if meta.Model != "" {
		fmt.Fprintf(out, "Model:       %s/%s\n", meta.Provider, meta.Model)
	}
	if meta.TokenUsage != nil {
		fmt.Fprintf(out, "Tokens:      %s\n", humanize.Comma(meta.TokenUsage.TotalTokens))
	}
	if c := meta.Candidate; c != nil {
		fmt.Fprintf(out, "Candidate:   %s (%s, %d min, serves %d, %d ingredients)\n",
			c.Title, c.Cuisine, c.TotalTimeMinutes(), c.Servings, len(c.Ingredients))
	}
	for _, issue := range meta.QualityIssues {
		fmt.Fprintf(out, "Issue:       %s\n", issue)
	}
	if len(detail.Reviews) > 0 {
		fmt.Fprintln(out, "\nReviews:")
		for _, r := range detail.Reviews {
			fmt.Fprintf(out, "  %s  %-15s %s  %s\n", humanize.Time(r.CreatedAt), r.Decision, r.Reviewer, r.Notes)
		}
	}
	return nil
}

func runSubmit(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	for _, path := range args {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		job, err := service.Orchestrator.Submit(cmd.Context(), filepath.Base(path), f)
		f.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		fmt.Fprintf(out, "%s  %s\n", job.ID, job.OriginalFilename)
	}
	return nil
}

func runReview(cmd *cobra.Command, args []string) error {
	res, err := service.Reviews.Review(cmd.Context(), review.Request{
		JobID:    args[0],
		Decision: core.Decision(reviewDecision),
		Notes:    reviewNotes,
		Reviewer: reviewer,
	})
	if err != nil {
		return err
	}
	printJob(cmd.OutOrStdout(), res.Job)
	return nil
}

func runReprocess(cmd *cobra.Command, args []string) error {
	job, err := service.Orchestrator.Reprocess(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s is %s again.\n", job.ID, job.Status)
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	stats, err := service.Orchestrator.Stats(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, status := range core.AllStatuses {
		fmt.Fprintf(tw, "%s\t%s\n", status, humanize.Comma(stats.Counts[status]))
	}
	fmt.Fprintf(tw, "TOTAL\t%s\n", humanize.Comma(stats.Total))
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nSuccess rate:       %.1f%%\n", stats.SuccessRate*100)
	fmt.Fprintf(out, "Review rate:        %.1f%%\n", stats.ReviewRate*100)
	fmt.Fprintf(out, "Average confidence: %s\n", confidence(stats.AverageConfidence))
	fmt.Fprintf(out, "Known recipes:      %s\n", humanize.Comma(stats.Fingerprints))
	return nil
}

func printJob(out io.Writer, j *core.IngestionJob) {
	fmt.Fprintf(out, "Job:         %s\n", j.ID)
	fmt.Fprintf(out, "Status:      %s\n", j.Status)
	fmt.Fprintf(out, "File:        %s (%s)\n", j.OriginalFilename, humanize.Bytes(uint64(j.FileSizeBytes)))
	fmt.Fprintf(out, "Path:        %s\n", j.SourcePath)
	fmt.Fprintf(out, "Retries:     %d/%d\n", j.Retries, j.MaxRetries)
	fmt.Fprintf(out, "Confidence:  %s\n", confidence(j.ConfidenceScore))
	if j.RecipeID != nil {
		fmt.Fprintf(out, "Recipe:      %s\n", *j.RecipeID)
	}
	if j.DuplicateOfRecipeID != nil {
		fmt.Fprintf(out, "Duplicate of: %s\n", *j.DuplicateOfRecipeID)
	}
	if j.ErrorMessage != "" {
		fmt.Fprintf(out, "Error:       %s\n", j.ErrorMessage)
	}
	if j.ReviewerNotes != "" {
		fmt.Fprintf(out, "Notes:       %s\n", j.ReviewerNotes)
	}
	fmt.Fprintf(out, "Created:     %s\n", humanize.Time(j.CreatedAt))
}

func confidence(c *float64) string {
	if c == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *c)
}

func translatedMark(m core.Meta) string {
	switch {
	case m.Translated:
		return ", translated"
	case m.TranslationDegraded:
		return ", translation failed"
	}
	return ""
}
