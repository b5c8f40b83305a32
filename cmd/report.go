// Package cmd contains all the CLI commands for the application,
// built using the Cobra library.
package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aokisan/gitlab-review-stats/internal/config"
	"github.com/aokisan/gitlab-review-stats/internal/domain"
	"github.com/aokisan/gitlab-review-stats/internal/gateway"
	"github.com/aokisan/gitlab-review-stats/internal/output"
	"github.com/aokisan/gitlab-review-stats/internal/usecase"
	"github.com/spf13/cobra"
)

const (
	defaultBaseURL = "https://gitlab.com"
	defaultDays    = 14
	defaultOut     = "gitlab_merged_mrs_last_14d.csv"

	// Windows beyond this many days hit the API hard; require --yes.
	maxUnconfirmedWindowDays = 30
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Exports merged MRs and their review durations as CSV",
	Long: `Fetches merged merge requests for the given projects within a time window,
computes wall-clock and business-hours review durations, and writes a detail
CSV, a per-project summary CSV and an overall summary line.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		// Get the verbose flag from the root command to set up the logger.
		verbose, _ := cmd.InheritedFlags().GetBool("verbose")
		logger := log.New(io.Discard, "", log.LstdFlags) // Default: discard all logs.
		if verbose {
			logger.SetOutput(os.Stderr) // If verbose, log to standard error.
		}

		cfg := &config.Config{}
		if cfgPath, _ := cmd.Flags().GetString("config"); cfgPath != "" {
			loaded, err := config.Load(cfgPath)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			cfg = loaded
		}

		baseURL := firstNonEmpty(
			flagString(cmd, "url"),
			cfg.URL,
			os.Getenv("GITLAB_URL"),
			defaultBaseURL,
		)
		token := firstNonEmpty(flagString(cmd, "token"), cfg.Token, os.Getenv("GITLAB_TOKEN"))
		if token == "" {
			fmt.Fprintln(os.Stderr, "Error: provide a GitLab token via --token, the config file or GITLAB_TOKEN.")
			os.Exit(1)
		}

		days := resolveDays(cmd, cfg)
		sinceStr := flagString(cmd, "since")
		untilStr := flagString(cmd, "until")
		window, err := domain.ResolveWindow(sinceStr, untilStr, days, time.Now())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if window.Days() > maxUnconfirmedWindowDays {
			fmt.Fprintf(os.Stderr,
				"WARNING: date range is %.1f days (> %d). This may query many MRs and put load on the API.\n",
				window.Days(), maxUnconfirmedWindowDays)
			if yes, _ := cmd.Flags().GetBool("yes"); !yes {
				fmt.Fprintln(os.Stderr, "Re-run with --yes to confirm.")
				os.Exit(1)
			}
		}

		fmt.Fprintf(os.Stderr, "[info] Date window: %s -> %s\n",
			window.Since.Format("2006-01-02"), window.Until.Format("2006-01-02"))

		gw := gateway.NewGitLabGateway(baseURL, token, logger)

		projectIDs, err := collectProjectIDs(ctx, cmd, cfg, gw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		excludes, err := collectExcludedAuthors(cmd, cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		builder := usecase.NewBuilder(gw, logger)
		report, err := builder.Build(ctx, projectIDs, window, excludes)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to build report: %v\n", err)
			os.Exit(1)
		}

		outPath := firstNonEmpty(flagString(cmd, "out"), cfg.Out, defaultOut)
		if err := writeCSV(outPath, func(w io.Writer) error {
			return output.WriteDetail(w, report.Rows)
		}); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", outPath, err)
			os.Exit(1)
		}
		fmt.Printf("[done] Wrote %d rows to %s\n", len(report.Rows), outPath)

		summaryPath := firstNonEmpty(flagString(cmd, "summary-out"), cfg.SummaryOut,
			fmt.Sprintf("review_duration_summary_%s_%s.csv",
				window.Since.Format("2006-01-02"), window.Until.Format("2006-01-02")))
		if err := writeCSV(summaryPath, func(w io.Writer) error {
			return output.WriteSummary(w, report.Projects)
		}); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", summaryPath, err)
			os.Exit(1)
		}
		fmt.Printf("[done] Wrote per-project summary to %s\n", summaryPath)

		fmt.Println("[stats overall]", report.Overall)
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().String("config", "", "Path to a YAML config file")
	reportCmd.Flags().String("url", "", "GitLab base URL (default: $GITLAB_URL or "+defaultBaseURL+")")
	reportCmd.Flags().String("token", "", "GitLab personal access token (default: $GITLAB_TOKEN)")
	reportCmd.Flags().IntSlice("projects", nil, "Numeric project IDs")
	reportCmd.Flags().StringSlice("project-paths", nil, "Project paths or full URLs")
	reportCmd.Flags().String("project-paths-file", "", "File with one project path or URL per line")
	reportCmd.Flags().Int("days", defaultDays, "Window in days back from now when --since is not given")
	reportCmd.Flags().String("since", "", "Explicit start date, e.g. 2025-11-10")
	reportCmd.Flags().String("until", "", "Explicit end date, e.g. 2025-11-16 (default: now)")
	reportCmd.Flags().String("out", "", "Detail CSV filename (default: "+defaultOut+")")
	reportCmd.Flags().String("summary-out", "", "Summary CSV filename (default: auto-generated from the window)")
	reportCmd.Flags().StringArray("exclude-author", nil, "Author name or username to exclude (repeatable)")
	reportCmd.Flags().String("exclude-authors-file", "", "File with one author name/username per line to exclude")
	reportCmd.Flags().Bool("yes", false, "Confirm date windows longer than 30 days")
}

// resolveDays picks the window length: an explicit --days wins, then the
// config file, then the DAYS_BACK environment variable.
func resolveDays(cmd *cobra.Command, cfg *config.Config) int {
	days, _ := cmd.Flags().GetInt("days")
	if cmd.Flags().Changed("days") {
		return days
	}
	if cfg.Days > 0 {
		return cfg.Days
	}
	if env := os.Getenv("DAYS_BACK"); env != "" {
		if n, err := strconv.Atoi(env); err == nil && n > 0 {
			return n
		}
	}
	return days
}

// collectProjectIDs merges the --projects IDs with IDs resolved from project
// paths (flags, config and list file). Paths that cannot be resolved are
// reported and skipped.
func collectProjectIDs(ctx context.Context, cmd *cobra.Command, cfg *config.Config, gw gateway.Fetcher) ([]int, error) {
	ids, _ := cmd.Flags().GetIntSlice("projects")
	ids = append(ids, cfg.Projects...)

	paths, _ := cmd.Flags().GetStringSlice("project-paths")
	paths = append(paths, cfg.ProjectPaths...)
	if file, _ := cmd.Flags().GetString("project-paths-file"); file != "" {
		entries, err := readListFile(file)
		if err != nil {
			return nil, err
		}
		paths = append(paths, entries...)
	}

	for _, p := range paths {
		path := extractProjectPath(p)
		project, err := gw.Project(ctx, path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[warn] Could not resolve %s -> id: %v\n", p, err)
			continue
		}
		ids = append(ids, project.ID)
	}

	if len(ids) == 0 {
		return nil, fmt.Errorf("provide at least one project via --projects, --project-paths or --project-paths-file")
	}
	return ids, nil
}

func collectExcludedAuthors(cmd *cobra.Command, cfg *config.Config) ([]string, error) {
	authors, _ := cmd.Flags().GetStringArray("exclude-author")
	authors = append(authors, cfg.ExcludeAuthors...)
	if file, _ := cmd.Flags().GetString("exclude-authors-file"); file != "" {
		entries, err := readListFile(file)
		if err != nil {
			return nil, err
		}
		authors = append(authors, entries...)
	}
	return authors, nil
}

// readListFile reads a simple line-based file: one item per line, blank
// lines and lines starting with '#' ignored.
func readListFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading list file: %w", err)
	}
	defer f.Close()

	var items []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		items = append(items, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading list file: %w", err)
	}
	return items, nil
}

// extractProjectPath turns a full project URL into its namespace path and
// leaves plain paths alone.
func extractProjectPath(s string) string {
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		if u, err := url.Parse(s); err == nil {
			path := strings.TrimPrefix(u.Path, "/")
			path, _, _ = strings.Cut(path, "/-/")
			return strings.TrimRight(path, "/")
		}
	}
	return strings.Trim(s, "/")
}

func writeCSV(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func flagString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
