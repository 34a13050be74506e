package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/interval-research/internal/model"
	"github.com/sells-group/interval-research/internal/monitoring"
	"github.com/sells-group/interval-research/internal/store"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Inspect research history",
}

// -- logs list --

var logsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List research logs, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		format, _ := cmd.Flags().GetString("format")
		if err := checkFormat(format); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		mk, _ := cmd.Flags().GetString("make")
		userID, _ := cmd.Flags().GetInt64("user")
		failed, _ := cmd.Flags().GetBool("failed")
		since, _ := cmd.Flags().GetDuration("since")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		filter := store.LogFilter{
			Make:       mk,
			UserID:     userID,
			OnlyFailed: failed,
			Limit:      limit,
			Offset:     offset,
		}
		if since > 0 {
			filter.Since = time.Now().Add(-since)
		}

		logs, err := st.ListResearchLogs(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "logs list")
		}
		if format != "table" {
			return writeStructured(os.Stdout, format, logs)
		}
		if len(logs) == 0 {
			fmt.Fprintln(os.Stderr, "No research logs found.")
			return nil
		}
		formatLogsList(os.Stdout, logs)
		return nil
	},
}

// -- logs stats --

var logsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate research statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		since, _ := cmd.Flags().GetDuration("since")
		snap, err := monitoring.NewCollector(st, cfg.Monitoring.LowConfidence).Collect(ctx, int(since.Hours()))
		if err != nil {
			return eris.Wrap(err, "logs stats")
		}
		formatLogStats(os.Stdout, snap)
		return nil
	},
}

func init() {
	logsListCmd.Flags().String("make", "", "filter by vehicle make (case-insensitive)")
	logsListCmd.Flags().Int64("user", 0, "filter by user id")
	logsListCmd.Flags().Bool("failed", false, "only show failed research calls")
	logsListCmd.Flags().Duration("since", 0, "only show logs newer than this (e.g. 24h)")
	logsListCmd.Flags().Int("limit", 50, "max number of logs to display")
	logsListCmd.Flags().Int("offset", 0, "number of logs to skip")
	logsListCmd.Flags().String("format", "table", "output format (table, json, yaml)")

	logsStatsCmd.Flags().Duration("since", 24*time.Hour, "time window for stats (e.g. 24h, 72h, 168h)")

	logsCmd.AddCommand(logsListCmd)
	logsCmd.AddCommand(logsStatsCmd)
	rootCmd.AddCommand(logsCmd)
}

// formatLogsList writes a tabular list of research logs to out.
func formatLogsList(out io.Writer, logs []model.ResearchLog) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tVEHICLE\tFOUND\tCONF\tSOURCES\tCACHE\tCREATED\tERROR")
	for _, l := range logs {
		id := l.ID
		if len(id) > 8 {
			id = id[:8]
		}
		cache := ""
		if l.CacheHit {
			cache = "hit"
		}
		errMsg := l.Error
		if len(errMsg) > 60 {
			errMsg = errMsg[:57] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\t%s\t%s\n",
			id,
			strings.TrimSpace(fmt.Sprintf("%d %s %s", l.Year, l.Make, l.Model)),
			l.IntervalsFound,
			l.Confidence,
			strings.Join(l.SourcesChecked, ","),
			cache,
			l.CreatedAt.Format("2006-01-02 15:04"),
			errMsg,
		)
	}
	_ = w.Flush()
}

// formatLogStats writes a snapshot summary to out.
func formatLogStats(out io.Writer, s *monitoring.MetricsSnapshot) {
	_, _ = fmt.Fprintf(out, "Research stats (last %dh)\n", s.LookbackHours)
	_, _ = fmt.Fprintf(out, "  Total:          %d\n", s.ResearchTotal)
	_, _ = fmt.Fprintf(out, "  Failed:         %d (%.1f%%)\n", s.ResearchFailed, s.ResearchFailRate*100)
	_, _ = fmt.Fprintf(out, "  Cache hits:     %d\n", s.CacheHits)
	_, _ = fmt.Fprintf(out, "  Avg confidence: %.1f\n", s.AvgConfidence)
	_, _ = fmt.Fprintf(out, "  Avg intervals:  %.1f\n", s.AvgIntervalsFound)
	_, _ = fmt.Fprintf(out, "  Low confidence: %d\n", s.LowConfidence)

	if len(s.ByMake) == 0 {
		return
	}
	makes := make([]string, 0, len(s.ByMake))
	for mk := range s.ByMake {
		makes = append(makes, mk)
	}
	sort.Slice(makes, func(i, j int) bool {
		if s.ByMake[makes[i]] != s.ByMake[makes[j]] {
			return s.ByMake[makes[i]] > s.ByMake[makes[j]]
		}
		return makes[i] < makes[j]
	})
	_, _ = fmt.Fprintln(out, "  By make:")
	for _, mk := range makes {
		_, _ = fmt.Fprintf(out, "    %-14s %d\n", mk, s.ByMake[mk])
	}
}
