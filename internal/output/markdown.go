package output

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/strrl/activator/internal/history"
)

const ReportFile = "activation-report.md"

type Generator struct {
	outputDir string
	location  *time.Location
}

func NewGenerator(outputDir string) *Generator {
	return &Generator{
		outputDir: outputDir,
		location:  time.Local,
	}
}

// Generate writes a markdown report of the given activations and returns its path.
func (g *Generator) Generate(stats history.Stats, records []history.Record) (string, error) {
	if err := os.MkdirAll(g.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	filename := filepath.Join(g.outputDir, ReportFile)
	if err := os.WriteFile(filename, []byte(g.Render(stats, records)), 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return filename, nil
}

func (g *Generator) Render(stats history.Stats, records []history.Record) string {
	var sb strings.Builder
	sb.WriteString("# Activation Report\n\n")
	sb.WriteString(fmt.Sprintf("**Total:** %d\n", stats.Total))
	sb.WriteString(fmt.Sprintf("**Succeeded:** %d\n", stats.Succeeded))
	sb.WriteString(fmt.Sprintf("**Failed:** %d\n", stats.Failed))
	sb.WriteString(fmt.Sprintf("**Cancelled:** %d\n", stats.Cancelled))
	if !stats.LastSuccess.IsZero() {
		sb.WriteString(fmt.Sprintf("**Last success:** %s\n", g.format(stats.LastSuccess)))
	}
	if stats.Total > 0 {
		sb.WriteString(fmt.Sprintf("**Success rate:** %.1f%%\n", 100*float64(stats.Succeeded)/float64(stats.Total)))
	}

	days := groupByDay(records, g.location)
	for _, day := range sortedDays(days) {
		sb.WriteString(fmt.Sprintf("\n## %s\n\n", day))
		sb.WriteString("| Time | Status | Attempts | Tokens | Next run |\n")
		sb.WriteString("|------|--------|----------|--------|----------|\n")
		for _, rec := range days[day] {
			sb.WriteString(fmt.Sprintf("| %s | %s | %d | %s | %s |\n",
				rec.FiredAt.In(g.location).Format("15:04:05"),
				capitalize(rec.Status),
				rec.Attempts,
				tokens(rec),
				emptyFallback(g.format(rec.NextRunAt), "-"),
			))
		}
	}

	var failures []history.Record
	for _, rec := range records {
		if rec.ErrorMessage != "" && rec.Status != "cancelled" {
			failures = append(failures, rec)
		}
	}
	if len(failures) > 0 {
		sb.WriteString("\n## Failures\n\n")
		for _, rec := range failures {
			sb.WriteString(fmt.Sprintf("- **%s** `%s` (%s): %s\n",
				g.format(rec.FiredAt),
				emptyFallback(rec.ErrorKind, "unknown"),
				rec.CycleID,
				truncate(rec.ErrorMessage, 200),
			))
		}
	}

	return sb.String()
}

func (g *Generator) format(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(g.location).Format("2006-01-02 15:04:05")
}

// groupByDay buckets records by local calendar day, oldest first within a day.
func groupByDay(records []history.Record, loc *time.Location) map[string][]history.Record {
	grouped := make(map[string][]history.Record)
	for _, rec := range records {
		day := rec.FiredAt.In(loc).Format("2006-01-02")
		grouped[day] = append(grouped[day], rec)
	}
	for _, recs := range grouped {
		sort.Slice(recs, func(i, j int) bool {
			return recs[i].FiredAt.Before(recs[j].FiredAt)
		})
	}
	return grouped
}

func sortedDays(grouped map[string][]history.Record) []string {
	days := make([]string, 0, len(grouped))
	for day := range grouped {
		days = append(days, day)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(days)))
	return days
}

func tokens(rec history.Record) string {
	if rec.TotalTokens == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *rec.TotalTokens)
}

func emptyFallback(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= maxLen {
		return s
	}
	for maxLen > 0 && !utf8.RuneStart(s[maxLen]) {
		maxLen--
	}
	return s[:maxLen] + "..."
}

func capitalize(s string) string {
	if len(s) == 0 {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
