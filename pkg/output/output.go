// Package output renders page cache measurements for people and machines.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/srodi/pgcache/pkg/report"
	"github.com/srodi/pgcache/pkg/types"
)

// Format selects a renderer.
type Format string

const (
	FormatTable    Format = "table"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
)

// ParseFormat accepts table, markdown (md), json and yaml (yml).
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "table":
		return FormatTable, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown output format %q (want table, markdown, json or yaml)", s)
}

var header = []string{"Path", "Size", "Pages", "Cached", "Uncached", "Percent", "Timestamp", "Mtime"}

// document is the structured form used when a summary is requested.
type document struct {
	Files   []types.PageCacheStat `json:"files" yaml:"files"`
	Summary *report.Summary       `json:"summary,omitempty" yaml:"summary,omitempty"`
}

// Render writes stats, and summary when non-nil, to w in format.
func Render(w io.Writer, format Format, stats []types.PageCacheStat, summary *report.Summary) error {
	if stats == nil {
		stats = []types.PageCacheStat{}
	}
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if summary == nil {
			return enc.Encode(stats)
		}
		return enc.Encode(document{Files: stats, Summary: summary})
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		if summary == nil {
			return enc.Encode(stats)
		}
		return enc.Encode(document{Files: stats, Summary: summary})
	case FormatMarkdown:
		renderTable(w, stats, summary, true)
		return nil
	case FormatTable, "":
		renderTable(w, stats, summary, false)
		return nil
	}
	return fmt.Errorf("unknown output format %q", format)
}

func renderTable(w io.Writer, stats []types.PageCacheStat, summary *report.Summary, markdown bool) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	if markdown {
		table.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
		table.SetCenterSeparator("|")
	}
	for _, stat := range stats {
		table.Append(row(stat))
	}
	if summary != nil && !markdown {
		table.SetFooter([]string{
			fmt.Sprintf("%d files", summary.Files),
			strconv.FormatInt(summary.Size, 10),
			strconv.Itoa(summary.Pages),
			strconv.Itoa(summary.Cached),
			strconv.Itoa(summary.Uncached),
			formatPercent(summary.Percent),
			"", "",
		})
	}
	table.Render()

	if summary != nil {
		fmt.Fprintf(w, "\nCached: %s of %s", formatBytes(summary.CachedBytes), formatBytes(summary.Size))
		if summary.HostCachedBytes > 0 {
			fmt.Fprintf(w, " (%.2f%% of %s host page cache)",
				summary.HostShare, formatBytes(int64(summary.HostCachedBytes)))
		}
		fmt.Fprintln(w)
	}
}

func row(stat types.PageCacheStat) []string {
	return []string{
		stat.Path,
		strconv.FormatInt(stat.Size, 10),
		strconv.Itoa(stat.Pages),
		strconv.Itoa(stat.Cached),
		strconv.Itoa(stat.Uncached),
		formatPercent(stat.Percent),
		formatTime(stat.Timestamp),
		formatTime(stat.Mtime),
	}
}

func formatPercent(p float64) string {
	return strconv.FormatFloat(p, 'f', 3, 64)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
