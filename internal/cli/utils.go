// Package cli renders query, update and status results for the terminal.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/kensaku/internal/database"
	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
	// OutputMarkdown renders each chunk as a source link followed by its
	// content, ready to paste into a prompt.
	OutputMarkdown OutputFormat = "markdown"
)

// snippetLen caps the content shown per result in text output.
const snippetLen = 200

// ParseFormat validates a --format flag value.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON, OutputMarkdown:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, json or markdown)", s)
	}
}

// WriteQueryResults writes query results to w in the given format.
func WriteQueryResults(w io.Writer, response *models.QueryResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, response)
	case OutputMarkdown:
		for i, result := range response.Results {
			if i > 0 {
				fmt.Fprint(w, "\n\n")
			}
			fmt.Fprint(w, result.Chunk.Markdown())
		}
		fmt.Fprintln(w)
		return nil
	default:
		writeQueryResultsText(w, response)
		return nil
	}
}

func writeQueryResultsText(w io.Writer, response *models.QueryResponse) {
	fmt.Fprintf(w, "\nFound %d results in %dms (%s)\n", len(response.Results), response.QueryTime, response.Engine)
	if response.Exhaustive {
		fmt.Fprintln(w, "Index holds no more chunks than requested; showing all of them unranked.")
	}
	fmt.Fprintln(w)
	for _, result := range response.Results {
		writeOneResult(w, result)
	}
}

func writeOneResult(w io.Writer, result *models.SearchResult) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Rank: %d | Score: %.4f | Chunk: %d\n", result.Rank, result.Score, result.ChunkID)
	fmt.Fprintf(w, "URL: %s\n", result.Chunk.URL)
	fmt.Fprintf(w, "\n%s\n", utils.Truncate(utils.SingleLine(result.Chunk.Content), snippetLen))
	fmt.Fprintln(w)
}

// WriteUpdate writes an update summary.
func WriteUpdate(w io.Writer, response *models.UpdateResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	fmt.Fprintf(w, "Indexed %d files into %d chunks (+%d -%d) in %dms\n",
		response.Files, response.Chunks, response.Added, response.Removed, response.DurationMs)
	if response.Snapshot != "" {
		fmt.Fprintf(w, "Snapshot: %s\n", response.Snapshot)
	}
	return nil
}

// WriteStatus writes the index status.
func WriteStatus(w io.Writer, status *database.Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, status)
	}
	snapshot := status.Snapshot
	if snapshot == "" {
		snapshot = "(none, run update)"
	}
	fmt.Fprintf(w, "Corpus:   %s\n", status.Root)
	fmt.Fprintf(w, "Engine:   %s\n", status.Engine)
	fmt.Fprintf(w, "Backend:  %s\n", status.Backend)
	fmt.Fprintf(w, "Snapshot: %s\n", snapshot)
	fmt.Fprintf(w, "Files:    %d\n", status.Files)
	fmt.Fprintf(w, "Chunks:   %d\n", status.Chunks)
	fmt.Fprintf(w, "Disk:     %s\n", FormatBytes(status.DiskBytes))
	return nil
}

// FormatBytes renders n with a binary unit suffix.
func FormatBytes(n int64) string {
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

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
