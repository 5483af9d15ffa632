package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/hyperjump/kensaku/internal/database"
	"github.com/hyperjump/kensaku/internal/models"
)

func sampleResponse() *models.QueryResponse {
	return &models.QueryResponse{
		Query:     "test query",
		Engine:    "hybrid(vector+keyword,rrf)",
		QueryTime: 42,
		Results: []*models.SearchResult{
			{ChunkID: 3, Rank: 1, Score: 0.9, Chunk: models.NewChunk("https://docs.example.com/a/", "First\nchunk   body", true)},
			{ChunkID: 7, Rank: 2, Score: 0.5, Chunk: models.NewChunk("https://docs.example.com/b/", "Second chunk", true)},
		},
	}
}

func TestWriteQueryResults_JSON(t *testing.T) {
	response := sampleResponse()
	var buf bytes.Buffer
	if err := WriteQueryResults(&buf, response, OutputJSON); err != nil {
		t.Fatalf("WriteQueryResults(json): %v", err)
	}
	var decoded models.QueryResponse
	if err := json.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Query != response.Query || decoded.QueryTime != response.QueryTime {
		t.Errorf("decoded query=%q query_time=%d", decoded.Query, decoded.QueryTime)
	}
	if len(decoded.Results) != 2 || decoded.Results[0].ChunkID != 3 {
		t.Errorf("decoded results: %+v", decoded.Results)
	}
}

func TestWriteQueryResults_Text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteQueryResults(&buf, sampleResponse(), OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"Found 2 results in 42ms",
		"Rank: 1 | Score: 0.9000 | Chunk: 3",
		"URL: https://docs.example.com/b/",
		"First chunk body",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "unranked") {
		t.Error("ranked response reported as exhaustive")
	}
}

func TestWriteQueryResults_Markdown(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteQueryResults(&buf, sampleResponse(), OutputMarkdown); err != nil {
		t.Fatal(err)
	}
	want := "[https://docs.example.com/a/](https://docs.example.com/a/)\n\nFirst\nchunk   body\n\n" +
		"[https://docs.example.com/b/](https://docs.example.com/b/)\n\nSecond chunk\n"
	if got := buf.String(); got != want {
		t.Errorf("markdown output:\n%q\nwant\n%q", got, want)
	}
}

func TestWriteUpdateAndStatus(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteUpdate(&buf, &models.UpdateResponse{Added: 4, Removed: 1, Files: 2, Chunks: 9, Snapshot: "abc"}, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Indexed 2 files into 9 chunks (+4 -1)") || !strings.Contains(buf.String(), "Snapshot: abc") {
		t.Errorf("update output: %s", buf.String())
	}

	buf.Reset()
	if err := WriteStatus(&buf, &database.Status{Root: "/docs", Engine: "keyword", Backend: "json", DiskBytes: 2048}, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "(none, run update)") || !strings.Contains(buf.String(), "2.0 KiB") {
		t.Errorf("status output: %s", buf.String())
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", OutputText, false},
		{"text", OutputText, false},
		{"JSON", OutputJSON, false},
		{"markdown", OutputMarkdown, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.n); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}
