package analytics

import (
	"context"
	"io"
	"time"
)

// Service defines the operations exposed by the remote analytics backend.
// Implementations handle transport details such as request encoding,
// multipart uploads and error body decoding.
type Service interface {
	// Ingest uploads a spreadsheet, replacing whatever dataset the service
	// currently holds.
	Ingest(ctx context.Context, file File) (*IngestResult, error)

	// Analyze runs a natural-language query against the loaded dataset.
	Analyze(ctx context.Context, query string) (*AnalyzeResult, error)

	// Export requests the filtered dataset as CSV.
	Export(ctx context.Context, locations []string) (*ExportResult, error)
}

// File is a named spreadsheet stream handed to Ingest.
type File struct {
	Name    string
	Content io.Reader
}

// Config holds connection settings for a Service client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}
