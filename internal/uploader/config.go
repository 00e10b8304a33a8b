package uploader

import "time"

// Config holds configuration for an upload run.
type Config struct {
	BaseURL   string        // Base URL of the service
	Files     []string      // CSV exports, oldest first
	Separator rune          // CSV field separator
	ChunkRows int           // Rows per submitted batch; 0 sends each file whole
	BatchID   string        // Batch ID prefix; defaults to the file name
	Timeout   time.Duration // HTTP request timeout
	Retries   int           // Attempts on 429/503 responses
	Backoff   time.Duration // Initial retry backoff, doubled per attempt
	Verbose   bool          // Log every conflict and skipped row
}

// Stats holds run statistics.
type Stats struct {
	Files     int
	Batches   int
	Rows      int
	Created   int
	Updated   int
	Conflicts int
	Skipped   int
	PoolSize  int
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}
