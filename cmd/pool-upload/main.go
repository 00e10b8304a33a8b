package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/applicantpool/internal/uploader"
)

// Default configuration constants.
const (
	defaultTimeout = 5 * time.Minute
	defaultRetries = 5
	defaultBackoff = 500 * time.Millisecond
)

func main() {
	var (
		baseURL = flag.String("url", "http://localhost:9080", "Base URL of the service")
		sep     = flag.String("sep", "comma", "Field separator: comma, semicolon or tab")
		chunk   = flag.Int("chunk", 0, "Rows per batch; 0 sends each file as one batch")
		batchID = flag.String("batch", "", "Batch ID prefix (default: the file name)")
		timeout = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		retries = flag.Int("retries", defaultRetries, "Attempts when the service is busy")
		verbose = flag.Bool("verbose", false, "Log every conflicting and skipped row")
		help    = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help || flag.NArg() == 0 {
		uploader.ShowHelp()
		return
	}

	// Setup logging
	if err := uploader.SetupLogging(*verbose); err != nil {
		_, _ = os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	separator, err := uploader.ParseSeparator(*sep)
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	config := &uploader.Config{
		BaseURL:   *baseURL,
		Files:     flag.Args(),
		Separator: separator,
		ChunkRows: *chunk,
		BatchID:   *batchID,
		Timeout:   *timeout,
		Retries:   *retries,
		Backoff:   defaultBackoff,
		Verbose:   *verbose,
	}

	if _, err := uploader.Run(ctx, config); err != nil {
		_, _ = os.Stderr.WriteString("Upload failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
