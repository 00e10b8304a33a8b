package uploader

import (
	"fmt"
	"os"

	"github.com/okian/applicantpool/pkg/logger"
)

// SetupLogging initializes the logger for the CLI.
func SetupLogging(verbose bool) error {
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		return logger.SetLevelString("debug")
	}
	return nil
}

// ShowHelp prints usage information for the upload tool.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`Applicant Pool Upload Tool
==========================

Merges CSV spreadsheet exports into a running applicant pool service.
Files are uploaded in the order given; pass older exports first.

Usage:
  pool-upload [options] FILE.csv [FILE.csv ...]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -sep string
        Field separator: comma, semicolon or tab (default comma)
  -chunk int
        Rows per batch; 0 sends each file as one batch (default 0)
  -batch string
        Batch ID prefix (default: none, the file name is used)
  -timeout duration
        HTTP request timeout (default 5m)
  -retries int
        Attempts when the service is busy (default 5)
  -verbose
        Log every conflicting and skipped row
  -help
        Show this help message

Examples:
  pool-upload jan.csv feb.csv
  pool-upload -sep semicolon -chunk 5000 -url http://pool:9080 export.csv
`)
}
