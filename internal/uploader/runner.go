// Package uploader pushes CSV spreadsheet exports into a running applicant
// pool service, one batch per file (or per chunk of a large file).
package uploader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/okian/applicantpool/internal/domain/model"
	"github.com/okian/applicantpool/pkg/logger"
)

// Run uploads every configured file in order and returns the totals.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	stats := &Stats{
		StartTime: time.Now(),
	}
	log := logger.Get().Named("uploader")

	log.Info(ctx, "starting applicant pool upload",
		logger.String("baseURL", config.BaseURL),
		logger.Int("files", len(config.Files)),
		logger.Int("chunkRows", config.ChunkRows),
		logger.String("timeout", config.Timeout.String()))

	client := newClient(config)

	// Step 1: Check service health
	if err := client.Health(ctx); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Upload files oldest first so later exports win on attributes
	for _, path := range config.Files {
		if err := uploadFile(ctx, log, client, config, path, stats); err != nil {
			return stats, err
		}
	}

	// Final statistics
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	displayFinalStats(log, stats)
	return stats, nil
}

func uploadFile(ctx context.Context, log logger.Logger, client *Client, config *Config, path string, stats *Stats) error {
	file, err := os.Open(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	name := filepath.Base(path)
	rows, err := ReadRows(file, config.Separator, name)
	if err != nil {
		return err
	}
	stats.Files++

	base := batchBase(config.BatchID, name)
	chunks := chunk(rows, config.ChunkRows)
	for k, part := range chunks {
		id := base
		if len(chunks) > 1 {
			id = fmt.Sprintf("%s-%03d", base, k+1)
		}

		res, err := client.Submit(ctx, newBatchRequest(id, name, part))
		if err != nil {
			return fmt.Errorf("batch %s: %w", id, err)
		}
		stats.add(&res)

		log.Info(ctx, "batch merged",
			logger.String("batch_id", res.BatchID),
			logger.String("file", name),
			logger.Int("rows", res.Summary.Rows),
			logger.Int("created", res.Summary.Created),
			logger.Int("updated", res.Summary.Updated),
			logger.Int("conflicts", res.Summary.Conflicts),
			logger.Int("skipped", res.Summary.Skipped),
			logger.Int("poolSize", res.PoolSize))

		if config.Verbose {
			logOutcomes(ctx, log, res.Outcomes)
		}
	}
	return nil
}

// batchBase derives a stable batch ID from the file name so re-uploading the
// same export is idempotent.
func batchBase(prefix, name string) string {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	if prefix == "" {
		return stem
	}
	return prefix + "-" + stem
}

func logOutcomes(ctx context.Context, log logger.Logger, outcomes []model.MergeOutcome) {
	for i := range outcomes {
		o := &outcomes[i]
		switch o.Action {
		case model.ActionConflict:
			log.Warn(ctx, "row conflicts with pool",
				logger.String("ref", o.Ref),
				logger.String("pool_id", o.PoolID),
				logger.String("field", o.ConflictField),
				logger.String("conflict_with", o.ConflictWith))
		case model.ActionSkipped:
			log.Warn(ctx, "row skipped", logger.String("ref", o.Ref), logger.Strings("issues", o.Issues))
		}
	}
}

func (s *Stats) add(res *model.BatchResult) {
	s.Batches++
	s.Rows += res.Summary.Rows
	s.Created += res.Summary.Created
	s.Updated += res.Summary.Updated
	s.Conflicts += res.Summary.Conflicts
	s.Skipped += res.Summary.Skipped
	s.PoolSize = res.PoolSize
}

// displayFinalStats logs the run totals.
func displayFinalStats(log logger.Logger, stats *Stats) {
	var rowsPerSecond float64
	if stats.Duration > 0 {
		rowsPerSecond = float64(stats.Rows) / stats.Duration.Seconds()
	}

	log.Info(context.Background(), "final statistics",
		logger.Int("files", stats.Files),
		logger.Int("batches", stats.Batches),
		logger.Int("rows", stats.Rows),
		logger.Int("created", stats.Created),
		logger.Int("updated", stats.Updated),
		logger.Int("conflicts", stats.Conflicts),
		logger.Int("skipped", stats.Skipped),
		logger.Int("poolSize", stats.PoolSize),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("rowsPerSecond", rowsPerSecond))
}
