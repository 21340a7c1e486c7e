// Command archive-export writes scrubbed interaction logs to S3, one JSONL
// object per UTC day. It is meant to run from a daily scheduler.
//
//	archive-export                 export yesterday
//	archive-export -date 2024-05-01 -days 7
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/afiyalink/afiyalink-assistant/cmd/mainconfig"
	"github.com/afiyalink/afiyalink-assistant/internal/app/bootstrap"
	"github.com/afiyalink/afiyalink-assistant/internal/archive"
	appconfig "github.com/afiyalink/afiyalink-assistant/internal/config"
	"github.com/afiyalink/afiyalink-assistant/internal/interactionlog"
	"github.com/afiyalink/afiyalink-assistant/internal/store"
	"github.com/afiyalink/afiyalink-assistant/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	dateFlag := flag.String("date", "", "first UTC day to export (YYYY-MM-DD); defaults to yesterday")
	days := flag.Int("days", 1, "number of consecutive days to export")
	flag.Parse()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	first, err := parseDay(*dateFlag, time.Now())
	if err != nil {
		logger.Error("invalid -date", "error", err)
		os.Exit(2)
	}
	if cfg.ArchiveBucket == "" {
		logger.Error("ARCHIVE_BUCKET is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	var closers []func() error
	defer func() {
		for _, c := range closers {
			_ = c()
		}
	}()
	onClose := func(fn func() error) { closers = append(closers, fn) }

	var sqliteDB *sql.DB
	if cfg.InteractionLogBackend == "" || cfg.InteractionLogBackend == "sqlite" {
		sqliteDB, err = store.NewDB(cfg.SQLitePath)
		if err != nil {
			logger.Error("failed to open sqlite", "error", err)
			os.Exit(1)
		}
		onClose(sqliteDB.Close)
	}
	_, reader, err := bootstrap.BuildInteractionLog(ctx, cfg, sqliteDB, awsCfg, onClose)
	if err != nil {
		logger.Error("failed to open interaction log", "error", err)
		os.Exit(1)
	}

	exporter := archive.NewStore(bootstrap.NewS3Client(awsCfg, cfg), cfg.ArchiveBucket, logger)
	results, err := exportRange(ctx, exporter, reader, first, *days)
	for _, r := range results {
		fmt.Printf("%s\t%d records\t%d emergencies\t%s\n", r.Date, r.RecordCount, r.EmergencyCount, r.S3Key)
	}
	if err != nil {
		logger.Error("archive export failed", "error", err)
		os.Exit(1)
	}
}

type dayExporter interface {
	ExportDay(ctx context.Context, reader interactionlog.Reader, day time.Time) (archive.ExportResult, error)
}

// exportRange exports days consecutive days starting at first. Every day is
// attempted; failures are joined.
func exportRange(ctx context.Context, exporter dayExporter, reader interactionlog.Reader, first time.Time, days int) ([]archive.ExportResult, error) {
	if days <= 0 {
		return nil, errors.New("days must be positive")
	}
	var (
		results []archive.ExportResult
		errs    []error
	)
	for i := 0; i < days; i++ {
		res, err := exporter.ExportDay(ctx, reader, first.AddDate(0, 0, i))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}

func parseDay(raw string, now time.Time) (time.Time, error) {
	if raw == "" {
		y := now.UTC().AddDate(0, 0, -1)
		return time.Date(y.Year(), y.Month(), y.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	return time.Parse("2006-01-02", raw)
}
