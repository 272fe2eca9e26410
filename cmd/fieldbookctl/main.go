package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"fieldbook/internal/config"
	"fieldbook/internal/database"
	"fieldbook/internal/domain"
	"fieldbook/internal/export"
	"fieldbook/internal/google"
	"fieldbook/internal/logging"
	"fieldbook/internal/models"

	"github.com/rs/zerolog"
)

const usage = `usage: fieldbookctl <command> [flags]

commands:
  import-catalog   load stadiums, fields, schedules and staff into the database
  export           write reservations of a field to an xlsx file
  resync-sheets    rewrite the Google Sheets mirror from the database
  requeue-failed   put failed sync tasks back into the queue
  purge-sync       delete completed sync tasks older than -days
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return errors.New("command is required")
	}

	fs := flag.NewFlagSet(args[0], flag.ExitOnError)
	configPath := fs.String("config", "configs/config.yaml", "path to config.yaml")
	catalogPath := fs.String("catalog", "", "path to catalog.yaml (defaults to catalog_path from config)")
	fieldID := fs.String("field", "", "field id")
	from := fs.String("from", "", "first date, YYYY-MM-DD")
	to := fs.String("to", "", "last date, YYYY-MM-DD")
	days := fs.Int("days", 30, "purge-sync: keep completed tasks this many days")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if closer != nil {
		defer closer.Close()
	}

	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	switch args[0] {
	case "import-catalog":
		path := *catalogPath
		if path == "" {
			path = cfg.CatalogPath
		}
		return importCatalog(ctx, db, path, logger)
	case "export":
		if *fieldID == "" || *from == "" || *to == "" {
			return errors.New("export requires -field, -from and -to")
		}
		return exportReservations(ctx, db, cfg.Exports.Path, *fieldID, *from, *to, logger)
	case "resync-sheets":
		return resyncSheets(ctx, cfg, db, *fieldID, *from, *to, logger)
	case "requeue-failed":
		return requeueFailed(ctx, db, logger)
	case "purge-sync":
		n, err := db.PurgeCompletedSyncTasks(ctx, time.Now().AddDate(0, 0, -*days))
		if err != nil {
			return err
		}
		logger.Info().Int64("tasks", n).Int("days", *days).Msg("completed sync tasks purged")
		return nil
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func importCatalog(ctx context.Context, db *database.DB, path string, logger *zerolog.Logger) error {
	catalog, err := config.LoadCatalog(path)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	if len(catalog.Fields) == 0 {
		return fmt.Errorf("no fields in %s", path)
	}
	if err := db.SyncCatalog(ctx, catalog); err != nil {
		return err
	}
	logger.Info().Str("path", path).Msg("catalog imported")
	return nil
}

// dbLister adapts the repository to export.ReservationLister.
type dbLister struct{ db *database.DB }

func (l dbLister) ListReservations(ctx context.Context, filter domain.ReservationFilter) ([]*models.Reservation, error) {
	return l.db.FindReservations(ctx, filter)
}

func exportReservations(ctx context.Context, db *database.DB, dir, fieldID, from, to string, logger *zerolog.Logger) error {
	path, err := export.NewExporter(dbLister{db}, dir, logger).SaveToFile(ctx, fieldID, from, to)
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

func resyncSheets(ctx context.Context, cfg *config.Config, db *database.DB, fieldID, from, to string, logger *zerolog.Logger) error {
	if !cfg.Google.Enabled {
		return errors.New("google sheets mirror is disabled in config")
	}

	mirror, err := google.NewSheetsMirror(ctx, cfg.Google.CredentialsFile, cfg.Google.SpreadsheetID, cfg.Google.SheetName, logger)
	if err != nil {
		return err
	}

	reservations, err := db.FindReservations(ctx, domain.ReservationFilter{
		FieldID:  fieldID,
		FromDate: from,
		ToDate:   to,
	})
	if err != nil {
		return err
	}
	if err := mirror.ReplaceAll(ctx, reservations); err != nil {
		return fmt.Errorf("replace sheet: %w", err)
	}

	logger.Info().Int("rows", len(reservations)).Str("spreadsheet_id", cfg.Google.SpreadsheetID).Msg("sheet rewritten")
	return nil
}

func requeueFailed(ctx context.Context, db *database.DB, logger *zerolog.Logger) error {
	tasks, err := db.GetFailedSyncTasks(ctx)
	if err != nil {
		return err
	}
	for _, t := range tasks {
		ev := logger.Debug().Int64("task_id", t.ID).Str("reservation_id", t.ReservationID)
		if t.LastError != nil {
			ev = ev.Str("last_error", *t.LastError)
		}
		ev.Msg("requeue")
	}

	n, err := db.RequeueFailedSyncTasks(ctx)
	if err != nil {
		return err
	}
	logger.Info().Int64("tasks", n).Msg("failed sync tasks requeued")
	return nil
}
