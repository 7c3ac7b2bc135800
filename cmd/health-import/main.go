package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"wisefido-health-sync/common/database"
	logpkg "wisefido-health-sync/common/logger"
	"wisefido-health-sync/internal/config"
	"wisefido-health-sync/internal/importer"
	"wisefido-health-sync/internal/remote"
	"wisefido-health-sync/internal/service"
	"wisefido-health-sync/internal/units"

	"go.uber.org/zap"
)

func main() {
	var filePath = flag.String("file", "", "Blood pressure export to import (.csv, .xlsx, optionally .gz or .zst)")
	var upload = flag.Bool("upload", false, "Upload the parsed readings to the configured remote backend")
	var undated = flag.String("undated", "now", "Rows without a parseable date: 'now' or 'skip'")
	var tz = flag.String("tz", "Local", "Time zone for timestamps without an offset")
	var asJSON = flag.Bool("json", false, "Print readings as JSON")
	var verbose = flag.Bool("v", false, "Verbose logging")
	flag.Parse()

	if *filePath == "" && flag.NArg() > 0 {
		*filePath = flag.Arg(0)
	}
	if *filePath == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s [-upload] [-json] -file <export.csv>\n", os.Args[0])
		os.Exit(2)
	}

	log, err := logpkg.NewCLILogger(*verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	policy, err := importer.ParseUndatedPolicy(*undated)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid -undated: %v\n", err)
		os.Exit(2)
	}

	loc := units.LocalLocation()
	if *tz != "" && *tz != "Local" {
		if loc, err = time.LoadLocation(*tz); err != nil {
			fmt.Fprintf(os.Stderr, "Unknown time zone %q: %v\n", *tz, err)
			os.Exit(2)
		}
	}

	f, err := os.Open(*filePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open file: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	parser := importer.NewParser(importer.Options{
		Location: loc,
		Undated:  policy,
		Logger:   log,
	})
	readings, err := parser.ParseFile(filepath.Base(*filePath), f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Import failed: %v\n", err)
		os.Exit(1)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(readings)
	} else {
		fmt.Printf("%-20s | %-8s | %-9s | %-5s | %s\n", "Measured At", "Systolic", "Diastolic", "Pulse", "Notes")
		fmt.Println("---------------------|----------|-----------|-------|------")
		for _, r := range readings {
			pulse, notes := "-", ""
			if r.Pulse != nil {
				pulse = fmt.Sprint(*r.Pulse)
			}
			if r.Notes != nil {
				notes = *r.Notes
			}
			fmt.Printf("%-20s | %-8d | %-9d | %-5s | %s\n", r.MeasuredAt.Format("2006-01-02 15:04"), r.Systolic, r.Diastolic, pulse, notes)
		}
		fmt.Printf("\n%d readings parsed\n", len(readings))
	}

	if !*upload {
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	var db *sql.DB
	if cfg.Remote.Backend == "postgres" {
		if db, err = database.NewPostgresDB(&cfg.Database); err != nil {
			fmt.Fprintf(os.Stderr, "Cannot connect to database: %v\n", err)
			os.Exit(1)
		}
		defer db.Close()
	}

	client := remote.NewClient(service.NewRemoteStore(cfg, db, log), cfg.Remote.OwnerID, cfg.Remote.BatchSize, log)
	res, err := client.UploadReadings(context.Background(), readings)
	if err != nil {
		log.Error("Upload failed", zap.Int("committed", res.Committed()), zap.Error(err))
		fmt.Fprintf(os.Stderr, "Upload failed after %d of %d rows: %v\n", res.Committed(), res.Total(), err)
		os.Exit(1)
	}
	fmt.Printf("Uploaded %d rows\n", res.Committed())
}
