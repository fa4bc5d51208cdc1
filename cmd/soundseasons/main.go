package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "embed"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"github.com/tigerroll/soundseasons/internal/app"
	"github.com/tigerroll/soundseasons/internal/config"
	"github.com/tigerroll/soundseasons/internal/domain/model"
	"github.com/tigerroll/soundseasons/internal/support/logger"
)

// embeddedConfig embeds the application's YAML configuration file so the
// binary carries its defaults.
//
//go:embed resources/application.yaml
var embeddedConfig []byte

func main() {
	var (
		fromFlag = flag.String("from", "", "first ISO week to ingest (e.g. 2024-W01); defaults to default_weeks before -to")
		toFlag   = flag.String("to", "", "last ISO week to ingest (e.g. 2024-W13); defaults to the last completed week")
		envFile  = flag.String("env", "", "path to a .env file with credentials")
		weeks    = flag.Int("weeks", 0, "number of weeks to ingest when -from is omitted (overrides default_weeks)")
	)
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Warnf("Received signal %v. Shutting down.", sig)
		cancel()
	}()

	weekRange, err := resolveWeekRange(*fromFlag, *toFlag, *weeks)
	if err != nil {
		logger.Fatalf("Invalid week range: %v", err)
	}

	if err := app.RunApplication(ctx, *envFile, config.EmbeddedConfig(embeddedConfig), weekRange); err != nil {
		logger.Fatalf("Application run failed: %v", err)
	}
}

// resolveWeekRange derives the inclusive ingestion range from flags. With no
// flags the range covers the configured number of weeks ending at the last
// completed ISO week.
func resolveWeekRange(fromFlag, toFlag string, weeks int) (app.WeekRange, error) {
	if weeks <= 0 {
		weeks = loadDefaultWeeks()
	}

	var to model.WeekKey
	if toFlag != "" {
		var err error
		to, err = model.ParseWeekKey(toFlag)
		if err != nil {
			return app.WeekRange{}, err
		}
	} else {
		// Last completed week: the one before the week containing today.
		to = model.WeekOf(time.Now().UTC().AddDate(0, 0, -7))
	}

	var from model.WeekKey
	if fromFlag != "" {
		var err error
		from, err = model.ParseWeekKey(fromFlag)
		if err != nil {
			return app.WeekRange{}, err
		}
	} else {
		from = model.WeekOf(to.Monday().AddDate(0, 0, -7*(weeks-1)))
	}

	return app.WeekRange{From: from, To: to}, nil
}

// loadDefaultWeeks reads default_weeks from the embedded configuration so the
// flagless invocation matches the configured range length.
func loadDefaultWeeks() int {
	cfg, err := config.LoadConfig("", config.EmbeddedConfig(embeddedConfig))
	if err != nil {
		return 13
	}
	return cfg.SoundSeasons.Pipeline.DefaultWeeks
}
