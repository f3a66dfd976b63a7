// Command import loads a legacy flat agenda file into the configured
// booking store. It is a one-time migration aid; duplicate records are
// skipped so the import can be re-run safely.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"quadra/internal/config"
	"quadra/internal/lockmgr"
	"quadra/internal/store"
)

func main() {
	_ = godotenv.Load()

	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	input := flag.String("file", "", "legacy agenda file (unit;date;time;name;phone;companion per line)")
	flag.Parse()
	if *input == "" {
		logger.Fatal().Msg("usage: import -file <legacy agenda>")
	}

	cfg, err := config.Load(os.Getenv("QUADRA_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	ctx := context.Background()

	var st store.Store
	switch cfg.Store.Backend {
	case config.BackendFile:
		locks := lockmgr.New(lockmgr.Config{
			WaitTimeout: cfg.LockWaitTimeout(),
			MaxPending:  cfg.Lock.MaxPending,
		})
		st, err = store.OpenFileStore(cfg.Store.AgendaDir, locks, &logger)
	default:
		st, err = store.OpenSQLite(ctx, cfg.Store.Path, &logger)
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("open store error")
	}
	defer st.Close()

	f, err := os.Open(*input)
	if err != nil {
		logger.Fatal().Err(err).Msg("open legacy agenda")
	}
	defer f.Close()

	result, err := store.ImportLegacy(ctx, st, f, &logger)
	if err != nil {
		logger.Fatal().Err(err).Int("imported", result.Imported).Msg("import aborted")
	}
	logger.Info().Int("imported", result.Imported).Int("skipped", result.Skipped).Msg("import finished")
}
