package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/md-rashed-zaman/groomdesk/libs/config"
	"github.com/md-rashed-zaman/groomdesk/libs/runtime"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/migrations"
)

func main() {
	var (
		down  = flag.Bool("down", false, "roll back every migration")
		steps = flag.Int("steps", 0, "apply n migrations (negative rolls back)")
	)
	flag.Parse()

	if err := config.Load(); err != nil {
		fatal(err)
	}
	logger := runtime.NewLogger("booking-migrate", config.String("LOG_LEVEL", "info"))

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		fatal(err)
	}
	m, err := migrations.New(dbURL, logger)
	if err != nil {
		fatal(err)
	}
	defer func() { _ = m.Close() }()

	switch {
	case *down:
		err = m.Down()
	case *steps != 0:
		err = m.Steps(*steps)
	default:
		err = m.Up()
	}
	if err != nil {
		logger.Error("migration failed", "err", err)
		_ = m.Close()
		os.Exit(1)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(2)
}
