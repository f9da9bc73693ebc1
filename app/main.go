package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"stridepoints/app/notify"
	"stridepoints/app/server"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

var (
	srv       *server.HttpHandler
	announcer *notify.Announcer
	env       string
)

func main() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	ctx := context.Background()

	go srv.Start()
	if announcer != nil {
		go announcer.Start(ctx)
	}

	// Nightly sweep keeps refresh tokens warm so webhook bursts do not all
	// hit the refresh endpoint at once.
	c := cron.New()
	_, err := c.AddFunc("0 3 * * *", func() {
		_, _, err := srv.Tokens.SweepAll(context.Background())
		if err != nil {
			slog.Error("error during scheduled token sweep", "err", err)
		}
	})
	if err != nil {
		slog.Error("error while scheduling token sweep", "err", err)
		panic(err)
	}
	c.Start()

	slog.Info("press CTRL+C to stop program\n")
	<-sigCh
	slog.Info("Shutting down\n")
	c.Stop()
	os.Exit(0)
}

func init() {
	err := godotenv.Load()
	env = os.Getenv("ENV")
	if err != nil && env != "PROD" {
		slog.Error("error while initializing godotenv")
		os.Exit(1)
	}
	slog.SetLogLoggerLevel(slog.LevelDebug.Level())

	srv = &server.HttpHandler{}

	tgApiKey := os.Getenv("TELEGRAM_API_KEY")
	if tgApiKey != "" {
		channelId, err := strconv.ParseInt(os.Getenv("TELEGRAM_CHANNEL_ID"), 10, 64)
		if err != nil {
			slog.Error("TELEGRAM_CHANNEL_ID is not a number")
			panic(err)
		}
		events := make(chan notify.Event, 64)
		announcer = notify.NewAnnouncer(tgApiKey, channelId, events)
		srv.Created = events
	}

	srv.Init()
}
