package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/alecthomas/kong"

	"propsync/internal/config"
	appLog "propsync/internal/log"
)

var version = "dev"

// CLI is the root command line. Flags given here override the config file
// and PROPSYNC_* environment variables.
type CLI struct {
	Config   string `help:"Path to config file" default:"./propsync.yaml" type:"path" short:"c"`
	LogLevel string `help:"Log level (debug, info, error)" name:"log-level"`
	DB       string `help:"Override the sqlite database path" name:"db" type:"path"`

	Serve     ServeCmd     `cmd:"" help:"Run the HTTP API and scheduled feed sync." default:"1"`
	Export    ExportCmd    `cmd:"" help:"Write all bookings as an iCalendar document."`
	Validate  ValidateCmd  `cmd:"" help:"Decode an iCalendar file and report errors and warnings."`
	Layout    LayoutCmd    `cmd:"" help:"Show the month grid layout of bookings and feed events."`
	Conflicts ConflictsCmd `cmd:"" help:"List overlapping bookings and feed events."`
	Version   VersionCmd   `cmd:"" help:"Show version."`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("propsync"),
		kong.Description("Cleaning-service booking calendar with iCal import and export"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
	)

	cfg, err := config.Load(cli.Config)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", cli.Config)
		os.Exit(1)
	}
	if cli.LogLevel != "" {
		cfg.LogLevel = cli.LogLevel
	}
	if cli.DB != "" {
		cfg.DBPath = cli.DB
	}
	appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	app := newApp(ctx, cfg, os.Stdout)
	err = kctx.Run(app)
	app.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
