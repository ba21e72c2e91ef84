package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/pinvault/internal/buildinfo"
	"github.com/dmitrijs2005/pinvault/internal/cli"
	"github.com/dmitrijs2005/pinvault/internal/config"
	"github.com/dmitrijs2005/pinvault/internal/logging"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	logger := logging.New(os.Stderr, cfg.LogLevel)

	app, err := cli.NewApp(ctx, cfg, os.Stdin, os.Stdout, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := app.Run(ctx); err != nil {
		log.Fatalf("%v", err)
	}
}
