package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/pinvault/internal/flagx"
)

// parseFlags overlays cfg with -d, -b, -l and -t from args.
func parseFlags(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("pinvault", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.DataDir, "d", cfg.DataDir, "data directory")
	fs.StringVar(&cfg.StoreBackend, "b", cfg.StoreBackend, "snapshot backend (file|s3)")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	timeout := fs.Int("t", int(cfg.UnlockTimeout.Seconds()), "idle auto-lock timeout in seconds (0 disables)")

	if err := fs.Parse(flagx.FilterArgs(args, []string{"-d", "-b", "-l", "-t"})); err != nil {
		return err
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "t" {
			cfg.UnlockTimeout = time.Duration(*timeout) * time.Second
		}
	})
	return nil
}
