// Command unspoold runs the unspool daemon in the foreground. It is the
// standalone equivalent of `unspool daemon` for init systems and containers
// that manage the process themselves.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"unspool/internal/config"
	"unspool/internal/daemonrun"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to configuration file")
		logLevel   = flag.String("log-level", "", "Override the configured log level")
		diagnostic = flag.Bool("diagnostic", false, "Enable verbose diagnostic logging")
	)
	flag.Parse()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	opts := buildRunOptions(cfg, *logLevel, *diagnostic)
	if err := daemonrun.Run(context.Background(), cfg, opts); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
