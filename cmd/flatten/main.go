// Command flatten expands the serialized hits and device columns of an
// analytics CSV export into one flat column per value, routes rows with many
// hits to a separate file and writes run reports.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hitsflat/internal/config"
)

func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	validate := fs.Bool("validate", false, "validate the configuration and exit")
	cfg, err := config.Load(fs, os.Args[1:])
	if err != nil {
		fatalf("config: %v", err)
	}

	issues := config.Validate(cfg)
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s\n", iss.Error())
	}
	if config.HasErrors(issues) {
		log.Printf("configuration is invalid")
		os.Exit(1)
	}
	if *validate {
		log.Printf("configuration is valid")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	if err := run(ctx, cfg, os.Stdout); err != nil {
		stop()
		fatalf("flatten: %v", err)
	}
	log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
