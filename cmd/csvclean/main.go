// Command csvclean tidies a large CSV export in batches and writes a JSON
// and a text report of what it changed.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"hitsflat/internal/clean"
)

func main() {
	var (
		input     string
		output    string
		skipped   string
		reportDir string
		batchSize int
	)
	flag.StringVar(&input, "input", "visitas_expandidas.csv", "CSV file to clean")
	flag.StringVar(&output, "output", "visitas_limpias.csv", "cleaned CSV output")
	flag.StringVar(&skipped, "skipped", "skipped/clean.csv", "log of lines copied without cleaning (empty disables)")
	flag.StringVar(&reportDir, "report_dir", ".", "directory for the cleaning reports")
	flag.IntVar(&batchSize, "batch_size", clean.DefaultBatchSize, "rows cleaned together")
	flag.Parse()

	if input == output {
		fatalf("csvclean: -output must differ from -input")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rep, err := clean.Run(ctx, clean.Options{
		Input:      input,
		Output:     output,
		SkippedLog: skipped,
		BatchSize:  batchSize,
	})
	if err != nil {
		stop()
		fatalf("csvclean: %v", err)
	}
	paths, err := clean.WriteReports(reportDir, rep)
	if err != nil {
		stop()
		fatalf("csvclean: reports: %v", err)
	}
	for _, p := range paths {
		log.Printf("report: wrote %s", p)
	}
	fmt.Printf("Rows cleaned: %d\nLines copied verbatim: %d\nOutput: %s\n", rep.Rows, rep.Verbatim, rep.Output)
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
