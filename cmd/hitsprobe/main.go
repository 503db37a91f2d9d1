// Command hitsprobe inspects the hits column of the first rows of an export:
// how many hits each row holds and which hitNumber values they carry.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
)

func main() {
	var (
		input  string
		column string
		rows   int
		detail bool
	)
	flag.StringVar(&input, "input", "visitas.csv", "CSV export to inspect")
	flag.StringVar(&column, "hits_column", "hits", "name of the hits column")
	flag.IntVar(&rows, "rows", 1000, "number of data rows to inspect (0 reads all)")
	flag.BoolVar(&detail, "v", false, "print every inspected row")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	p, err := probeFile(ctx, input, column, rows)
	if err != nil {
		stop()
		fatalf("hitsprobe: %v", err)
	}
	p.print(os.Stdout, detail)
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
