// Command csvpeek shows the first and last rows of a CSV file and how many
// columns they have, on the console and as an HTML table.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"
)

func main() {
	var (
		input string
		html  string
		rows  int
	)
	flag.StringVar(&input, "input", "visitas_expandidas.csv", "CSV file to preview")
	flag.StringVar(&html, "html", "", "HTML output (default tabla_datos_<timestamp>.html)")
	flag.IntVar(&rows, "rows", 5, "rows to show from each end")
	flag.Parse()
	if html == "" {
		html = "tabla_datos_" + time.Now().Format("20060102_150405") + ".html"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	p, err := peek(ctx, input, rows)
	if err != nil {
		stop()
		fatalf("csvpeek: %v", err)
	}
	p.print(os.Stdout)
	if err := writeHTML(html, p); err != nil {
		stop()
		fatalf("csvpeek: %v", err)
	}
	fmt.Printf("HTML preview: %s\n", html)
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
