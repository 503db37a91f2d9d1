// Command rowdiff prints the rows of file2 that do not occur in file1.
//
// Rows are matched by their content under the header, so two flattened
// outputs with a different column order or extra empty columns can be
// compared. The header of file2 is printed first.
//
// Usage:
//
//	rowdiff [-o out.csv] file1.csv file2.csv
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"

	"hitsflat/internal/rowdiff"
)

func main() {
	out := flag.String("o", "", "write the missing rows here instead of stdout")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-o out.csv] file1.csv file2.csv\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var w io.Writer = os.Stdout
	var f *os.File
	if *out != "" {
		var err error
		f, err = os.Create(*out)
		if err != nil {
			fatalf("rowdiff: %v", err)
		}
		w = f
	}
	bw := bufio.NewWriter(w)

	res, err := rowdiff.Diff(ctx, flag.Arg(0), flag.Arg(1), bw)
	if err == nil {
		err = bw.Flush()
	}
	if f != nil {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		stop()
		fatalf("rowdiff: %v", err)
	}
	log.Printf("rowdiff: file1 rows=%d file2 rows=%d missing=%d wide=%d", res.Rows1, res.Rows2, res.Missing, res.Wide)
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
