// Command oncal evaluates a calendar expression from the command line,
// printing its next (or previous) occurrences.
//
//	oncal 'Mon..Fri 9:00'
//	oncal -n 10 -backward 'Sun *-*~7 12:00 Europe/Riga'
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"calsched/internal/oncalendar"
)

func main() {
	count := flag.Int("n", 5, "number of occurrences to print")
	backward := flag.Bool("backward", false, "iterate into the past instead of the future")
	fromStr := flag.String("from", "", "reference time in RFC 3339 (default now)")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: oncal [flags] EXPRESSION")
		flag.PrintDefaults()
		os.Exit(2)
	}

	from := time.Now()
	if *fromStr != "" {
		parsed, err := time.Parse(time.RFC3339, *fromStr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "oncal: invalid -from value: %v\n", err)
			os.Exit(2)
		}
		from = parsed
	}

	expr, err := oncalendar.ParseTZ(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "oncal: %v\n", err)
		os.Exit(1)
	}

	next := expr.Iterator(from).Next
	if *backward {
		next = expr.Backward(from).Next
	}

	for i := 0; i < *count; i++ {
		t, ok := next()
		if !ok {
			fmt.Println("no further occurrences")
			break
		}
		fmt.Println(t.Format("2006-01-02 15:04:05 MST"))
	}
}
