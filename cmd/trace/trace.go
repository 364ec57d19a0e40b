package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/gookit/color"
	"github.com/timewinder-dev/blockcheck/worker"
)

var (
	file   = flag.String("file", "", "Trace file written by blockcheck run --trace")
	source = flag.String("source", "", "Only show messages sent by this worker")
)

func main() {
	flag.Parse()
	if *file == "" {
		log.Fatal("--file is required")
	}
	f, err := os.Open(*file)
	if err != nil {
		log.Fatalf("couldn't open trace: %s", err)
	}
	defer f.Close()
	if err := trace(os.Stdout, f, *source); err != nil {
		log.Fatalln("Got err:", err)
	}
}

func trace(w io.Writer, r io.Reader, only string) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var start time.Time
	n := 0
	for sc.Scan() {
		var rec worker.TraceRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return fmt.Errorf("line %d: %w", n+1, err)
		}
		if start.IsZero() {
			start = rec.Time
		}
		n++
		if only != "" && rec.Source != only {
			continue
		}
		prettyPrint(w, n, rec.Time.Sub(start), rec)
	}
	if err := sc.Err(); err != nil {
		return err
	}
	fmt.Fprintf(w, "%d messages\n", n)
	return nil
}

func prettyPrint(w io.Writer, n int, offset time.Duration, rec worker.TraceRecord) {
	typ := fmt.Sprintf("%-28s", rec.Type)
	switch rec.Type {
	case "FOUND_RESULT":
		typ = color.Green.Sprint(typ)
	case "ERROR":
		typ = color.Red.Sprint(typ)
	case "STALE":
		typ = color.Gray.Sprint(typ)
	}
	first := ""
	if rec.First {
		first = " (seed)"
	}
	fmt.Fprintf(w, "%5d %10s %s %-14s -> %-4d %s%s\n", n, offset.Round(time.Microsecond), typ, rec.Source, rec.Target, rec.Payload, first)
}
