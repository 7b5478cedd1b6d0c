// t2whois is the public face of the subnet/geolocation lookup engine: a
// batch CLI, an interactive shell, and an HTTP daemon over the same
// geo.Table (spec §6).
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"

	"github.com/bgpfix/flowan/geo"
)

var (
	optRead    = flag.String("r", "", "read IPs from file instead of the command line/shell")
	optFields  = flag.String("o", "", "comma list of output fields (see \"fields\" command)")
	optOneLine = flag.Bool("l", false, "one-line output")
	optNoHead  = flag.Bool("H", false, "suppress header")
	optSep     = flag.String("s", "\t", "field separator for -l")
	optKML     = flag.String("k", "", "emit KML to this file instead of text")
	optDaemon  = flag.Bool("D", false, "daemon mode: serve lookups over HTTP")
	optAddr    = flag.String("a", "127.0.0.1", "daemon listen address")
	optPort    = flag.Int("p", 8420, "daemon listen port")
	optIPv6    = flag.Bool("6", false, "the subnet file is an IPv6 table")
	optVersion = flag.Uint("V", 1, "subnet file schema version to require")
)

func main() {
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(1)
	}

	table, err := loadTable(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "t2whois: %v\n", err)
		os.Exit(1)
	}
	defer table.Close()

	fields, err := parseFields(*optFields)
	if err != nil {
		fmt.Fprintf(os.Stderr, "t2whois: %v\n", err)
		os.Exit(1)
	}

	switch {
	case *optDaemon:
		if err := runDaemon(table, *optAddr, *optPort); err != nil {
			fmt.Fprintf(os.Stderr, "t2whois: daemon: %v\n", err)
			os.Exit(1)
		}
	case *optRead != "":
		if err := runBatch(table, *optRead, fields); err != nil {
			fmt.Fprintf(os.Stderr, "t2whois: %v\n", err)
			os.Exit(1)
		}
	default:
		if err := runREPL(table, fields, *optOneLine, *optSep); err != nil {
			fmt.Fprintf(os.Stderr, "t2whois: %v\n", err)
			os.Exit(1)
		}
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: t2whois [OPTIONS] <subnet-file>\n")
	flag.PrintDefaults()
}

func loadTable(path string) (*geo.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening subnet file: %w", err)
	}
	defer f.Close()

	mode := geo.ModeCIDR
	table, err := geo.Load(f, *optIPv6, uint32(*optVersion), mode)
	if err != nil {
		return nil, fmt.Errorf("loading subnet file: %w", err)
	}
	return table, nil
}

// runBatch reads one address per line from path, looks each up, and
// writes the selected fields either as KML (-k) or as plain text.
func runBatch(table *geo.Table, path string, fields []string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening -r file: %w", err)
	}
	defer f.Close()

	var results []result
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		results = append(results, lookup(table, line))
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading -r file: %w", err)
	}

	if *optKML != "" {
		out, err := os.Create(*optKML)
		if err != nil {
			return fmt.Errorf("creating -k file: %w", err)
		}
		defer out.Close()
		writeKML(out, results)
		return nil
	}

	w := newWriter(os.Stdout, fields, *optOneLine, *optSep, !*optNoHead)
	for _, r := range results {
		w.write(r)
	}
	return nil
}
