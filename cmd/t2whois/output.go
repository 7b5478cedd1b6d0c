package main

import (
	"fmt"
	"io"
	"strings"
)

// writer renders result rows as the -o field list, one-line or multi-line,
// with an optional header row (spec §6 "-l", "-H", "-s").
type writer struct {
	out     io.Writer
	fields  []string
	oneLine bool
	sep     string
}

func newWriter(out io.Writer, fields []string, oneLine bool, sep string, header bool) *writer {
	w := &writer{out: out, fields: fields, oneLine: oneLine, sep: sep}
	if header {
		w.writeHeader()
	}
	return w
}

func (w *writer) writeHeader() {
	if w.oneLine {
		fmt.Fprintln(w.out, strings.Join(w.fields, w.sep))
		return
	}
	for _, f := range w.fields {
		fmt.Fprintf(w.out, "%-10s\n", f+":")
	}
	fmt.Fprintln(w.out)
}

func (w *writer) write(r result) {
	if w.oneLine {
		vals := make([]string, len(w.fields))
		for i, f := range w.fields {
			vals[i] = r.field(f)
		}
		fmt.Fprintln(w.out, strings.Join(vals, w.sep))
		return
	}
	for _, f := range w.fields {
		fmt.Fprintf(w.out, "%-10s %s\n", f+":", r.field(f))
	}
	fmt.Fprintln(w.out)
}

// writeKML writes a complete KML document to out: the XML header, the
// opening <kml><Document>, one Placemark per matched result, and the
// closing tags (spec §6 "-k <file>").
func writeKML(out io.Writer, results []result) {
	fmt.Fprintln(out, `<?xml version="1.0" encoding="UTF-8"?>`)
	fmt.Fprintln(out, `<kml xmlns="http://www.opengis.net/kml/2.2"><Document>`)
	for _, r := range results {
		if !r.found {
			continue
		}
		fmt.Fprintf(out, "  <Placemark>\n    <name>%s</name>\n", xmlEscape(r.query))
		fmt.Fprintf(out, "    <description>%s, %s (AS%d)</description>\n",
			xmlEscape(r.entry.City), xmlEscape(r.entry.Country), r.entry.ASN)
		fmt.Fprintf(out, "    <Point><coordinates>%f,%f,0</coordinates></Point>\n",
			r.entry.Lng, r.entry.Lat)
		fmt.Fprintln(out, "  </Placemark>")
	}
	fmt.Fprintln(out, "</Document></kml>")
}

func xmlEscape(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
	)
	return r.Replace(s)
}
