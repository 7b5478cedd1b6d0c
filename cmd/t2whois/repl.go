package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/Bowery/prompt"
	"github.com/bgpfix/flowan/geo"
)

const aboutText = "t2whois - subnet/geolocation lookup shell over the flowan geo table"

// runREPL drives the interactive `ip/header/fields/about/help/quit` shell
// (spec §6 CLI), used whenever neither -r nor -D was given.
func runREPL(table *geo.Table, fields []string, oneLine bool, sep string) error {
	fmt.Println(aboutText)
	fmt.Println(`type "help" for a command list`)

	for {
		line, err := prompt.Basic("t2whois> ", true)
		if err != nil {
			// prompt.Basic returns io.EOF on Ctrl-D; treat that like quit.
			fmt.Println()
			return nil
		}

		cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
		switch cmd {
		case "":
			continue
		case "quit", "exit":
			return nil
		case "help":
			printHelp()
		case "about":
			fmt.Println(aboutText)
		case "fields":
			fmt.Println(strings.Join(allFields, ", "))
		case "header":
			w := newWriter(os.Stdout, fields, oneLine, sep, false)
			w.writeHeader()
		case "ip":
			arg = strings.TrimSpace(arg)
			if arg == "" {
				fmt.Println("usage: ip <addr>")
				continue
			}
			r := lookup(table, arg)
			w := newWriter(os.Stdout, fields, oneLine, sep, false)
			w.write(r)
		default:
			fmt.Printf("unknown command %q, type \"help\"\n", cmd)
		}
	}
}

func printHelp() {
	fmt.Println(`commands:
  ip <addr>   look up one address and print the selected fields
  header      print the active field header
  fields      list every field -o accepts
  about       print version/identification text
  help        print this text
  quit        leave the shell`)
}
