// Command urlcheck explains an explore address bar: the panes it describes,
// the absolute range each resolves to and its canonical encoding.
//
//	urlcheck [-tz utc] 'http://host/explore?schemaVersion=1&left=...'
package main

import (
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"

	"explore-state-be/pkg/explore/timerange"
	"explore-state-be/pkg/explore/urlsync"

	"github.com/coder/quartz"
	"github.com/fatih/color"
)

func main() {
	tz := flag.String("tz", "utc", "time zone ranges are resolved in")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: urlcheck [-tz zone] <url or query string>")
		os.Exit(2)
	}

	raw := flag.Arg(0)
	if u, err := url.Parse(raw); err == nil && u.RawQuery != "" {
		raw = u.RawQuery
	}

	state, errs := urlsync.Parse(raw)
	resolver := timerange.NewResolver(quartz.NewReal())
	bold := color.New(color.Bold)

	bold.Printf("Schema version %d", state.SchemaVersion)
	if state.OrgID != 0 {
		bold.Printf(", org %d", state.OrgID)
	}
	fmt.Println()

	for _, p := range state.Panes {
		bold.Printf("\nPane %s\n", p.Key)
		ds := p.State.Datasource
		if ds == "" {
			ds = color.YellowString("(default)")
		}
		fmt.Printf("\tdatasource: %s\n", ds)
		fmt.Printf("\trange:      %s to %s\n", p.State.Range.From, p.State.Range.To)
		if p.State.Range.From != "" {
			tr, err := resolver.Resolve(p.State.Range, *tz)
			if err != nil {
				color.Red("\t            %v", err)
			} else {
				fmt.Printf("\t            %s to %s\n", tr.From.Format("2006-01-02 15:04:05 MST"), tr.To.Format("2006-01-02 15:04:05 MST"))
			}
		}
		for _, q := range p.State.Queries {
			expr := q.Expr
			if expr == "" {
				expr = color.HiBlackString("(empty)")
			}
			fmt.Printf("\tquery %s:   %s\n", q.RefID, expr)
		}
	}

	if len(errs) > 0 {
		fmt.Println()
		for _, err := range errs {
			color.Red("error: %v", err)
		}
	}

	canonical, err := urlsync.Encode(state)
	if err != nil {
		color.Red("encode: %v", err)
		os.Exit(1)
	}
	fmt.Println()
	bold.Println("Canonical:")
	fmt.Println(canonical)
	if strings.TrimPrefix(raw, "?") == canonical {
		color.Green("Address bar is already canonical")
	}
	if len(errs) > 0 {
		os.Exit(1)
	}
}
