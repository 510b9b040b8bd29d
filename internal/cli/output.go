package cli

import (
	"encoding/csv"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/goccy/go-json"
)

// output renders one result in the format chosen with --format. The JSON
// form is the structured value; table and CSV use headers and rows.
type output struct {
	headers []string
	rows    [][]string
	value   any
}

func (c *CommandContext) render(o output) {
	switch format := c.GetFlag("format"); format {
	case "json":
		printJSON(c.Out, o.value)
	case "csv":
		printCSV(c.Out, o.headers, o.rows)
	case "", "table":
		printTable(c.Out, o.headers, o.rows)
	default:
		c.Fail("Unknown format: %s", format)
	}
}

// printJSON writes indented JSON to a writer.
func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

// printCSV writes headers and rows as CSV.
func printCSV(w io.Writer, headers []string, rows [][]string) {
	cw := csv.NewWriter(w)
	cw.Write(headers)
	cw.WriteAll(rows)
}

// printTable writes aligned columns.
func printTable(w io.Writer, headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	writeRow(tw, headers)
	for _, row := range rows {
		writeRow(tw, row)
	}
	tw.Flush()
}

func writeRow(w io.Writer, cells []string) {
	for i, cell := range cells {
		if i > 0 {
			fmt.Fprint(w, "\t")
		}
		fmt.Fprint(w, cell)
	}
	fmt.Fprintln(w)
}
