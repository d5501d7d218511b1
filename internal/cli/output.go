package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/PaesslerAG/jsonpath"
)

// Format selects how command results are written.
type Format struct {
	Kind string // table, json or jsonpath
	Expr string
}

// ParseFormat accepts "table", "json" or "jsonpath=<expr>".
func ParseFormat(s string) (Format, error) {
	switch {
	case s == "" || s == "table":
		return Format{Kind: "table"}, nil
	case s == "json":
		return Format{Kind: "json"}, nil
	case strings.HasPrefix(s, "jsonpath="):
		expr := strings.TrimPrefix(s, "jsonpath=")
		if expr == "" {
			return Format{}, fmt.Errorf("jsonpath output needs an expression")
		}
		return Format{Kind: "jsonpath", Expr: expr}, nil
	}
	return Format{}, fmt.Errorf("unknown output format %q (table, json, jsonpath=<expr>)", s)
}

// Table is the human rendering of a result.
type Table struct {
	Header []string
	Rows   [][]string
}

// Append adds a row.
func (t *Table) Append(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

// Printer writes results in the selected format.
type Printer struct {
	Out    io.Writer
	Format Format
}

// NewPrinter returns a printer writing to out.
func NewPrinter(out io.Writer, format Format) *Printer {
	return &Printer{Out: out, Format: format}
}

// Print writes v as JSON or through the jsonpath expression, or writes
// table when the format is table. A nil table falls back to JSON.
func (p *Printer) Print(v interface{}, table *Table) error {
	switch p.Format.Kind {
	case "json":
		return p.json(v)
	case "jsonpath":
		return p.jsonpath(v)
	}
	if table == nil {
		return p.json(v)
	}
	return p.table(table)
}

// Machine reports whether output is meant for scripts rather than humans.
func (p *Printer) Machine() bool { return p.Format.Kind != "table" }

func (p *Printer) json(v interface{}) error {
	enc := json.NewEncoder(p.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p *Printer) jsonpath(v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	got, err := jsonpath.Get(p.Format.Expr, doc)
	if err != nil {
		return fmt.Errorf("jsonpath %s: %w", p.Format.Expr, err)
	}
	switch val := got.(type) {
	case string:
		_, err = fmt.Fprintln(p.Out, val)
		return err
	case []interface{}:
		for _, item := range val {
			if s, ok := item.(string); ok {
				fmt.Fprintln(p.Out, s)
				continue
			}
			line, err := json.Marshal(item)
			if err != nil {
				return err
			}
			fmt.Fprintln(p.Out, string(line))
		}
		return nil
	}
	return p.json(got)
}

func (p *Printer) table(t *Table) error {
	w := tabwriter.NewWriter(p.Out, 0, 0, 2, ' ', 0)
	if len(t.Header) > 0 {
		fmt.Fprintln(w, strings.Join(t.Header, "\t"))
	}
	for _, row := range t.Rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	return w.Flush()
}

// Fields renders label/value pairs as a two-column table.
func Fields(pairs ...string) *Table {
	t := &Table{}
	for i := 0; i+1 < len(pairs); i += 2 {
		t.Append(pairs[i]+":", pairs[i+1])
	}
	return t
}
