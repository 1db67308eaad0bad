// Package output provides formatted rendering for provider listings,
// auth status, and errors. It supports text, JSON, and table formats.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// Format represents an output format type.
type Format string

const (
	FormatText  Format = "text"
	FormatJSON  Format = "json"
	FormatTable Format = "table"
)

// ParseFormat converts a string to a Format, defaulting to text.
func ParseFormat(s string) Format {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON
	case "table":
		return FormatTable
	default:
		return FormatText
	}
}

// Writer handles writing formatted output.
type Writer struct {
	w      io.Writer
	format Format
}

// New creates a new output Writer.
func New(w io.Writer, format Format) *Writer {
	return &Writer{w: w, format: format}
}

// Format returns the configured output format.
func (wr *Writer) Format() Format { return wr.format }

// WriteJSON outputs any value as indented JSON.
func (wr *Writer) WriteJSON(v any) error {
	enc := json.NewEncoder(wr.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ProviderRow is one line of a provider listing.
type ProviderRow struct {
	Name         string `json:"name"`
	AuthStrategy string `json:"auth_strategy"`
	Credential   string `json:"credential"`
	Detail       string `json:"detail,omitempty"`
}

// WriteProviders outputs a provider listing in the configured format.
func (wr *Writer) WriteProviders(rows []ProviderRow) error {
	switch wr.format {
	case FormatJSON:
		return wr.WriteJSON(rows)
	case FormatTable:
		return wr.writeProviderTable(rows)
	default:
		return wr.writeProviderText(rows)
	}
}

func (wr *Writer) writeProviderText(rows []ProviderRow) error {
	for _, row := range rows {
		line := fmt.Sprintf("%s  [%s]  %s", row.Name, row.AuthStrategy, row.Credential)
		if row.Detail != "" {
			line += "  (" + row.Detail + ")"
		}
		if _, err := fmt.Fprintln(wr.w, line); err != nil {
			return err
		}
	}
	return nil
}

func (wr *Writer) writeProviderTable(rows []ProviderRow) error {
	tw := tabwriter.NewWriter(wr.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PROVIDER\tAUTH\tCREDENTIAL\tDETAIL")
	fmt.Fprintln(tw, "--------\t----\t----------\t------")
	for _, row := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", row.Name, row.AuthStrategy, row.Credential, row.Detail)
	}
	return tw.Flush()
}
