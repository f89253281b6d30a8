// Package render provides centralized output rendering for the
// ferryctl CLI: JSON, YAML, and a tabwriter-based plain table, chosen
// by --format or, absent that flag, by whether stdout is a TTY.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/justapithecus/ferryq/internal/tui"
)

// Format is a supported output format.
type Format string

const (
	FormatJSON  Format = "json"
	FormatTable Format = "table"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses a format string, returning an error for anything
// other than json/table/yaml/empty.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON, nil
	case "table":
		return FormatTable, nil
	case "yaml":
		return FormatYAML, nil
	case "":
		return "", nil
	default:
		return "", fmt.Errorf("invalid format: %q (must be json, table, or yaml)", s)
	}
}

// Renderer formats and writes command output.
type Renderer struct {
	format Format
	out    io.Writer
}

// NewRenderer builds a Renderer from CLI flags, defaulting to table
// output on a TTY and JSON otherwise.
func NewRenderer(c *cli.Context) (*Renderer, error) {
	format, err := ParseFormat(c.String("format"))
	if err != nil {
		return nil, err
	}
	if format == "" {
		if isTTY(os.Stdout) {
			format = FormatTable
		} else {
			format = FormatJSON
		}
	}
	return &Renderer{format: format, out: os.Stdout}, nil
}

// NewRendererWithWriter builds a Renderer against an explicit writer,
// for tests.
func NewRendererWithWriter(format Format, out io.Writer) *Renderer {
	return &Renderer{format: format, out: out}
}

// Render writes data in the renderer's configured format.
func (r *Renderer) Render(data any) error {
	switch r.format {
	case FormatJSON:
		enc := json.NewEncoder(r.out)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case FormatTable:
		return r.renderTable(data)
	case FormatYAML:
		enc := yaml.NewEncoder(r.out)
		enc.SetIndent(2)
		return enc.Encode(data)
	default:
		return fmt.Errorf("unknown format: %s", r.format)
	}
}

// RenderTUI launches the live dashboard for viewType against refresh,
// a function re-fetching the stat lines each tick.
func (r *Renderer) RenderTUI(viewType string, refresh tui.RefreshFunc) error {
	return tui.Run(viewType, refresh)
}

func (r *Renderer) renderTable(data any) error {
	v := reflect.ValueOf(data)
	if v.Kind() == reflect.Slice {
		return r.renderSliceTable(v)
	}
	return r.renderStructTable(data)
}

func (r *Renderer) renderSliceTable(v reflect.Value) error {
	if v.Len() == 0 {
		fmt.Fprintln(r.out, "(no results)")
		return nil
	}

	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	headers := r.getHeaders(v.Index(0))
	fmt.Fprintln(w, strings.Join(headers, "\t"))
	for i := 0; i < v.Len(); i++ {
		fmt.Fprintln(w, strings.Join(r.getRowValues(v.Index(i), headers), "\t"))
	}
	return nil
}

func (r *Renderer) renderStructTable(data any) error {
	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	v := reflect.ValueOf(data)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < v.NumField(); i++ {
			fmt.Fprintf(w, "%s:\t%s\n", r.getFieldName(t.Field(i)), r.formatValue(v.Field(i)))
		}
	case reflect.Map:
		iter := v.MapRange()
		for iter.Next() {
			fmt.Fprintf(w, "%v:\t%s\n", iter.Key().Interface(), r.formatValue(iter.Value()))
		}
	default:
		fmt.Fprintf(w, "%v\n", data)
	}
	return nil
}

func (r *Renderer) getHeaders(v reflect.Value) []string {
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	var headers []string
	if v.Kind() == reflect.Struct {
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			headers = append(headers, r.getFieldName(t.Field(i)))
		}
	}
	return headers
}

func (r *Renderer) getRowValues(v reflect.Value, headers []string) []string {
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	var values []string
	if v.Kind() == reflect.Struct {
		for i := 0; i < v.NumField(); i++ {
			values = append(values, r.formatValue(v.Field(i)))
		}
	}
	return values
}

func (r *Renderer) getFieldName(f reflect.StructField) string {
	if tag := f.Tag.Get("json"); tag != "" {
		parts := strings.Split(tag, ",")
		if parts[0] != "" && parts[0] != "-" {
			return parts[0]
		}
	}
	return strings.ToLower(f.Name)
}

func (r *Renderer) formatValue(v reflect.Value) string {
	if !v.IsValid() {
		return ""
	}
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return ""
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if v.Len() == 0 {
			return "[]"
		}
		return fmt.Sprintf("[%d items]", v.Len())
	default:
		return fmt.Sprintf("%v", v.Interface())
	}
}

func isTTY(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
