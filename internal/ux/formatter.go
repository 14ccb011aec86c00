package ux

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Formats lists the values accepted by --output.
var Formats = []string{"text", "json", "yaml"}

// Formatter writes command results in one output format.
type Formatter interface {
	Format(data interface{}) error
}

// FormatterOptions configures a Formatter.
type FormatterOptions struct {
	// Writer defaults to os.Stdout.
	Writer  io.Writer
	NoColor bool
}

// ValidateFormat rejects --output values no formatter handles. The message
// is phrased as a usage error so it maps to the usage exit code.
func ValidateFormat(format string) error {
	if format == "" || slices.Contains(Formats, format) {
		return nil
	}
	return fmt.Errorf("invalid argument %q for --output: expected text, json or yaml", format)
}

// NewFormatter creates a formatter for format. Empty means text.
func NewFormatter(format string, opts *FormatterOptions) (Formatter, error) {
	if err := ValidateFormat(format); err != nil {
		return nil, err
	}
	if opts == nil {
		opts = &FormatterOptions{}
	}
	if opts.Writer == nil {
		opts.Writer = os.Stdout
	}

	switch format {
	case "json":
		return &JSONFormatter{opts: opts}, nil
	case "yaml":
		return &YAMLFormatter{opts: opts}, nil
	default:
		return &TextFormatter{opts: opts}, nil
	}
}

// JSONFormatter writes indented JSON.
type JSONFormatter struct {
	opts *FormatterOptions
}

func (f *JSONFormatter) Format(data interface{}) error {
	encoder := json.NewEncoder(f.opts.Writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// YAMLFormatter writes YAML with two-space indentation.
type YAMLFormatter struct {
	opts *FormatterOptions
}

func (f *YAMLFormatter) Format(data interface{}) error {
	encoder := yaml.NewEncoder(f.opts.Writer)
	encoder.SetIndent(2)
	if err := encoder.Encode(data); err != nil {
		_ = encoder.Close()
		return err
	}
	return encoder.Close()
}

// TextRenderer is implemented by values with a human-readable rendering
// richer than a single String() line.
type TextRenderer interface {
	RenderText(p *Printer) error
}

// TextFormatter renders TextRenderer values, strings and Stringers.
type TextFormatter struct {
	opts *FormatterOptions
}

func (f *TextFormatter) Format(data interface{}) error {
	switch v := data.(type) {
	case TextRenderer:
		return v.RenderText(NewPrinter(f.opts.Writer, f.opts.NoColor))
	case string:
		_, err := fmt.Fprintln(f.opts.Writer, v)
		return err
	case fmt.Stringer:
		_, err := fmt.Fprintln(f.opts.Writer, v.String())
		return err
	default:
		return fmt.Errorf("text formatter cannot render %T; use --output json or yaml", data)
	}
}

var (
	_ Formatter = (*JSONFormatter)(nil)
	_ Formatter = (*YAMLFormatter)(nil)
	_ Formatter = (*TextFormatter)(nil)
)
