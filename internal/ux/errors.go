package ux

import (
	"fmt"
	"io"

	"github.com/felixgeelhaar/reimburse/internal/errors"
)

// RenderError prints err for a terminal. Coded errors show their code and
// each suggestion on its own line; other errors print their message.
func RenderError(w io.Writer, err error, noColor bool) {
	if err == nil {
		return
	}
	p := NewPrinter(w, noColor)

	coded, ok := errors.As(err)
	if !ok {
		fmt.Fprintln(w, p.render(errorStyle, "Error: ")+err.Error())
		return
	}

	headline := coded.Message
	if headline == "" && coded.Status != 0 {
		headline = fmt.Sprintf("request failed with status %d", coded.Status)
	}
	if coded.Cause != nil {
		headline += ": " + coded.Cause.Error()
	}
	fmt.Fprintln(w, p.render(errorStyle, fmt.Sprintf("Error [%s]: ", coded.Code))+headline)

	for _, s := range coded.Suggestions {
		p.Hint("→ %s", s)
	}
	if coded.DocsURL != "" {
		p.Hint("Docs: %s", coded.DocsURL)
	}
}
