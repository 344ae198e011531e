// Package output pretty-prints JSON documents for the terminal.
package output

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"golang.org/x/term"
)

// Options controls how a Printer formats documents.
type Options struct {
	// NoJQ disables piping through jq even when it is installed.
	NoJQ bool

	// Path is a gjson path applied to the document before printing.
	// Empty prints the whole document.
	Path string
}

// Printer writes indented JSON to an output stream. It prefers jq when it is
// on PATH and falls back to in-process formatting otherwise.
type Printer struct {
	out      io.Writer
	stderr   io.Writer
	opts     Options
	color    bool
	lookPath func(string) (string, error)
}

// New creates a Printer writing to out. Colors are used when out is a
// terminal.
func New(out io.Writer, opts Options) *Printer {
	return &Printer{
		out:      out,
		stderr:   os.Stderr,
		opts:     opts,
		color:    isTerminal(out),
		lookPath: exec.LookPath,
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Print encodes v as JSON and writes it.
func (p *Printer) Print(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return p.PrintRaw(ctx, data)
}

// PrintRaw writes an already encoded JSON document.
func (p *Printer) PrintRaw(ctx context.Context, data []byte) error {
	if p.opts.Path != "" {
		res := gjson.GetBytes(data, p.opts.Path)
		if !res.Exists() {
			return fmt.Errorf("path %q matched nothing", p.opts.Path)
		}
		data = []byte(res.Raw)
	}

	if !p.opts.NoJQ {
		if jq, err := p.lookPath("jq"); err == nil {
			return p.runJQ(ctx, jq, data)
		}
	}

	out := pretty.Pretty(data)
	if p.color {
		out = pretty.Color(out, nil)
	}
	_, err := p.out.Write(out)
	return err
}

func (p *Printer) runJQ(ctx context.Context, jq string, data []byte) error {
	cmd := exec.CommandContext(ctx, jq, ".")
	cmd.Stdin = bytes.NewReader(data)
	cmd.Stdout = p.out
	cmd.Stderr = p.stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("jq failed: %w", err)
	}
	return nil
}
