package session

import (
	"fmt"
	"io"
	"strings"
)

// TerminalRenderer writes one line to w for each field that changed since
// the previous view.
type TerminalRenderer struct {
	w    io.Writer
	last View
}

func NewTerminalRenderer(w io.Writer) *TerminalRenderer {
	return &TerminalRenderer{w: w}
}

func (r *TerminalRenderer) Render(v View) {
	prev := r.last
	r.last = v

	if v.Recording != prev.Recording {
		if v.Recording {
			fmt.Fprintf(r.w, "[rec] %s -> %s\n", v.Pair.SourceName(), v.Pair.TargetName())
		} else {
			fmt.Fprintln(r.w, "[idle]")
		}
	}
	if v.Interim != prev.Interim && v.Interim != "" {
		fmt.Fprintf(r.w, "  ... %s\n", v.Interim)
	}
	if v.Finalized != prev.Finalized && strings.TrimSpace(v.Finalized) != "" {
		fmt.Fprintf(r.w, "  transcript: %s\n", strings.TrimSpace(v.Finalized))
	}
	if v.Loading && !prev.Loading {
		fmt.Fprintln(r.w, "  translating...")
	}
	if v.Translation != prev.Translation && v.Translation != "" {
		fmt.Fprintf(r.w, "  => %s\n", v.Translation)
	}
	if v.Error != prev.Error && v.Error != "" {
		fmt.Fprintf(r.w, "  ! %s\n", v.Error)
	}
}
